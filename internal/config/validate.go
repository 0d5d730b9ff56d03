package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Severity classifies a validation Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path uses dotted config keys with
// indexes, e.g. "resources[2].url".
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

var (
	storageKinds   = map[string]bool{"sqlite": true, "postgres": true, "mssql": true, "mysql": true}
	metricBackends = map[string]bool{"": true, "none": true, "datadog": true, "dd": true, "pushgateway": true, "prometheus": true}
	logFormats     = map[string]bool{"": true, "console": true, "json": true}
)

// ValidatePipeline checks p without touching the network or the store.
//
// Errors block the run; warnings are printed and ignored.
func ValidatePipeline(p Pipeline) []Issue {
	var issues []Issue
	add := func(sev Severity, path, format string, a ...any) {
		issues = append(issues, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, a...)})
	}

	if strings.TrimSpace(p.Job) == "" {
		add(SeverityWarning, "job", "empty job name; metrics and logs will use a default")
	}

	if len(p.Resources) == 0 {
		add(SeverityError, "resources", "at least one resource is required")
	}
	names := map[string]bool{}
	folded := map[string]string{}
	for i, r := range p.Resources {
		path := fmt.Sprintf("resources[%d]", i)
		name := strings.TrimSpace(r.Name)
		switch {
		case name == "":
			add(SeverityError, path+".name", "resource name is required")
		case names[name]:
			add(SeverityError, path+".name", "duplicate resource name %q", name)
		case folded[strings.ToLower(name)] != "":
			// mapping keys are matched ignoring case
			add(SeverityError, path+".name", "resource name %q differs from %q only in case", name, folded[strings.ToLower(name)])
		}
		names[name] = true
		if name != "" && folded[strings.ToLower(name)] == "" {
			folded[strings.ToLower(name)] = name
		}

		if strings.TrimSpace(r.URL) == "" {
			add(SeverityError, path+".url", "resource url is required")
			continue
		}
		if u, err := url.Parse(r.URL); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
			switch u.Scheme {
			case "http", "https", "file":
			default:
				add(SeverityError, path+".url", "unsupported scheme %q (want http, https, file or a path)", u.Scheme)
			}
		}
	}

	for res, ms := range p.Mappings {
		if !names[res] {
			add(SeverityWarning, "mappings."+res, "no resource named %q; mapping is unused", res)
		}
		derived := map[string]bool{}
		for i, m := range ms {
			path := fmt.Sprintf("mappings.%s[%d]", res, i)
			if m.Source == "" || m.Num == "" || m.Name == "" {
				add(SeverityError, path, "source, num and name are all required")
				continue
			}
			for _, d := range []string{m.Num, m.Name} {
				if derived[d] || d == m.Source {
					add(SeverityError, path, "derived column %q is not unique", d)
				}
				derived[d] = true
			}
		}
	}

	if !storageKinds[p.Storage.Kind] {
		add(SeverityError, "storage.kind", "unsupported storage kind %q (want sqlite, postgres, mssql or mysql)", p.Storage.Kind)
	} else if p.Storage.Kind != "sqlite" && strings.TrimSpace(p.Storage.DSN) == "" {
		add(SeverityError, "storage.dsn", "a dsn is required for %s", p.Storage.Kind)
	}

	if p.Report.Year < 1900 || p.Report.Year > 9999 {
		add(SeverityError, "report.year", "year %d out of range 1900..9999", p.Report.Year)
	}

	backend := strings.ToLower(strings.TrimSpace(p.Metrics.Backend))
	if !metricBackends[backend] {
		add(SeverityError, "metrics.backend", "unknown metrics backend %q (want none|datadog|pushgateway)", p.Metrics.Backend)
	}
	if (backend == "pushgateway" || backend == "prometheus") && strings.TrimSpace(p.Metrics.PushgatewayURL) == "" {
		add(SeverityError, "metrics.pushgateway_url", "pushgateway backend needs a url")
	}

	if !logFormats[strings.ToLower(p.Log.Format)] {
		add(SeverityError, "log.format", "unknown log format %q (want console or json)", p.Log.Format)
	}

	return issues
}
