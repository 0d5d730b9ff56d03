package config

import (
	"strings"
	"testing"

	"salesetl/internal/normalize"
)

func TestValidatePipeline(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(p *Pipeline)
		wantPath string
		wantSev  Severity
	}{
		{name: "no_resources", mutate: func(p *Pipeline) { p.Resources = nil }, wantPath: "resources", wantSev: SeverityError},
		{name: "empty_name", mutate: func(p *Pipeline) { p.Resources[1].Name = " " }, wantPath: "resources[1].name", wantSev: SeverityError},
		{name: "duplicate_name", mutate: func(p *Pipeline) { p.Resources[1].Name = "categories" }, wantPath: "resources[1].name", wantSev: SeverityError},
		{name: "case_only_duplicate", mutate: func(p *Pipeline) { p.Resources[1].Name = "Categories" }, wantPath: "resources[1].name", wantSev: SeverityError},
		{name: "empty_url", mutate: func(p *Pipeline) { p.Resources[0].URL = "" }, wantPath: "resources[0].url", wantSev: SeverityError},
		{name: "bad_scheme", mutate: func(p *Pipeline) { p.Resources[0].URL = "ftp://x/y.json" }, wantPath: "resources[0].url", wantSev: SeverityError},
		{name: "unknown_storage", mutate: func(p *Pipeline) { p.Storage.Kind = "oracle" }, wantPath: "storage.kind", wantSev: SeverityError},
		{name: "postgres_without_dsn", mutate: func(p *Pipeline) { p.Storage = Storage{Kind: "postgres"} }, wantPath: "storage.dsn", wantSev: SeverityError},
		{name: "year_out_of_range", mutate: func(p *Pipeline) { p.Report.Year = 24 }, wantPath: "report.year", wantSev: SeverityError},
		{name: "unknown_metrics", mutate: func(p *Pipeline) { p.Metrics.Backend = "statsd" }, wantPath: "metrics.backend", wantSev: SeverityError},
		{name: "pushgateway_without_url", mutate: func(p *Pipeline) {
			p.Metrics = Metrics{Backend: "pushgateway"}
		}, wantPath: "metrics.pushgateway_url", wantSev: SeverityError},
		{name: "bad_log_format", mutate: func(p *Pipeline) { p.Log.Format = "xml" }, wantPath: "log.format", wantSev: SeverityError},
		{name: "orphan_mapping", mutate: func(p *Pipeline) {
			p.Mappings["orders"] = []normalize.Mapping{{Source: "a", Num: "a_num", Name: "a_name"}}
		}, wantPath: "mappings.orders", wantSev: SeverityWarning},
		{name: "incomplete_mapping", mutate: func(p *Pipeline) {
			p.Mappings["products"] = []normalize.Mapping{{Source: "categ_id"}}
		}, wantPath: "mappings.products[0]", wantSev: SeverityError},
		{name: "derived_clash", mutate: func(p *Pipeline) {
			p.Mappings["products"] = []normalize.Mapping{
				{Source: "a", Num: "x", Name: "a_name"},
				{Source: "b", Num: "x", Name: "b_name"},
			}
		}, wantPath: "mappings.products[1]", wantSev: SeverityError},
		{name: "empty_job", mutate: func(p *Pipeline) { p.Job = "" }, wantPath: "job", wantSev: SeverityWarning},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := Default()
			tc.mutate(&p)
			issues := ValidatePipeline(p)

			var found *Issue
			for i := range issues {
				if issues[i].Path == tc.wantPath {
					found = &issues[i]
					break
				}
			}
			if found == nil {
				t.Fatalf("no issue at %q in %v", tc.wantPath, issues)
			}
			if found.Severity != tc.wantSev {
				t.Fatalf("severity=%s, want %s (%s)", found.Severity, tc.wantSev, found.Message)
			}
			if HasErrors(issues) != (tc.wantSev == SeverityError) {
				t.Fatalf("HasErrors()=%v for %v", HasErrors(issues), issues)
			}
		})
	}
}

func TestValidatePipeline_LocalPathsAccepted(t *testing.T) {
	p := Default()
	p.Resources = []Resource{
		{Name: "a", URL: "./data/a.json"},
		{Name: "b", URL: "/abs/b.json.gz"},
		{Name: "c", URL: "file:///tmp/c.json"},
		{Name: "d", URL: `C:\data\d.json`},
	}
	p.Mappings = nil
	if issues := ValidatePipeline(p); len(issues) != 0 {
		t.Fatalf("issues=%v, want none", issues)
	}
}

func TestIssueString(t *testing.T) {
	got := Issue{Severity: SeverityError, Path: "storage.kind", Message: "bad"}.String()
	if !strings.HasPrefix(got, "error: storage.kind:") {
		t.Fatalf("String()=%q", got)
	}
}
