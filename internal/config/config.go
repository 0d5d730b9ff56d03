// Package config defines the pipeline configuration, its defaults and how it
// is loaded from files, environment and flags.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"salesetl/internal/normalize"
)

// Pipeline is the whole run configuration.
type Pipeline struct {
	// Job names the run in logs and metrics.
	Job string `json:"job" mapstructure:"job"`

	// Resources are fetched in order; each becomes a table named Name.
	Resources []Resource `json:"resources" mapstructure:"resources"`

	// Mappings lists, per resource name, the reference columns to split.
	Mappings map[string][]normalize.Mapping `json:"mappings" mapstructure:"mappings"`

	Storage Storage `json:"storage" mapstructure:"storage"`
	Report  Report  `json:"report" mapstructure:"report"`
	Metrics Metrics `json:"metrics" mapstructure:"metrics"`
	HTTP    HTTP    `json:"http" mapstructure:"http"`
	Log     Log     `json:"log" mapstructure:"log"`
}

// Resource is one source document.
type Resource struct {
	Name string `json:"name" mapstructure:"name"`
	URL  string `json:"url" mapstructure:"url"`
}

// Storage selects the relational store.
type Storage struct {
	Kind string `json:"kind" mapstructure:"kind"`
	DSN  string `json:"dsn" mapstructure:"dsn"`
}

// Report parameterizes the queries.
type Report struct {
	Year int `json:"year" mapstructure:"year"`
}

// Metrics selects the metrics backend: "none", "datadog" or "pushgateway".
type Metrics struct {
	Backend        string `json:"backend" mapstructure:"backend"`
	PushgatewayURL string `json:"pushgateway_url" mapstructure:"pushgateway_url"`
	// Tags is a comma-separated list, e.g. "env:prod,team:data".
	Tags string `json:"tags" mapstructure:"tags"`
}

// HTTP configures the fetcher. Requests carry no timeout; they end when
// the run's context is canceled.
type HTTP struct {
	UserAgent string `json:"user_agent" mapstructure:"user_agent"`
}

// Log configures the diagnostic logger.
type Log struct {
	Level  string `json:"level" mapstructure:"level"`
	Format string `json:"format" mapstructure:"format"`
}

const dataRepo = "https://raw.githubusercontent.com/tiagosantosarxi/data_analysis/main/"

// Default returns the configuration used when nothing else is given: the
// four public sample documents loaded into ./data.db.
func Default() Pipeline {
	return Pipeline{
		Job: "salesetl",
		Resources: []Resource{
			{Name: "categories", URL: dataRepo + "categories.json"},
			{Name: "products", URL: dataRepo + "products.json"},
			{Name: "sales", URL: dataRepo + "sale_order_lines.json"},
			{Name: "customers", URL: dataRepo + "contacts.json"},
		},
		Mappings: map[string][]normalize.Mapping{
			"products": {
				{Source: "categ_id", Num: "categ_id_num", Name: "categ_id_name"},
			},
			"customers": {
				{Source: "country_id", Num: "country_id_num", Name: "country_name"},
			},
			"sales": {
				{Source: "order_id", Num: "order_id_num", Name: "order_id_name"},
				{Source: "product_id", Num: "product_id_num", Name: "product_id_name"},
				{Source: "order_partner_id", Num: "order_partner_id_num", Name: "order_partner_id_name"},
			},
		},
		Storage: Storage{Kind: "sqlite", DSN: "data.db"},
		Report:  Report{Year: 2024},
		Metrics: Metrics{Backend: "none", PushgatewayURL: "http://localhost:9091"},
		HTTP:    HTTP{UserAgent: "salesetl/1.0"},
		Log:     Log{Level: "info", Format: "console"},
	}
}

// EnvPrefix prefixes every environment override, e.g. SALESETL_STORAGE_KIND.
const EnvPrefix = "SALESETL"

// NewViper returns a viper instance seeded with Default() scalars and wired
// to the environment.
//
// Besides SALESETL_* variables, the unprefixed METRICS_BACKEND,
// PUSHGATEWAY_URL and METRICS_TAGS are honored for the metrics section.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Default()

	v.SetDefault("job", d.Job)
	v.SetDefault("storage.kind", d.Storage.Kind)
	v.SetDefault("storage.dsn", d.Storage.DSN)
	v.SetDefault("report.year", d.Report.Year)
	v.SetDefault("metrics.backend", d.Metrics.Backend)
	v.SetDefault("metrics.pushgateway_url", d.Metrics.PushgatewayURL)
	v.SetDefault("metrics.tags", d.Metrics.Tags)
	v.SetDefault("http.user_agent", d.HTTP.UserAgent)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("metrics.backend", EnvPrefix+"_METRICS_BACKEND", "METRICS_BACKEND")
	_ = v.BindEnv("metrics.pushgateway_url", EnvPrefix+"_METRICS_PUSHGATEWAY_URL", "PUSHGATEWAY_URL")
	_ = v.BindEnv("metrics.tags", EnvPrefix+"_METRICS_TAGS", "METRICS_TAGS")
	return v
}

// Load reads the optional config file into v and decodes the merged view
// over Default().
//
// Resources and mappings come only from Default() or the file; a file that
// sets them replaces the defaults entirely.
//
// Errors:
//   - the file cannot be read or parsed (format from its extension)
//   - a value cannot be decoded into its field
func Load(v *viper.Viper, file string) (Pipeline, error) {
	if strings.TrimSpace(file) != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Pipeline{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	p := Default()
	// Decoding merges into existing slices and maps element by element.
	if v.IsSet("resources") {
		p.Resources = nil
	}
	if v.IsSet("mappings") {
		p.Mappings = nil
	}
	if err := v.Unmarshal(&p); err != nil {
		return Pipeline{}, fmt.Errorf("decode config: %w", err)
	}
	p.Mappings = rekeyMappings(p.Mappings, p.Resources)
	return p, nil
}

// rekeyMappings moves each mapping list onto the resource whose name matches
// its key ignoring case. Viper lowercases map keys, so a file mapping for
// "Sales" arrives as "sales". Keys matching no resource are kept as they are.
func rekeyMappings(ms map[string][]normalize.Mapping, resources []Resource) map[string][]normalize.Mapping {
	if len(ms) == 0 {
		return ms
	}
	out := make(map[string][]normalize.Mapping, len(ms))
	for key, list := range ms {
		name := key
		for _, r := range resources {
			if strings.EqualFold(r.Name, key) {
				name = r.Name
				break
			}
		}
		out[name] = list
	}
	return out
}
