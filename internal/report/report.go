// Package report runs the fixed analytical queries against a loaded store
// and prints their rows.
package report

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/rs/zerolog"

	"salesetl/internal/metrics"
	"salesetl/internal/storage"
)

//go:embed queries/*.sql.tmpl
var queryFS embed.FS

// Spec is one report query.
type Spec struct {
	// ID is a short stable name used in logs and metrics, e.g. "q1".
	ID string
	// Label is printed above the rows.
	Label string
	// Template is the file name under queries/.
	Template string
	// Year feeds year-filtered templates.
	Year int
}

// Specs returns the three report queries for the target year, in print order.
func Specs(year int) []Spec {
	return []Spec{
		{
			ID:       "q1",
			Label:    "1. Most sold product in " + strconv.Itoa(year) + " by category",
			Template: "top_product_by_category.sql.tmpl",
			Year:     year,
		},
		{
			ID:       "q2",
			Label:    "2. Most sold product by country",
			Template: "top_product_by_country.sql.tmpl",
			Year:     year,
		},
		{
			ID:       "q3",
			Label:    "3. Customer who bought the most different products",
			Template: "top_customers_by_distinct_products.sql.tmpl",
			Year:     year,
		},
	}
}

// Render produces the SQL text of s for dialect d.
//
// Templates see .Year and the functions table, year, limitPrefix and
// limitSuffix, all delegating to d.
func Render(s Spec, d storage.Dialect) (string, error) {
	src, err := queryFS.ReadFile("queries/" + s.Template)
	if err != nil {
		return "", fmt.Errorf("load template %s: %w", s.Template, err)
	}
	tpl, err := template.New(s.Template).Funcs(template.FuncMap{
		"table":       d.QuoteIdent,
		"year":        d.YearOf,
		"limitPrefix": d.LimitPrefix,
		"limitSuffix": d.LimitSuffix,
	}).Option("missingkey=error").Parse(string(src))
	if err != nil {
		return "", fmt.Errorf("parse template %s: %w", s.Template, err)
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, s); err != nil {
		return "", fmt.Errorf("render template %s: %w", s.Template, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// QueryError reports a failed report query.
type QueryError struct {
	Label string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s: %v", e.Label, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Outcome is the result of one query: Result on success, Err otherwise.
type Outcome struct {
	Spec   Spec
	Result *storage.Result
	Err    error
}

// OK reports whether the query succeeded.
func (o Outcome) OK() bool { return o.Err == nil && o.Result != nil }

// Runner executes report queries.
type Runner struct {
	Log zerolog.Logger
}

// Run executes specs in order against repo and returns one Outcome per spec.
//
// A failing query never stops the remaining ones. Query errors (missing
// tables included) are wrapped in *QueryError.
func (r Runner) Run(ctx context.Context, repo storage.Repository, specs []Spec) []Outcome {
	out := make([]Outcome, 0, len(specs))
	for _, s := range specs {
		start := time.Now()
		res, err := r.runOne(ctx, repo, s)
		metrics.RecordQuery(s.ID, err)

		if err != nil {
			r.Log.Warn().Str("query", s.ID).Err(err).Msg("query failed")
			out = append(out, Outcome{Spec: s, Err: &QueryError{Label: s.Label, Err: err}})
			continue
		}
		r.Log.Debug().Str("query", s.ID).Int("rows", len(res.Rows)).Dur("duration", time.Since(start)).Msg("query done")
		out = append(out, Outcome{Spec: s, Result: res})
	}
	return out
}

func (r Runner) runOne(ctx context.Context, repo storage.Repository, s Spec) (*storage.Result, error) {
	sql, err := Render(s, repo.Dialect())
	if err != nil {
		return nil, err
	}
	return repo.Query(ctx, sql)
}
