// Package pipeline runs one fetch, normalize, load and report pass.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"salesetl/internal/config"
	"salesetl/internal/fetch"
	"salesetl/internal/metrics"
	"salesetl/internal/normalize"
	"salesetl/internal/report"
	"salesetl/internal/storage"
)

// LoadError reports a table that could not be normalized or written.
type LoadError struct {
	Table string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Table, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Summary describes what a run did.
type Summary struct {
	// Fetched and FetchFailed list resource names in config order.
	Fetched     []string
	FetchFailed []string

	// Loaded maps table name to inserted row count.
	Loaded     map[string]int64
	LoadFailed []string

	Outcomes []report.Outcome
}

// QueriesFailed counts report queries that did not succeed.
func (s Summary) QueriesFailed() int {
	n := 0
	for _, o := range s.Outcomes {
		if !o.OK() {
			n++
		}
	}
	return n
}

// Runner wires the stages together.
type Runner struct {
	// NewRepository opens the store. Nil means storage.New.
	NewRepository func(ctx context.Context, cfg storage.Config) (storage.Repository, error)

	Fetcher *fetch.Fetcher
	Report  report.Runner

	// Out receives the printed report.
	Out io.Writer

	Log zerolog.Logger
}

// Run executes one pass over cfg.
//
// Failures of single resources, tables or queries are logged and recorded in
// the Summary; the run continues with whatever is left. Run returns an error
// only when the store cannot be opened or the report cannot be written.
func (r *Runner) Run(ctx context.Context, cfg config.Pipeline) (Summary, error) {
	sum := Summary{Loaded: map[string]int64{}}

	open := r.NewRepository
	if open == nil {
		open = storage.New
	}

	start := time.Now()
	repo, err := open(ctx, storage.Config{Kind: cfg.Storage.Kind, DSN: cfg.Storage.DSN})
	metrics.RecordStep(cfg.Job, "open", err, time.Since(start))
	if err != nil {
		return sum, fmt.Errorf("open store %s: %w", cfg.Storage.Kind, err)
	}
	defer repo.Close()

	resources := make([]fetch.Resource, 0, len(cfg.Resources))
	for _, res := range cfg.Resources {
		resources = append(resources, fetch.Resource{Name: res.Name, URL: res.URL})
	}

	start = time.Now()
	results := r.fetcher().FetchAll(ctx, resources)
	var fetchErr error
	for _, res := range results {
		if res.OK() {
			sum.Fetched = append(sum.Fetched, res.Resource.Name)
			continue
		}
		sum.FetchFailed = append(sum.FetchFailed, res.Resource.Name)
		fetchErr = res.Err
	}
	metrics.RecordStep(cfg.Job, "fetch", fetchErr, time.Since(start))

	start = time.Now()
	var loadErr error
	for _, res := range results {
		if !res.OK() {
			continue
		}
		n, err := r.load(ctx, repo, res, cfg.Mappings[res.Resource.Name])
		if err != nil {
			loadErr = err
			sum.LoadFailed = append(sum.LoadFailed, res.Resource.Name)
			r.Log.Error().Str("table", res.Resource.Name).Err(err).Msg("load failed")
			continue
		}
		sum.Loaded[res.Resource.Name] = n
		metrics.RecordRecords("loaded:"+res.Resource.Name, int(n))
		r.Log.Info().Str("table", res.Resource.Name).Int64("rows", n).Msg("loaded")
	}
	metrics.RecordStep(cfg.Job, "load", loadErr, time.Since(start))

	start = time.Now()
	sum.Outcomes = r.Report.Run(ctx, repo, report.Specs(cfg.Report.Year))
	var queryErr error
	for _, o := range sum.Outcomes {
		if !o.OK() {
			queryErr = o.Err
		}
	}
	metrics.RecordStep(cfg.Job, "report", queryErr, time.Since(start))

	if r.Out != nil {
		if err := report.Print(r.Out, sum.Outcomes); err != nil {
			return sum, fmt.Errorf("print report: %w", err)
		}
	}

	r.Log.Info().
		Int("fetched", len(sum.Fetched)).
		Int("fetch_failed", len(sum.FetchFailed)).
		Int("loaded", len(sum.Loaded)).
		Int("load_failed", len(sum.LoadFailed)).
		Int("queries_failed", sum.QueriesFailed()).
		Msg("run finished")
	return sum, nil
}

func (r *Runner) fetcher() *fetch.Fetcher {
	if r.Fetcher != nil {
		return r.Fetcher
	}
	return &fetch.Fetcher{Log: r.Log}
}

// load normalizes one fetched table and replaces it in the store.
func (r *Runner) load(ctx context.Context, repo storage.Repository, res fetch.Result, mappings []normalize.Mapping) (int64, error) {
	name := res.Resource.Name

	st, err := normalize.Apply(res.Table, mappings)
	if err != nil {
		return 0, &LoadError{Table: name, Err: err}
	}
	for src, n := range st.Unresolved {
		r.Log.Debug().Str("table", name).Str("column", src).Int("unresolved", n).Msg("unresolved references")
	}

	cols := storage.ColumnsFor(res.Table)
	rows, err := storage.RowsFor(res.Table, cols)
	if err != nil {
		return 0, &LoadError{Table: name, Err: err}
	}
	n, err := repo.ReplaceTable(ctx, name, cols, rows)
	if err != nil {
		return 0, &LoadError{Table: name, Err: err}
	}
	return n, nil
}
