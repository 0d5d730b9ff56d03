// Package prompush implements a Prometheus Pushgateway backend for the
// internal/metrics package.
//
// A salesetl run is a one-shot batch job, so there is nothing for Prometheus
// to scrape. Observations accumulate in a private registry and Flush pushes
// the whole registry to the gateway under the configured job name.
package prompush

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"salesetl/internal/metrics"
)

// labelNames lists the label dimensions of every metric this backend knows.
// The "job" label is never listed; the Pushgateway grouping key owns it.
var labelNames = map[string][]string{
	metrics.StepTotal:           {"step", "status"},
	metrics.StepDurationSeconds: {"step", "status"},
	metrics.RecordsTotal:        {"kind"},
	metrics.QueriesTotal:        {"query", "status"},
	metrics.HTTPRequestsTotal:   {"status"},
	metrics.HTTPErrorsTotal:     {"status"},
	metrics.HTTPRequestSeconds:  {"status"},
	metrics.HTTPResponseSeconds: {"status"},
	metrics.HTTPDownloadBytes:   {"status"},
}

var help = map[string]string{
	metrics.StepTotal:           "Pipeline steps executed, by step and status.",
	metrics.StepDurationSeconds: "Pipeline step duration in seconds.",
	metrics.RecordsTotal:        "Records processed, by kind.",
	metrics.QueriesTotal:        "Report queries executed, by query and status.",
	metrics.HTTPRequestsTotal:   "HTTP fetch attempts, by status code.",
	metrics.HTTPErrorsTotal:     "HTTP fetch attempts that failed or returned non-2xx.",
	metrics.HTTPRequestSeconds:  "Time until response headers arrived.",
	metrics.HTTPResponseSeconds: "Time spent reading the response body.",
	metrics.HTTPDownloadBytes:   "Response body size in bytes.",
}

// Backend implements metrics.Backend on top of a private Prometheus registry.
type Backend struct {
	pusher     *push.Pusher
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// NewBackend builds a Pushgateway backend for job, pushing to url.
//
// Errors:
//   - empty url or job
func NewBackend(job, url string) (*Backend, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("prompush: empty pushgateway url")
	}
	if strings.TrimSpace(job) == "" {
		return nil, fmt.Errorf("prompush: empty job name")
	}

	reg := prometheus.NewRegistry()
	b := &Backend{
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}

	for _, name := range []string{
		metrics.StepTotal, metrics.RecordsTotal, metrics.QueriesTotal,
		metrics.HTTPRequestsTotal, metrics.HTTPErrorsTotal,
	} {
		cv := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help[name]}, labelNames[name])
		reg.MustRegister(cv)
		b.counters[name] = cv
	}

	for _, name := range []string{
		metrics.StepDurationSeconds, metrics.HTTPRequestSeconds, metrics.HTTPResponseSeconds,
	} {
		hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help[name], Buckets: prometheus.DefBuckets}, labelNames[name])
		reg.MustRegister(hv)
		b.histograms[name] = hv
	}

	bytes := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metrics.HTTPDownloadBytes,
		Help:    help[metrics.HTTPDownloadBytes],
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
	}, labelNames[metrics.HTTPDownloadBytes])
	reg.MustRegister(bytes)
	b.histograms[metrics.HTTPDownloadBytes] = bytes

	b.pusher = push.New(url, job).Gatherer(reg)
	return b, nil
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	cv, ok := b.counters[name]
	if !ok || delta <= 0 {
		return
	}
	cv.With(pick(name, labels)).Add(delta)
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	hv, ok := b.histograms[name]
	if !ok || value < 0 {
		return
	}
	hv.With(pick(name, labels)).Observe(value)
}

// Flush pushes the registry, replacing everything previously pushed for
// the job.
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}

// Close pushes one last time. The backend holds no other resources.
func (b *Backend) Close() error { return b.Flush() }

// pick projects labels onto the metric's declared label names. Missing
// labels become empty strings and extra labels are dropped, so With never
// panics on a cardinality mismatch.
func pick(name string, labels metrics.Labels) prometheus.Labels {
	names := labelNames[name]
	out := make(prometheus.Labels, len(names))
	for _, n := range names {
		out[n] = labels[n]
	}
	return out
}

var _ metrics.Backend = (*Backend)(nil)
