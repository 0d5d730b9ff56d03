// Package metrics is the backend-neutral metrics facade used by the pipeline.
//
// Pipeline code calls the Record* helpers; a concrete backend (Datadog,
// Pushgateway) is installed once at startup with SetBackend. Until then every
// call goes to a no-op backend, so tests and metrics-less runs need no setup.
package metrics

import (
	"strconv"
	"sync"
	"time"
)

// Metric names understood by the backends.
const (
	StepTotal           = "etl_step_total"
	StepDurationSeconds = "etl_step_duration_seconds"
	RecordsTotal        = "etl_records_total"
	QueriesTotal        = "etl_queries_total"
	HTTPRequestsTotal   = "etl_http_requests_total"
	HTTPErrorsTotal     = "etl_http_errors_total"
	HTTPRequestSeconds  = "etl_http_request_duration_seconds"
	HTTPResponseSeconds = "etl_http_response_duration_seconds"
	HTTPDownloadBytes   = "etl_http_download_bytes"
)

// Labels are metric dimensions (tags in Datadog, labels in Prometheus).
type Labels map[string]string

// Backend receives metric observations.
//
// Implementations must be safe for concurrent use. Unknown metric names may be
// ignored.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	current Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. A nil b restores the
// no-op backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		current = nopBackend{}
		return
	}
	current = b
}

func get() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Flush flushes the installed backend.
func Flush() error { return get().Flush() }

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordStep counts one pipeline step and observes its duration.
func RecordStep(job, step string, err error, d time.Duration) {
	l := Labels{"job": job, "step": step, "status": status(err)}
	b := get()
	b.IncCounter(StepTotal, 1, l)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}

// RecordRecords counts records of a kind, e.g. "fetched:sales" or "loaded:sales".
func RecordRecords(kind string, n int) {
	if n <= 0 {
		return
	}
	get().IncCounter(RecordsTotal, float64(n), Labels{"kind": kind})
}

// RecordQuery counts one report query execution.
func RecordQuery(query string, err error) {
	get().IncCounter(QueriesTotal, 1, Labels{"query": query, "status": status(err)})
}

// RecordHTTP records one HTTP attempt.
//
// status is 0 when no response was received. Negative durations and sizes
// mean "not measured" and are skipped.
func RecordHTTP(job string, statusCode int, err error, request, response time.Duration, downloaded int64) {
	code := "none"
	if statusCode > 0 {
		code = strconv.Itoa(statusCode)
	}
	l := Labels{"job": job, "status": code}
	b := get()
	b.IncCounter(HTTPRequestsTotal, 1, l)
	if err != nil || statusCode < 200 || statusCode >= 300 {
		b.IncCounter(HTTPErrorsTotal, 1, l)
	}
	if request >= 0 {
		b.ObserveHistogram(HTTPRequestSeconds, request.Seconds(), l)
	}
	if response >= 0 {
		b.ObserveHistogram(HTTPResponseSeconds, response.Seconds(), l)
	}
	if downloaded >= 0 {
		b.ObserveHistogram(HTTPDownloadBytes, float64(downloaded), l)
	}
}
