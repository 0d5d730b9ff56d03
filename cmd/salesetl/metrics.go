package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"salesetl/internal/config"
	"salesetl/internal/metrics"
	"salesetl/internal/metrics/datadog"
	"salesetl/internal/metrics/prompush"
)

// metricsBackend is a metrics.Backend that must be closed at shutdown.
type metricsBackend interface {
	metrics.Backend
	Close() error
}

// Seams for tests.
var (
	newDatadogBackend = func(ctx context.Context, opts datadog.Options) (metricsBackend, error) {
		return datadog.NewBackend(ctx, opts)
	}
	newPushBackend = func(job, url string) (metricsBackend, error) {
		return prompush.NewBackend(job, url)
	}
	setMetricsBackend = metrics.SetBackend
)

// initMetrics installs the backend named by m.Backend.
//
// The returned cleanup is never nil and must be called once, after the run;
// it closes the backend, which flushes whatever is buffered. Close failures
// are logged, not returned.
//
// Errors:
//   - unknown backend name
//   - backend construction failure
func initMetrics(ctx context.Context, job string, m config.Metrics, log zerolog.Logger) (func(), error) {
	noop := func() {}
	backend := strings.ToLower(strings.TrimSpace(m.Backend))

	var (
		b   metricsBackend
		err error
	)
	switch backend {
	case "", "none", "noop":
		log.Debug().Msg("metrics disabled")
		return noop, nil
	case "datadog", "dd":
		backend = "datadog"
		b, err = newDatadogBackend(ctx, datadog.Options{
			JobName: job,
			Tags:    datadog.ParseTagsCSV(m.Tags),
		})
	case "pushgateway", "prometheus":
		backend = "pushgateway"
		b, err = newPushBackend(job, m.PushgatewayURL)
	default:
		return noop, fmt.Errorf("unknown metrics backend %q (want none|datadog|pushgateway)", m.Backend)
	}
	if err != nil {
		return noop, fmt.Errorf("metrics: init %s: %w", backend, err)
	}

	setMetricsBackend(b)
	log.Info().Str("backend", backend).Str("job", job).Msg("metrics enabled")

	return func() {
		if err := b.Close(); err != nil {
			log.Warn().Err(err).Msgf("metrics: %s close error", backend)
		}
	}, nil
}
