// Command salesetl fetches the sales dataset, loads it into a SQL store and
// prints the sales report.
//
// Exit codes: 0 when the run finished (even if some resources, tables or
// queries failed), 1 when the run could not proceed (store unreachable,
// report not writable), 2 for usage and configuration errors.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"salesetl/internal/config"
	"salesetl/internal/fetch"
	"salesetl/internal/logging"
	"salesetl/internal/pipeline"
	"salesetl/internal/report"

	// every backend is compiled in; storage.kind picks one at run time.
	_ "salesetl/internal/storage/all"
)

// runner executes one pipeline pass.
type runner interface {
	Run(ctx context.Context, cfg config.Pipeline) (pipeline.Summary, error)
}

// appDeps holds the side-effecting collaborators of runMain so tests can
// replace them.
type appDeps struct {
	loadConfig  func(v *viper.Viper, file string) (config.Pipeline, error)
	newRunner   func(cfg config.Pipeline, stdout io.Writer, log zerolog.Logger) runner
	initMetrics func(ctx context.Context, job string, m config.Metrics, log zerolog.Logger) (func(), error)
	newRunID    func() string
}

func defaultDeps() appDeps {
	return appDeps{
		loadConfig:  config.Load,
		newRunner:   newPipelineRunner,
		initMetrics: initMetrics,
		newRunID:    uuid.NewString,
	}
}

func newPipelineRunner(cfg config.Pipeline, stdout io.Writer, log zerolog.Logger) runner {
	return &pipeline.Runner{
		Fetcher: &fetch.Fetcher{UserAgent: cfg.HTTP.UserAgent, Job: cfg.Job, Log: log},
		Report:  report.Runner{Log: log},
		Out:     stdout,
		Log:     log,
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runMain(ctx, os.Args[1:], os.Stdout, os.Stderr, defaultDeps())
	stop()
	os.Exit(code)
}

// exitError carries a process exit code out of the cobra command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

// runMain parses args, runs the command and returns the exit code.
func runMain(ctx context.Context, args []string, stdout, stderr io.Writer, deps appDeps) int {
	cmd := newRootCmd(stdout, stderr, deps)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		fmt.Fprintf(stderr, "salesetl: %v\n", ee.err)
		return ee.code
	}
	// Anything cobra rejects before RunE is a usage error.
	fmt.Fprintf(stderr, "salesetl: %v\nRun 'salesetl --help' for usage.\n", err)
	return 2
}

// flagKeys binds command-line flags to config keys.
var flagKeys = map[string]string{
	"db-kind":         "storage.kind",
	"dsn":             "storage.dsn",
	"year":            "report.year",
	"metrics-backend": "metrics.backend",
	"pushgateway-url": "metrics.pushgateway_url",
	"log-format":      "log.format",
	"log-level":       "log.level",
}

// rootOptions holds the flags shared by every subcommand that are not
// config keys.
type rootOptions struct {
	cfgFile string
	verbose bool
}

func newRootCmd(stdout, stderr io.Writer, deps appDeps) *cobra.Command {
	v := config.NewViper()
	opts := &rootOptions{}
	var validate bool

	cmd := &cobra.Command{
		Use:   "salesetl",
		Short: "Load the sales dataset into a SQL store and print the sales report",
		Long: `salesetl fetches categories, products, sales and customers, flattens their
reference columns, replaces the matching tables in the configured store and
prints three reports: the top product per category for a year, the top
product per country and the two customers with the most distinct products.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd.Context(), v, *opts, validate, stdout, stderr, deps)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.cfgFile, "config", "", "optional config file (yaml, json or toml)")
	pf.String("db-kind", "", "storage backend: sqlite, postgres, mssql or mysql (default sqlite)")
	pf.String("dsn", "", "storage DSN; for sqlite the database file (default data.db)")
	pf.Int("year", 0, "year of the per-category report (default 2024)")
	pf.String("metrics-backend", "", "metrics backend: none, datadog or pushgateway (env METRICS_BACKEND)")
	pf.String("pushgateway-url", "", "Pushgateway base URL (env PUSHGATEWAY_URL)")
	pf.String("log-format", "", "log format: console or json")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging (same as --log-level=debug)")
	cmd.Flags().BoolVar(&validate, "validate", false, "validate the configuration and exit")

	for name, key := range flagKeys {
		_ = v.BindPFlag(key, pf.Lookup(name))
	}

	cmd.AddCommand(newProbeCmd(v, opts, stdout, stderr, deps))
	return cmd
}

// loadPipeline loads, adjusts and validates the configuration. Issues are
// printed to stderr; any error-level issue yields exit code 2.
func loadPipeline(v *viper.Viper, opts rootOptions, stderr io.Writer, deps appDeps) (config.Pipeline, error) {
	p, err := deps.loadConfig(v, opts.cfgFile)
	if err != nil {
		return p, &exitError{code: 2, err: err}
	}
	if opts.verbose {
		p.Log.Level = "debug"
	}

	issues := config.ValidatePipeline(p)
	for _, iss := range issues {
		fmt.Fprintln(stderr, iss)
	}
	if config.HasErrors(issues) {
		return p, &exitError{code: 2, err: errors.New("configuration is invalid")}
	}
	return p, nil
}

func newLogger(p config.Pipeline, stderr io.Writer, deps appDeps) (zerolog.Logger, error) {
	log, err := logging.New(logging.Options{
		Level:  p.Log.Level,
		Format: p.Log.Format,
		Writer: stderr,
		RunID:  deps.newRunID(),
	})
	if err != nil {
		return log, &exitError{code: 2, err: err}
	}
	return log, nil
}

func execute(ctx context.Context, v *viper.Viper, opts rootOptions, validate bool, stdout, stderr io.Writer, deps appDeps) error {
	p, err := loadPipeline(v, opts, stderr, deps)
	if err != nil {
		return err
	}
	if validate {
		fmt.Fprintln(stderr, "configuration is valid")
		return nil
	}

	log, err := newLogger(p, stderr, deps)
	if err != nil {
		return err
	}

	cleanup, err := deps.initMetrics(ctx, p.Job, p.Metrics, log)
	defer cleanup()
	if err != nil {
		return &exitError{code: 2, err: err}
	}

	start := time.Now()
	log.Info().
		Str("storage", p.Storage.Kind).
		Int("year", p.Report.Year).
		Int("resources", len(p.Resources)).
		Msg("run started")

	sum, err := deps.newRunner(p, stdout, log).Run(ctx, p)
	if err != nil {
		log.Error().Err(err).Msg("run failed")
		return &exitError{code: 1, err: err}
	}

	log.Info().
		Dur("duration", time.Since(start).Truncate(time.Millisecond)).
		Strs("fetch_failed", sum.FetchFailed).
		Strs("load_failed", sum.LoadFailed).
		Int("queries_failed", sum.QueriesFailed()).
		Msg("completed")
	return nil
}
