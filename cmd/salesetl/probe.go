package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"salesetl/internal/config"
	"salesetl/internal/fetch"
	"salesetl/internal/probe"
	"salesetl/internal/storage"
)

func newProbeCmd(v *viper.Viper, opts *rootOptions, stdout, stderr io.Writer, deps appDeps) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "probe [resource...]",
		Short: "Fetch resources and show how they would be loaded, without touching the store",
		Long: `probe fetches the named resources (all configured ones by default),
applies the configured reference mappings and prints, per column, the SQL
type it would get in the configured store together with null and distinct
counts. Columns that look like (id, name) references but have no mapping are
listed so they can be added to the config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd.Context(), v, *opts, args, asJSON, stdout, stderr, deps)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the reports as a JSON array")
	return cmd
}

func runProbe(ctx context.Context, v *viper.Viper, opts rootOptions, names []string, asJSON bool, stdout, stderr io.Writer, deps appDeps) error {
	p, err := loadPipeline(v, opts, stderr, deps)
	if err != nil {
		return err
	}
	d, err := storage.DialectFor(p.Storage.Kind)
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	selected, err := selectResources(p.Resources, names)
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	log, err := newLogger(p, stderr, deps)
	if err != nil {
		return err
	}

	f := &fetch.Fetcher{UserAgent: p.HTTP.UserAgent, Job: p.Job, Log: log}
	reports := make([]probe.Report, 0, len(selected))
	for _, res := range selected {
		tb, err := f.Fetch(ctx, fetch.Resource{Name: res.Name, URL: res.URL})
		if err != nil {
			log.Error().Str("resource", res.Name).Err(err).Msg("probe fetch failed")
			continue
		}
		rep, err := probe.Inspect(tb, p.Mappings[res.Name], d)
		if err != nil {
			log.Error().Str("resource", res.Name).Err(err).Msg("probe failed")
			continue
		}
		reports = append(reports, rep)
	}

	if asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return &exitError{code: 1, err: err}
		}
	} else {
		for i, rep := range reports {
			if i > 0 {
				fmt.Fprintln(stdout)
			}
			fmt.Fprintln(stdout, probe.Format(rep))
		}
	}

	if len(reports) == 0 {
		return &exitError{code: 1, err: errors.New("no resource could be probed")}
	}
	return nil
}

// selectResources keeps the configured resources named in names, in config
// order. An empty names selects all of them.
func selectResources(all []config.Resource, names []string) ([]config.Resource, error) {
	if len(names) == 0 {
		return all, nil
	}
	want := map[string]bool{}
	for _, n := range names {
		want[n] = true
	}
	var out []config.Resource
	for _, r := range all {
		if want[r.Name] {
			out = append(out, r)
			delete(want, r.Name)
		}
	}
	for n := range want {
		return nil, fmt.Errorf("unknown resource %q", n)
	}
	return out, nil
}
