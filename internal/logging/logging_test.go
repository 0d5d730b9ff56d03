package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSONCarriesRunID(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Format: "json", Writer: &buf, RunID: "run-1"})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	log.Info().Str("resource", "sales").Msg("fetched")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %q (%v)", buf.String(), err)
	}
	if line["run_id"] != "run-1" || line["resource"] != "sales" || line["message"] != "fetched" {
		t.Fatalf("unexpected fields: %v", line)
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Format: "json", Level: "WARN", Writer: &buf})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("level filtering failed: %q", buf.String())
	}
}

func TestNew_ConsoleIsPlainText(t *testing.T) {
	var buf bytes.Buffer
	log, err := New(Options{Writer: &buf})
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	log.Info().Str("table", "sales").Msg("loaded")

	out := buf.String()
	if !strings.Contains(out, "loaded") || !strings.Contains(out, "table=sales") {
		t.Fatalf("console output=%q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("console output to a buffer must not be colored: %q", out)
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts Options
	}{
		{name: "bad_level", opts: Options{Level: "loud"}},
		{name: "bad_format", opts: Options{Format: "xml"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.opts); err == nil {
				t.Fatalf("New(%+v) err=nil, want error", tc.opts)
			}
		})
	}
}
