package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"salesetl/internal/config"
	"salesetl/internal/normalize"
	"salesetl/internal/probe"
)

func probeDeps(t *testing.T, cfg config.Pipeline) appDeps {
	d := fatalDeps(t)
	d.loadConfig = func(*viper.Viper, string) (config.Pipeline, error) { return cfg, nil }
	return d
}

func probeServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/products.json":
			_, _ = io.WriteString(w, `[{"id": 1, "name": "Phone", "categ_id": [5, "Electronics"], "uom_id": [1, "Units"]}]`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProbe_TextReport(t *testing.T) {
	srv := probeServer(t)
	cfg := config.Default()
	cfg.Resources = []config.Resource{
		{Name: "products", URL: srv.URL + "/products.json"},
		{Name: "sales", URL: srv.URL + "/missing.json"},
	}
	cfg.Mappings = map[string][]normalize.Mapping{"products": cfg.Mappings["products"]}

	var stdout, stderr bytes.Buffer
	code := runMain(context.Background(), []string{"probe"}, &stdout, &stderr, probeDeps(t, cfg))
	if code != 0 {
		t.Fatalf("exit code=%d; stderr=%q", code, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{"resource=products rows=1 dialect=sqlite", "categ_id_num", "unmapped references: uom_id"} {
		if !strings.Contains(out, want) {
			t.Fatalf("stdout missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(stderr.String(), "probe fetch failed") {
		t.Fatalf("stderr=%q, want logged fetch failure for sales", stderr.String())
	}
}

func TestProbe_JSONAndSelection(t *testing.T) {
	srv := probeServer(t)
	cfg := config.Default()
	cfg.Storage = config.Storage{Kind: "postgres", DSN: "postgres://localhost/x"}
	cfg.Resources = []config.Resource{
		{Name: "sales", URL: srv.URL + "/missing.json"},
		{Name: "products", URL: srv.URL + "/products.json"},
	}

	var stdout, stderr bytes.Buffer
	code := runMain(context.Background(), []string{"probe", "products", "--json"}, &stdout, &stderr, probeDeps(t, cfg))
	if code != 0 {
		t.Fatalf("exit code=%d; stderr=%q", code, stderr.String())
	}
	var reports []probe.Report
	if err := json.Unmarshal(stdout.Bytes(), &reports); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout.String())
	}
	if len(reports) != 1 || reports[0].Resource != "products" || reports[0].Dialect != "postgres" {
		t.Fatalf("reports=%+v", reports)
	}
	if reports[0].Columns[0].SQLType != "BIGINT" {
		t.Fatalf("id sql type=%q, want BIGINT", reports[0].Columns[0].SQLType)
	}
}

func TestProbe_Errors(t *testing.T) {
	srv := probeServer(t)
	cfg := config.Default()
	cfg.Resources = []config.Resource{{Name: "sales", URL: srv.URL + "/missing.json"}}
	cfg.Mappings = nil

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantErr  string
	}{
		{name: "unknown_resource", args: []string{"probe", "orders"}, wantCode: 2, wantErr: `unknown resource "orders"`},
		{name: "nothing_probed", args: []string{"probe"}, wantCode: 1, wantErr: "no resource could be probed"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := runMain(context.Background(), tc.args, &stdout, &stderr, probeDeps(t, cfg))
			if code != tc.wantCode {
				t.Fatalf("exit code=%d, want %d; stderr=%q", code, tc.wantCode, stderr.String())
			}
			if !strings.Contains(stderr.String(), tc.wantErr) {
				t.Fatalf("stderr=%q, want contains %q", stderr.String(), tc.wantErr)
			}
		})
	}
}

func TestSelectResources_KeepsConfigOrder(t *testing.T) {
	all := config.Default().Resources
	got, err := selectResources(all, []string{"customers", "categories"})
	if err != nil {
		t.Fatalf("selectResources: %v", err)
	}
	if len(got) != 2 || got[0].Name != "categories" || got[1].Name != "customers" {
		t.Fatalf("got=%+v", got)
	}
}
