// Package fetch retrieves the source documents and parses them into tables.
//
// A resource is an http(s) URL, a file:// URL or a plain filesystem path.
// Bodies may be gzip-compressed and in any charset known to the WHATWG
// encoding index; they are decoded to UTF-8 before JSON parsing.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"salesetl/internal/metrics"
	pjson "salesetl/internal/parser/json"
	"salesetl/internal/table"
)

// Resource is a named source document.
type Resource struct {
	Name string
	URL  string
}

// Operations reported in FetchError.Op.
const (
	OpRequest = "request"
	OpStatus  = "status"
	OpRead    = "read"
	OpDecode  = "decode"
)

// FetchError reports a failure to retrieve or parse one resource.
type FetchError struct {
	Resource string
	URL      string
	Op       string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %s: %v", e.Resource, e.URL, e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Result is the outcome of fetching one resource: a table or a cause.
type Result struct {
	Resource Resource
	Table    *table.Table
	Err      error
}

// OK reports whether the resource produced a table.
func (r Result) OK() bool { return r.Err == nil && r.Table != nil }

// Fetcher retrieves resources.
//
// The zero value is usable: it uses a client without timeout, no user agent
// override, and a disabled logger.
type Fetcher struct {
	// Client performs HTTP requests. Nil means a default client with no
	// timeout; requests are bounded only by ctx.
	Client *http.Client

	// UserAgent is sent on HTTP requests when non-empty.
	UserAgent string

	// Job labels HTTP metrics.
	Job string

	Log zerolog.Logger
}

// Fetch retrieves res and parses it into a table named res.Name.
//
// Errors:
//   - *FetchError for every failure; Op tells which stage failed.
//   - ctx cancellation surfaces wrapped in a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, res Resource) (*table.Table, error) {
	body, meta, err := f.open(ctx, res)
	if err != nil {
		return nil, err
	}

	r, err := decodeBody(body, meta)
	if err != nil {
		_ = body.Close()
		return nil, &FetchError{Resource: res.Name, URL: res.URL, Op: OpDecode, Err: err}
	}
	defer r.Close()

	tb, err := pjson.ReadTable(ctx, res.Name, r, func(line int, perr error) {
		f.Log.Debug().Str("resource", res.Name).Int("line", line).Err(perr).Msg("json parse error")
	})
	if err != nil {
		return nil, &FetchError{Resource: res.Name, URL: res.URL, Op: OpDecode, Err: err}
	}
	return tb, nil
}

// FetchAll fetches resources one after another, in order.
//
// A failing resource is logged and reported in its Result; it never stops
// the remaining fetches.
func (f *Fetcher) FetchAll(ctx context.Context, resources []Resource) []Result {
	out := make([]Result, 0, len(resources))
	for _, res := range resources {
		start := time.Now()
		tb, err := f.Fetch(ctx, res)
		if err != nil {
			f.Log.Error().Str("resource", res.Name).Str("url", res.URL).Err(err).Msg("fetch failed")
			out = append(out, Result{Resource: res, Err: err})
			continue
		}
		f.Log.Info().
			Str("resource", res.Name).
			Int("rows", tb.Len()).
			Int("columns", len(tb.Columns)).
			Dur("duration", time.Since(start)).
			Msg("fetched")
		metrics.RecordRecords("fetched:"+res.Name, tb.Len())
		out = append(out, Result{Resource: res, Table: tb})
	}
	return out
}

// bodyMeta describes how a body must be decoded.
type bodyMeta struct {
	contentType string
	gzipped     bool
}

func (f *Fetcher) open(ctx context.Context, res Resource) (io.ReadCloser, bodyMeta, error) {
	u, err := url.Parse(res.URL)
	if err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return f.openHTTP(ctx, res, u)
	}

	path := res.URL
	if err == nil && u.Scheme == "file" {
		path = u.Path
	}
	fh, oerr := os.Open(path)
	if oerr != nil {
		return nil, bodyMeta{}, &FetchError{Resource: res.Name, URL: res.URL, Op: OpRead, Err: oerr}
	}
	return fh, bodyMeta{gzipped: strings.HasSuffix(path, ".gz")}, nil
}

func (f *Fetcher) openHTTP(ctx context.Context, res Resource, u *url.URL) (io.ReadCloser, bodyMeta, error) {
	fail := func(op string, status int, err error, reqDur time.Duration) (io.ReadCloser, bodyMeta, error) {
		metrics.RecordHTTP(f.Job, status, err, reqDur, -1, -1)
		return nil, bodyMeta{}, &FetchError{Resource: res.Name, URL: res.URL, Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fail(OpRequest, 0, err, -1)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	req.Header.Set("Accept", "application/json")
	// Asking explicitly turns off the transport's transparent gunzip; the
	// body is decompressed in decodeBody instead.
	req.Header.Set("Accept-Encoding", "gzip")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return fail(OpRequest, 0, err, -1)
	}
	reqDur := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n, _ := io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		err := fmt.Errorf("unexpected HTTP status %s", resp.Status)
		metrics.RecordHTTP(f.Job, resp.StatusCode, err, reqDur, time.Since(start), n)
		return nil, bodyMeta{}, &FetchError{Resource: res.Name, URL: res.URL, Op: OpStatus, Err: err}
	}

	meta := bodyMeta{
		contentType: resp.Header.Get("Content-Type"),
		gzipped:     strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") || strings.HasSuffix(u.Path, ".gz"),
	}
	body := &meteredBody{
		rc: resp.Body,
		onClose: func(n int64, rerr error) {
			metrics.RecordHTTP(f.Job, resp.StatusCode, rerr, reqDur, time.Since(start), n)
		},
	}
	return body, meta, nil
}

// meteredBody counts bytes read from an HTTP body and reports them once,
// when the body is closed.
type meteredBody struct {
	rc      io.ReadCloser
	n       int64
	err     error
	onClose func(n int64, err error)
	done    bool
}

func (m *meteredBody) Read(p []byte) (int, error) {
	n, err := m.rc.Read(p)
	m.n += int64(n)
	if err != nil && !errors.Is(err, io.EOF) {
		m.err = err
	}
	return n, err
}

func (m *meteredBody) Close() error {
	if !m.done {
		m.done = true
		m.onClose(m.n, m.err)
	}
	return m.rc.Close()
}
