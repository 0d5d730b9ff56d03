package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeRepo struct{ cfg Config }

func (f *fakeRepo) ReplaceTable(context.Context, string, []ColumnSpec, [][]any) (int64, error) {
	return 0, nil
}
func (f *fakeRepo) Query(context.Context, string) (*Result, error) { return &Result{}, nil }
func (f *fakeRepo) Dialect() Dialect                               { return nil }
func (f *fakeRepo) Close()                                         {}

func TestRegisterAndNew(t *testing.T) {
	Register("fake-ok", func(ctx context.Context, cfg Config) (Repository, error) {
		return &fakeRepo{cfg: cfg}, nil
	})
	Register("fake-err", func(ctx context.Context, cfg Config) (Repository, error) {
		return nil, errors.New("dial refused")
	})

	repo, err := New(context.Background(), Config{Kind: "fake-ok", DSN: "mem"})
	if err != nil {
		t.Fatalf("New(fake-ok) err=%v", err)
	}
	if got := repo.(*fakeRepo).cfg.DSN; got != "mem" {
		t.Fatalf("factory saw DSN=%q, want mem", got)
	}

	if _, err := New(context.Background(), Config{Kind: "fake-err"}); err == nil || !strings.Contains(err.Error(), "dial refused") {
		t.Fatalf("New(fake-err) err=%v, want factory error", err)
	}

	tests := []struct {
		name string
		kind string
		want string
	}{
		{name: "empty_kind", kind: "", want: "missing storage.kind"},
		{name: "unknown_kind", kind: "nope", want: "unsupported storage.kind=nope"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(context.Background(), Config{Kind: tc.kind})
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("New(%q) err=%v, want substring %q", tc.kind, err, tc.want)
			}
		})
	}

	kinds := Kinds()
	if len(kinds) < 2 || kinds[0] > kinds[len(kinds)-1] {
		t.Fatalf("Kinds()=%v, want sorted list containing fakes", kinds)
	}
}

func TestRegister_Panics(t *testing.T) {
	ok := func(ctx context.Context, cfg Config) (Repository, error) { return &fakeRepo{}, nil }
	Register("fake-dup", ok)

	tests := []struct {
		name string
		kind string
		f    Factory
	}{
		{name: "empty_kind", kind: "", f: ok},
		{name: "nil_factory", kind: "fake-nil", f: nil},
		{name: "duplicate", kind: "fake-dup", f: ok},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("Register(%q) did not panic", tc.kind)
				}
			}()
			Register(tc.kind, tc.f)
		})
	}
}

type fakeDialect struct{}

func (fakeDialect) Name() string                 { return "fake-d" }
func (fakeDialect) QuoteIdent(s string) string   { return s }
func (fakeDialect) ColumnType(ColumnType) string { return "T" }
func (fakeDialect) Placeholder(int) string       { return "?" }
func (fakeDialect) YearOf(e string) string       { return e }
func (fakeDialect) LimitPrefix(int) string       { return "" }
func (fakeDialect) LimitSuffix(int) string       { return "" }

func TestRegisterDialectAndDialectFor(t *testing.T) {
	RegisterDialect("fake-d", fakeDialect{})

	d, err := DialectFor("fake-d")
	if err != nil || d.Name() != "fake-d" {
		t.Fatalf("DialectFor(fake-d)=%v, %v", d, err)
	}
	if _, err := DialectFor("nope"); err == nil || !strings.Contains(err.Error(), "no dialect") {
		t.Fatalf("DialectFor(nope) err=%v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("duplicate RegisterDialect did not panic")
		}
	}()
	RegisterDialect("fake-d", fakeDialect{})
}
