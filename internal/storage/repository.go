package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config is the minimal configuration needed to open a Repository.
//
// When to use:
//   - Build a Config from the pipeline's storage section and pass it to New.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is backend-specific.
//
// Errors:
//   - New returns an error if Kind is empty or unsupported.
type Config struct {
	Kind string
	DSN  string
}

// Repository is the relational store the loader writes to and the report
// reads from.
//
// Each backend implements these semantics in its own idiomatic way (pgx
// COPY for Postgres, batched multi-row INSERT for database/sql drivers).
type Repository interface {
	// ReplaceTable drops table name if it exists, recreates it with cols and
	// inserts rows. The three steps run in one transaction where the backend
	// supports transactional DDL. Returns the number of rows inserted.
	//
	// Edge cases:
	//   - cols must be non-empty; a table with no columns cannot be created.
	//   - every row must have len(cols) cells.
	ReplaceTable(ctx context.Context, name string, cols []ColumnSpec, rows [][]any) (int64, error)

	// Query runs a read-only statement and materializes every row.
	Query(ctx context.Context, query string) (*Result, error)

	// Dialect describes the backend's SQL flavor for query rendering.
	Dialect() Dialect

	// Close releases any backend resources (connections, pools).
	//
	// Callers should treat Close as "call once".
	Close()
}

// Result is a fully materialized query result.
//
// Cells hold nil, int64, float64, bool, string or time.Time; backends convert
// driver-specific types ([]byte, numerics) before returning.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers a backend under a kind (e.g. "postgres", "sqlite").
//
// When to use:
//   - Call Register from an init() function in a backend package.
//   - The `kind` string becomes the lookup key used by New.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Concurrency:
//   - Safe for concurrent use with Register. New takes a read lock while
//     selecting the factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported.
//   - Returns whatever error the registered factory returns.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing storage.kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}

// Kinds lists registered backend kinds in sorted order.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()

	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
