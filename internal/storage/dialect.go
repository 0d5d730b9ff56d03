package storage

import "fmt"

// Dialect describes the SQL flavor of a backend.
//
// Report queries are rendered per dialect, so everything that differs between
// engines and appears in those queries lives here.
type Dialect interface {
	// Name is the backend kind, e.g. "sqlite".
	Name() string

	// QuoteIdent quotes a single identifier.
	QuoteIdent(name string) string

	// ColumnType returns the column type used in CREATE TABLE.
	ColumnType(t ColumnType) string

	// Placeholder returns the bind parameter marker for the n-th (1-based)
	// argument of a statement.
	Placeholder(n int) string

	// YearOf returns an expression yielding the four-character year of a
	// timestamp stored as text, e.g. "2024".
	YearOf(expr string) string

	// LimitPrefix and LimitSuffix return the row-limit clauses placed right
	// after SELECT and at the end of a statement. Exactly one of them is
	// non-empty for a given dialect.
	LimitPrefix(n int) string
	LimitSuffix(n int) string
}

var dialects = map[string]Dialect{}

// RegisterDialect records the dialect of a backend kind so tools can render
// SQL for it without opening a connection. Backends call it from init()
// next to Register.
//
// Panics:
//   - If kind is empty, d is nil, or kind already has a dialect.
func RegisterDialect(kind string, d Dialect) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" || d == nil {
		panic("storage: RegisterDialect called with empty kind or nil dialect")
	}
	if _, exists := dialects[kind]; exists {
		panic(fmt.Sprintf("storage: dialect already registered for kind=%q", kind))
	}
	dialects[kind] = d
}

// DialectFor returns the dialect registered for kind.
func DialectFor(kind string) (Dialect, error) {
	mu.RLock()
	d := dialects[kind]
	mu.RUnlock()

	if d == nil {
		return nil, fmt.Errorf("no dialect for storage.kind=%s (registered: %v)", kind, Kinds())
	}
	return d, nil
}
