// Package sqldb is the database/sql implementation of storage.Repository
// shared by the SQLite, SQL Server and MySQL backends.
//
// Backends differ only in driver name, Dialect and the bind-parameter limit;
// the load and query paths are identical.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"salesetl/internal/storage"
)

// Options configures a Repo.
type Options struct {
	// Driver is the database/sql driver name, e.g. "sqlite" or "sqlserver".
	Driver string

	// DSN is passed to sql.Open unchanged.
	DSN string

	// Dialect renders DDL, placeholders and report expressions.
	Dialect storage.Dialect

	// MaxParams caps bind parameters per INSERT statement. Defaults to 999.
	MaxParams int

	// MaxOpenConns caps the pool. Zero leaves the driver default.
	MaxOpenConns int
}

// Repo implements storage.Repository over database/sql.
type Repo struct {
	db        *sql.DB
	dialect   storage.Dialect
	maxParams int
}

// Open opens and pings the database.
//
// Errors:
//   - nil Dialect or empty Driver
//   - sql.Open or PingContext failures (the handle is closed on ping failure)
func Open(ctx context.Context, opts Options) (*Repo, error) {
	if opts.Dialect == nil {
		return nil, fmt.Errorf("sqldb: nil dialect")
	}
	if opts.Driver == "" {
		return nil, fmt.Errorf("sqldb: empty driver name")
	}

	db, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", opts.Dialect.Name(), err)
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", opts.Dialect.Name(), err)
	}

	maxParams := opts.MaxParams
	if maxParams <= 0 {
		maxParams = 999
	}
	return &Repo{db: db, dialect: opts.Dialect, maxParams: maxParams}, nil
}

// Dialect implements storage.Repository.
func (r *Repo) Dialect() storage.Dialect { return r.dialect }

// Close implements storage.Repository.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// ReplaceTable implements storage.Repository.
//
// DROP, CREATE and the batched INSERTs share one transaction. On engines with
// implicit DDL commits (MySQL) the drop and create are not rolled back on a
// later insert failure; the table is then left empty.
func (r *Repo) ReplaceTable(ctx context.Context, name string, cols []storage.ColumnSpec, rows [][]any) (int64, error) {
	if len(cols) == 0 {
		return 0, fmt.Errorf("replace %s: no columns", name)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("replace %s: begin: %w", name, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, BuildDropSQL(r.dialect, name)); err != nil {
		return 0, fmt.Errorf("replace %s: drop: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, BuildCreateSQL(r.dialect, name, cols)); err != nil {
		return 0, fmt.Errorf("replace %s: create: %w", name, err)
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}

	var inserted int64
	for _, chunk := range ChunkRows(rows, len(cols), r.maxParams) {
		q, args := BuildInsertSQL(r.dialect, name, names, chunk)
		if _, err := tx.ExecContext(ctx, q, args...); err != nil {
			return inserted, fmt.Errorf("replace %s: insert: %w", name, err)
		}
		inserted += int64(len(chunk))
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("replace %s: commit: %w", name, err)
	}
	return inserted, nil
}

// Query implements storage.Repository.
func (r *Repo) Query(ctx context.Context, query string) (*storage.Result, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	res := &storage.Result{Columns: cols}
	for rows.Next() {
		cells := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i := range cells {
			cells[i] = NormalizeCell(cells[i])
		}
		res.Rows = append(res.Rows, cells)
	}
	return res, rows.Err()
}

// NormalizeCell maps driver scan results onto the storage.Result cell types.
func NormalizeCell(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	case time.Time:
		return t.UTC()
	default:
		return v
	}
}

// BuildDropSQL returns DROP TABLE IF EXISTS for name.
func BuildDropSQL(d storage.Dialect, name string) string {
	return "DROP TABLE IF EXISTS " + d.QuoteIdent(name)
}

// BuildCreateSQL returns CREATE TABLE with one column per spec, no keys and
// no constraints.
func BuildCreateSQL(d storage.Dialect, name string, cols []storage.ColumnSpec) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = d.QuoteIdent(c.Name) + " " + d.ColumnType(c.Type)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", d.QuoteIdent(name), strings.Join(parts, ",\n  "))
}

// BuildInsertSQL constructs a single multi-row INSERT and its args.
//
// It is pure and deterministic, so placeholder numbering can be unit tested
// without a database.
//
// Constraints:
//   - columns must be non-empty.
//   - every row must have len(columns) cells.
func BuildInsertSQL(d storage.Dialect, name string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(d.QuoteIdent(name))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.QuoteIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(d.Placeholder(p))
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}
	return b.String(), args
}

// ChunkRows splits rows so no chunk needs more than maxParams bind
// parameters. A chunk always holds at least one row.
func ChunkRows(rows [][]any, width, maxParams int) [][][]any {
	if len(rows) == 0 {
		return nil
	}
	per := 1
	if width > 0 && maxParams > width {
		per = maxParams / width
	}

	out := make([][][]any, 0, (len(rows)+per-1)/per)
	for start := 0; start < len(rows); start += per {
		end := start + per
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[start:end])
	}
	return out
}
