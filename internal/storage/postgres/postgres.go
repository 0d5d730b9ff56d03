package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"salesetl/internal/storage"
	"salesetl/internal/storage/sqldb"
)

/*
Repo implements storage.Repository for Postgres.

It provides:
  - Table replacement with DROP + CREATE + COPY in one transaction
    (Postgres DDL is transactional, so a failed load leaves the old table)
  - Query results with pgx numerics converted to float64
*/
type Repo struct {
	pool *pgxpool.Pool
}

// Open creates a pgx pool for cfg.DSN and verifies connectivity.
func Open(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// Dialect implements storage.Repository.
func (r *Repo) Dialect() storage.Dialect { return Dialect{} }

// ReplaceTable implements storage.Repository using pgx.CopyFrom for the rows.
func (r *Repo) ReplaceTable(ctx context.Context, name string, cols []storage.ColumnSpec, rows [][]any) (int64, error) {
	if len(cols) == 0 {
		return 0, fmt.Errorf("replace %s: no columns", name)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("replace %s: begin: %w", name, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	d := Dialect{}
	if _, err := tx.Exec(ctx, sqldb.BuildDropSQL(d, name)); err != nil {
		return 0, fmt.Errorf("replace %s: drop: %w", name, err)
	}
	if _, err := tx.Exec(ctx, sqldb.BuildCreateSQL(d, name, cols)); err != nil {
		return 0, fmt.Errorf("replace %s: create: %w", name, err)
	}

	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}

	n, err := tx.CopyFrom(ctx, identifier(name), names, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("replace %s: copy: %w", name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("replace %s: commit: %w", name, err)
	}
	return n, nil
}

// Query implements storage.Repository.
func (r *Repo) Query(ctx context.Context, query string) (*storage.Result, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	res := &storage.Result{Columns: make([]string, len(fds))}
	for i, fd := range fds {
		res.Columns[i] = fd.Name
	}

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		for i := range vals {
			vals[i] = normalizeCell(vals[i])
		}
		res.Rows = append(res.Rows, vals)
	}
	return res, rows.Err()
}

// normalizeCell converts pgx-specific decoded values. SUM over a BIGINT
// column yields NUMERIC, which pgx decodes as pgtype.Numeric.
func normalizeCell(v any) any {
	if n, ok := v.(pgtype.Numeric); ok {
		if !n.Valid {
			return nil
		}
		f, err := n.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	}
	return sqldb.NormalizeCell(v)
}

// splitQualifiedName splits "schema.table"; anything else is a bare table.
func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func identifier(name string) pgx.Identifier {
	schema, table := splitQualifiedName(name)
	if schema == "" {
		return pgx.Identifier{table}
	}
	return pgx.Identifier{schema, table}
}

// Dialect implements storage.Dialect for Postgres.
type Dialect struct{}

func (Dialect) Name() string { return "postgres" }

// QuoteIdent quotes name, honoring a "schema.table" qualifier.
func (Dialect) QuoteIdent(name string) string { return identifier(name).Sanitize() }

func (Dialect) ColumnType(t storage.ColumnType) string {
	switch t {
	case storage.TypeInteger:
		return "BIGINT"
	case storage.TypeReal:
		return "DOUBLE PRECISION"
	case storage.TypeBoolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func (Dialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (Dialect) YearOf(expr string) string {
	return "to_char(CAST(" + expr + " AS timestamp), 'YYYY')"
}

func (Dialect) LimitPrefix(int) string { return "" }

func (Dialect) LimitSuffix(n int) string { return "LIMIT " + strconv.Itoa(n) }

var (
	_ storage.Repository = (*Repo)(nil)
	_ storage.Dialect    = Dialect{}
)
