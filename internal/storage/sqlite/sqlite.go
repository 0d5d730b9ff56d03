// Package sqlite is the default storage backend: a single database file
// opened through the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"salesetl/internal/storage"
	"salesetl/internal/storage/sqldb"
)

// DefaultDSN is the database file used when no DSN is configured.
const DefaultDSN = "data.db"

func init() {
	storage.Register("sqlite", Open)
	storage.RegisterDialect("sqlite", Dialect{})
}

// Open opens (creating if needed) the SQLite database at cfg.DSN.
//
// Edge cases:
//   - An empty DSN falls back to DefaultDSN in the working directory.
//   - The pool is capped at one connection; SQLite has a single writer and
//     ":memory:" databases are per-connection.
func Open(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	dsn := cfg.DSN
	if strings.TrimSpace(dsn) == "" {
		dsn = DefaultDSN
	}
	return sqldb.Open(ctx, sqldb.Options{
		Driver:       "sqlite",
		DSN:          dsn,
		Dialect:      Dialect{},
		MaxParams:    999,
		MaxOpenConns: 1,
	})
}

// Dialect implements storage.Dialect for SQLite.
type Dialect struct{}

func (Dialect) Name() string { return "sqlite" }

// QuoteIdent uses SQLite "quoted identifiers".
func (Dialect) QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// ColumnType maps to SQLite type affinities. Booleans are stored as 0/1
// integers; SQLite has no boolean storage class.
func (Dialect) ColumnType(t storage.ColumnType) string {
	switch t {
	case storage.TypeInteger, storage.TypeBoolean:
		return "INTEGER"
	case storage.TypeReal:
		return "REAL"
	default:
		return "TEXT"
	}
}

func (Dialect) Placeholder(int) string { return "?" }

func (Dialect) YearOf(expr string) string { return "strftime('%Y', " + expr + ")" }

func (Dialect) LimitPrefix(int) string { return "" }

func (Dialect) LimitSuffix(n int) string { return "LIMIT " + strconv.Itoa(n) }

var _ storage.Dialect = Dialect{}
