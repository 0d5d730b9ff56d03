// Package mysql is the MySQL storage backend (MySQL 8.0+ for window
// functions), built on github.com/go-sql-driver/mysql.
//
// MySQL commits DDL implicitly, so ReplaceTable is not atomic here: a failed
// insert leaves the freshly created table empty.
package mysql

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	driver "github.com/go-sql-driver/mysql"

	"salesetl/internal/storage"
	"salesetl/internal/storage/sqldb"
)

func init() {
	storage.Register("mysql", Open)
	storage.RegisterDialect("mysql", Dialect{})
}

// Open connects to MySQL. The DSN uses the driver's
// "user:pass@tcp(host:3306)/db" form; parseTime is forced off so
// timestamps stored as text come back as strings.
func Open(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	dsn, err := normalizeDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	return sqldb.Open(ctx, sqldb.Options{
		Driver:       "mysql",
		DSN:          dsn,
		Dialect:      Dialect{},
		MaxParams:    10000,
		MaxOpenConns: 4,
	})
}

func normalizeDSN(dsn string) (string, error) {
	c, err := driver.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("mysql: parse dsn: %w", err)
	}
	c.ParseTime = false
	c.MultiStatements = false
	return c.FormatDSN(), nil
}

// Dialect implements storage.Dialect for MySQL.
type Dialect struct{}

func (Dialect) Name() string { return "mysql" }

// QuoteIdent backtick-quotes each part of a possibly database-qualified name.
func (Dialect) QuoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = "`" + strings.ReplaceAll(strings.TrimSpace(parts[i]), "`", "``") + "`"
	}
	return strings.Join(parts, ".")
}

func (Dialect) ColumnType(t storage.ColumnType) string {
	switch t {
	case storage.TypeInteger:
		return "BIGINT"
	case storage.TypeReal:
		return "DOUBLE"
	case storage.TypeBoolean:
		return "BOOLEAN"
	default:
		return "LONGTEXT"
	}
}

func (Dialect) Placeholder(int) string { return "?" }

func (Dialect) YearOf(expr string) string { return "DATE_FORMAT(" + expr + ", '%Y')" }

func (Dialect) LimitPrefix(int) string { return "" }

func (Dialect) LimitSuffix(n int) string { return "LIMIT " + strconv.Itoa(n) }

var _ storage.Dialect = Dialect{}
