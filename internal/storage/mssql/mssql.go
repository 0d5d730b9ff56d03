// Package mssql is the Microsoft SQL Server storage backend.
//
// It opens database/sql with the "sqlserver" driver registered by
// github.com/microsoft/go-mssqldb and reuses the shared sqldb repository.
// DROP TABLE IF EXISTS requires SQL Server 2016 or later.
package mssql

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"salesetl/internal/storage"
	"salesetl/internal/storage/sqldb"
)

// maxParams stays below SQL Server's 2100 parameters per request.
const maxParams = 2000

func init() {
	storage.Register("mssql", Open)
	storage.RegisterDialect("mssql", Dialect{})
}

// Open connects to SQL Server and validates connectivity via PingContext.
func Open(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	return sqldb.Open(ctx, sqldb.Options{
		Driver:       "sqlserver",
		DSN:          cfg.DSN,
		Dialect:      Dialect{},
		MaxParams:    maxParams,
		MaxOpenConns: 4,
	})
}

// Dialect implements storage.Dialect for SQL Server.
type Dialect struct{}

func (Dialect) Name() string { return "mssql" }

// QuoteIdent returns a bracket-quoted identifier for possibly
// schema-qualified names.
//
// Example:
//
//	"dbo.sales" -> [dbo].[sales]
func (Dialect) QuoteIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (Dialect) ColumnType(t storage.ColumnType) string {
	switch t {
	case storage.TypeInteger:
		return "BIGINT"
	case storage.TypeReal:
		return "FLOAT"
	case storage.TypeBoolean:
		return "BIT"
	default:
		return "NVARCHAR(MAX)"
	}
}

func (Dialect) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

func (Dialect) YearOf(expr string) string {
	return "CAST(YEAR(CAST(" + expr + " AS datetime2)) AS varchar(4))"
}

func (Dialect) LimitPrefix(n int) string { return fmt.Sprintf("TOP (%d)", n) }

func (Dialect) LimitSuffix(int) string { return "" }

var _ storage.Dialect = Dialect{}
