package mysql

import (
	"strings"
	"testing"

	"salesetl/internal/storage"
	"salesetl/internal/storage/sqldb"
)

func TestNormalizeDSN(t *testing.T) {
	got, err := normalizeDSN("etl:secret@tcp(db:3306)/sales?parseTime=true")
	if err != nil {
		t.Fatalf("normalizeDSN() err=%v", err)
	}
	if strings.Contains(got, "parseTime=true") {
		t.Fatalf("normalizeDSN()=%q, parseTime must be off", got)
	}
	if !strings.Contains(got, "tcp(db:3306)/sales") {
		t.Fatalf("normalizeDSN()=%q lost address or database", got)
	}

	if _, err := normalizeDSN("not a dsn"); err == nil {
		t.Fatalf("normalizeDSN(garbage) err=nil, want error")
	}
}

func TestDialect(t *testing.T) {
	d := Dialect{}
	if got := d.QuoteIdent("shop.sales"); got != "`shop`.`sales`" {
		t.Fatalf("QuoteIdent()=%q", got)
	}
	if got := d.YearOf("s.create_date"); got != "DATE_FORMAT(s.create_date, '%Y')" {
		t.Fatalf("YearOf()=%q", got)
	}

	sql, _ := sqldb.BuildInsertSQL(d, "sales", []string{"id"}, [][]any{{1}, {2}})
	if sql != "INSERT INTO `sales` (`id`) VALUES (?), (?)" {
		t.Fatalf("insert sql=%q", sql)
	}

	create := sqldb.BuildCreateSQL(d, "sales", []storage.ColumnSpec{{Name: "note", Type: storage.TypeText}})
	if !strings.Contains(create, "`note` LONGTEXT") {
		t.Fatalf("create sql=%q", create)
	}
}
