package sqlite

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"salesetl/internal/storage"
)

func openTemp(t *testing.T) storage.Repository {
	t.Helper()
	repo, err := storage.New(context.Background(), storage.Config{
		Kind: "sqlite",
		DSN:  filepath.Join(t.TempDir(), "data.db"),
	})
	if err != nil {
		t.Fatalf("storage.New(sqlite) err=%v", err)
	}
	t.Cleanup(repo.Close)
	return repo
}

func TestReplaceTable_RoundTripAndReplace(t *testing.T) {
	ctx := context.Background()
	repo := openTemp(t)

	cols := []storage.ColumnSpec{
		{Name: "id", Type: storage.TypeInteger},
		{Name: "qty", Type: storage.TypeReal},
		{Name: "name", Type: storage.TypeText},
		{Name: "active", Type: storage.TypeBoolean},
	}
	rows := [][]any{
		{int64(1), 2.5, "Phone", true},
		{int64(2), nil, nil, false},
	}

	n, err := repo.ReplaceTable(ctx, "products", cols, rows)
	if err != nil {
		t.Fatalf("ReplaceTable() err=%v", err)
	}
	if n != 2 {
		t.Fatalf("inserted=%d, want 2", n)
	}

	// Second load replaces instead of appending and may change the shape.
	n, err = repo.ReplaceTable(ctx, "products", cols[:3], rows[:1])
	if err != nil {
		t.Fatalf("second ReplaceTable() err=%v", err)
	}
	if n != 1 {
		t.Fatalf("inserted=%d, want 1", n)
	}

	res, err := repo.Query(ctx, `SELECT id, qty, name FROM products ORDER BY id`)
	if err != nil {
		t.Fatalf("Query() err=%v", err)
	}
	if !reflect.DeepEqual(res.Columns, []string{"id", "qty", "name"}) {
		t.Fatalf("Columns=%v", res.Columns)
	}
	want := [][]any{{int64(1), 2.5, "Phone"}}
	if !reflect.DeepEqual(res.Rows, want) {
		t.Fatalf("Rows=%#v, want %#v", res.Rows, want)
	}
}

func TestReplaceTable_ManyRowsAreChunked(t *testing.T) {
	ctx := context.Background()
	repo := openTemp(t)

	cols := []storage.ColumnSpec{{Name: "a", Type: storage.TypeInteger}, {Name: "b", Type: storage.TypeInteger}}
	rows := make([][]any, 1500)
	for i := range rows {
		rows[i] = []any{int64(i), int64(i * 2)}
	}

	n, err := repo.ReplaceTable(ctx, "big", cols, rows)
	if err != nil {
		t.Fatalf("ReplaceTable() err=%v", err)
	}
	if n != int64(len(rows)) {
		t.Fatalf("inserted=%d, want %d", n, len(rows))
	}

	res, err := repo.Query(ctx, `SELECT COUNT(*), SUM(b) FROM big`)
	if err != nil {
		t.Fatalf("Query() err=%v", err)
	}
	if got := res.Rows[0][0]; got != int64(1500) {
		t.Fatalf("count=%v, want 1500", got)
	}
}

func TestReplaceTable_NoColumns(t *testing.T) {
	repo := openTemp(t)
	if _, err := repo.ReplaceTable(context.Background(), "empty", nil, nil); err == nil {
		t.Fatalf("expected error for table without columns")
	}
}

func TestQuery_MissingTableErrors(t *testing.T) {
	repo := openTemp(t)
	if _, err := repo.Query(context.Background(), `SELECT * FROM customers`); err == nil {
		t.Fatalf("expected error querying a missing table")
	}
}

func TestDialect_YearOf(t *testing.T) {
	ctx := context.Background()
	repo := openTemp(t)
	d := repo.Dialect()

	if _, err := repo.ReplaceTable(ctx, "sales", []storage.ColumnSpec{{Name: "create_date", Type: storage.TypeText}},
		[][]any{{"2024-03-05 10:11:12"}, {"2023-12-31 23:59:59"}}); err != nil {
		t.Fatalf("ReplaceTable() err=%v", err)
	}

	q := "SELECT " + d.YearOf("create_date") + " FROM sales ORDER BY create_date " + d.LimitSuffix(1)
	res, err := repo.Query(ctx, q)
	if err != nil {
		t.Fatalf("Query(%q) err=%v", q, err)
	}
	if len(res.Rows) != 1 || res.Rows[0][0] != "2023" {
		t.Fatalf("Rows=%#v, want [[2023]]", res.Rows)
	}
}
