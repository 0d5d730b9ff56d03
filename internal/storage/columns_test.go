package storage

import (
	"reflect"
	"testing"

	"salesetl/internal/table"
)

func TestInferColumnType(t *testing.T) {
	tests := []struct {
		name   string
		values []table.Value
		want   ColumnType
	}{
		{name: "empty", values: nil, want: TypeText},
		{name: "all_null", values: []table.Value{table.Null(), table.Null()}, want: TypeText},
		{name: "ints", values: []table.Value{table.Int(1), table.Null(), table.Int(3)}, want: TypeInteger},
		{name: "ints_and_floats", values: []table.Value{table.Int(1), table.Float(2.5)}, want: TypeReal},
		{name: "bools", values: []table.Value{table.Bool(true), table.Null()}, want: TypeBoolean},
		{name: "bool_and_int", values: []table.Value{table.Bool(false), table.Int(1)}, want: TypeText},
		{name: "strings", values: []table.Value{table.String("a"), table.Int(1)}, want: TypeText},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := InferColumnType(tc.values); got != tc.want {
				t.Fatalf("InferColumnType()=%s, want %s", got, tc.want)
			}
		})
	}
}

func TestColumnsForAndRowsFor(t *testing.T) {
	tb := table.New("sales")
	tb.AppendRecord([]table.Field{
		{Key: "id", Value: table.Int(1)},
		{Key: "qty", Value: table.Int(2)},
		{Key: "active", Value: table.Bool(true)},
		{Key: "note", Value: table.String("x")},
	})
	tb.AppendRecord([]table.Field{
		{Key: "id", Value: table.Int(2)},
		{Key: "qty", Value: table.Float(1.5)},
		{Key: "note", Value: table.Bool(false)},
	})

	cols := ColumnsFor(tb)
	wantCols := []ColumnSpec{
		{Name: "id", Type: TypeInteger},
		{Name: "qty", Type: TypeReal},
		{Name: "active", Type: TypeBoolean},
		{Name: "note", Type: TypeText},
	}
	if !reflect.DeepEqual(cols, wantCols) {
		t.Fatalf("ColumnsFor()=%+v, want %+v", cols, wantCols)
	}

	rows, err := RowsFor(tb, cols)
	if err != nil {
		t.Fatalf("RowsFor() err=%v", err)
	}
	want := [][]any{
		{int64(1), float64(2), true, "x"},
		{int64(2), 1.5, nil, "false"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("RowsFor()=%#v, want %#v", rows, want)
	}
}

func TestRowsFor_Errors(t *testing.T) {
	tb := table.New("t")
	tb.AppendRecord([]table.Field{{Key: "a", Value: table.String("x")}})

	if _, err := RowsFor(tb, []ColumnSpec{{Name: "missing", Type: TypeText}}); err == nil {
		t.Fatalf("expected missing column error")
	}
	if _, err := RowsFor(tb, []ColumnSpec{{Name: "a", Type: TypeInteger}}); err == nil {
		t.Fatalf("expected type mismatch error")
	}
}
