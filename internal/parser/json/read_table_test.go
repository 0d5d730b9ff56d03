package json

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"salesetl/internal/table"
)

// readAll runs ReadTable over input and captures onParseErr calls as
// "line=<n> err=<msg>" strings so comparisons stay stable.
func readAll(ctx context.Context, input string) (*table.Table, error, []string) {
	var calls []string
	tb, err := ReadTable(ctx, "t", strings.NewReader(input), func(line int, e error) {
		calls = append(calls, fmt.Sprintf("line=%d err=%s", line, e.Error()))
	})
	return tb, err, calls
}

func TestReadTable_RootArray_KeepsKeyOrderAndTrailingJSONL(t *testing.T) {
	input := `[
		{"id": 1, "name": "Phone", "categ_id": [5, "Electronics"]},
		null,
		{"name": "Tablet", "id": 2, "extra": {"b": 1, "a": [true, null]}}
	]
	{"id": 3}`

	tb, err, calls := readAll(context.Background(), input)
	if err != nil {
		t.Fatalf("ReadTable() err=%v", err)
	}
	if len(calls) != 0 {
		t.Fatalf("onParseErr calls=%v, want none", calls)
	}
	if tb.Len() != 3 {
		t.Fatalf("Len()=%d, want 3", tb.Len())
	}
	if got, want := tb.ColumnNames(), []string{"id", "name", "categ_id", "extra"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ColumnNames()=%v, want %v", got, want)
	}

	ref := tb.Column("categ_id").Values[0]
	if ref.Kind != table.KindList || len(ref.Elems) != 2 {
		t.Fatalf("categ_id[0]=%+v, want 2-element list", ref)
	}
	if ref.Elems[0].Kind != table.KindInt || ref.Elems[0].I != 5 {
		t.Fatalf("categ_id[0][0]=%+v, want Int(5)", ref.Elems[0])
	}
	if ref.Elems[1].S != "Electronics" {
		t.Fatalf("categ_id[0][1]=%+v, want Electronics", ref.Elems[1])
	}
	if ref.Raw != `[5,"Electronics"]` {
		t.Fatalf("categ_id[0].Raw=%q", ref.Raw)
	}

	obj := tb.Column("extra").Values[1]
	if obj.Kind != table.KindObject || obj.Raw != `{"b":1,"a":[true,null]}` {
		t.Fatalf("extra[1]=%+v, want compact object in document order", obj)
	}
	if !tb.Column("extra").Values[2].IsNull() || !tb.Column("name").Values[2].IsNull() {
		t.Fatalf("trailing record should have null name/extra")
	}
	if tb.Column("id").Values[2].I != 3 {
		t.Fatalf("trailing record id=%+v, want 3", tb.Column("id").Values[2])
	}
}

func TestReadTable_RootObject_EnvelopeAndSingle(t *testing.T) {
	t.Run("envelope", func(t *testing.T) {
		tb, err, _ := readAll(context.Background(), `{"count": 2, "records": [{"a": 1}, {"a": 2}], "more": [{"a": 9}]}`)
		if err != nil {
			t.Fatalf("ReadTable() err=%v", err)
		}
		if tb.Len() != 2 || tb.Column("count") != nil {
			t.Fatalf("envelope should stream the first array only, got cols=%v len=%d", tb.ColumnNames(), tb.Len())
		}
	})

	t.Run("single", func(t *testing.T) {
		tb, err, _ := readAll(context.Background(), `{"id": 7, "meta": {"x": 1}}`)
		if err != nil {
			t.Fatalf("ReadTable() err=%v", err)
		}
		if tb.Len() != 1 || tb.Column("meta").Values[0].Kind != table.KindObject {
			t.Fatalf("single record not materialized: cols=%v", tb.ColumnNames())
		}
	})

	t.Run("empty_document", func(t *testing.T) {
		tb, err, _ := readAll(context.Background(), "   ")
		if err != nil {
			t.Fatalf("ReadTable() err=%v", err)
		}
		if tb.Len() != 0 {
			t.Fatalf("Len()=%d, want 0", tb.Len())
		}
	})

	t.Run("utf8_bom", func(t *testing.T) {
		tb, err, _ := readAll(context.Background(), "\xef\xbb\xbf[{\"a\": 1}]")
		if err != nil {
			t.Fatalf("ReadTable() err=%v", err)
		}
		if tb.Len() != 1 {
			t.Fatalf("Len()=%d, want 1", tb.Len())
		}
	})
}

func TestReadTable_ErrorPaths(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		wantErrSubstr string
		wantParseLine string
	}{
		{name: "unsupported_root_null", input: `null`, wantErrSubstr: "unsupported root token", wantParseLine: "line=0"},
		{name: "array_element_not_object", input: `[{"a":1}, 1]`, wantErrSubstr: "array element not an object", wantParseLine: "line=2"},
		{name: "envelope_element_not_object", input: `{"records":[1]}`, wantErrSubstr: "array element not an object", wantParseLine: "line=1"},
		{name: "truncated_array", input: `[{"a":1}, {"a":`, wantErrSubstr: "decode array element", wantParseLine: "line=2"},
		{name: "trailing_garbage", input: `[{"x":1}] not-json`, wantErrSubstr: "decode trailing object", wantParseLine: "line=2"},
		{name: "trailing_scalar", input: `{"x":1} 5`, wantErrSubstr: "trailing value not an object", wantParseLine: "line=2"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err, calls := readAll(context.Background(), tc.input)
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErrSubstr) {
				t.Fatalf("err=%q, want substring %q", err.Error(), tc.wantErrSubstr)
			}
			if len(calls) == 0 || !strings.Contains(calls[0], tc.wantParseLine) {
				t.Fatalf("onParseErr=%v, want first call containing %q", calls, tc.wantParseLine)
			}
		})
	}
}

func TestReadTable_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReadTable(ctx, "t", strings.NewReader(`[{"a":1},{"a":2}]`), nil)
	if err != context.Canceled {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}

func TestValueOf_Numbers(t *testing.T) {
	tests := []struct {
		raw      string
		wantKind table.Kind
		wantText string
	}{
		{raw: `42`, wantKind: table.KindInt, wantText: "42"},
		{raw: `-7`, wantKind: table.KindInt, wantText: "-7"},
		{raw: `2.5`, wantKind: table.KindFloat, wantText: "2.5"},
		{raw: `1.0`, wantKind: table.KindFloat, wantText: "1.0"},
		{raw: `1e3`, wantKind: table.KindFloat, wantText: "1000.0"},
		{raw: `92233720368547758070`, wantKind: table.KindFloat},
	}
	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			v := ValueOf(gjson.Parse(tc.raw))
			if v.Kind != tc.wantKind {
				t.Fatalf("kind=%s, want %s", v.Kind, tc.wantKind)
			}
			if tc.wantText != "" && v.Text() != tc.wantText {
				t.Fatalf("Text()=%q, want %q", v.Text(), tc.wantText)
			}
		})
	}
}
