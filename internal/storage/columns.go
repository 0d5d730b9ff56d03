package storage

import (
	"fmt"

	"salesetl/internal/table"
)

// ColumnType is the storage type inferred for a loaded column.
type ColumnType int

const (
	TypeText ColumnType = iota
	TypeInteger
	TypeReal
	TypeBoolean
)

func (t ColumnType) String() string {
	switch t {
	case TypeInteger:
		return "integer"
	case TypeReal:
		return "real"
	case TypeBoolean:
		return "boolean"
	default:
		return "text"
	}
}

// ColumnSpec is one column of a table to create.
type ColumnSpec struct {
	Name string
	Type ColumnType
}

// InferColumnType picks the narrowest storage type holding every non-null value.
//
// Rules:
//   - all null (or empty) -> text
//   - ints only -> integer
//   - ints and floats -> real
//   - bools only -> boolean
//   - anything else (strings, mixes with bools or text) -> text
func InferColumnType(values []table.Value) ColumnType {
	var ints, floats, bools, other bool
	for _, v := range values {
		switch v.Kind {
		case table.KindNull:
		case table.KindInt:
			ints = true
		case table.KindFloat:
			floats = true
		case table.KindBool:
			bools = true
		default:
			other = true
		}
	}

	switch {
	case other:
		return TypeText
	case bools && (ints || floats):
		return TypeText
	case bools:
		return TypeBoolean
	case floats:
		return TypeReal
	case ints:
		return TypeInteger
	default:
		return TypeText
	}
}

// ColumnsFor infers a ColumnSpec for every column of t, in table order.
func ColumnsFor(t *table.Table) []ColumnSpec {
	out := make([]ColumnSpec, 0, len(t.Columns))
	for _, c := range t.Columns {
		out = append(out, ColumnSpec{Name: c.Name, Type: InferColumnType(c.Values)})
	}
	return out
}

// RowsFor converts t into driver-ready rows following cols.
//
// Cells are coerced to the column type: integer -> int64, real -> float64,
// boolean -> bool, text -> Value.Text(). Nulls stay nil.
//
// Errors:
//   - a column named in cols is missing from t
//   - a cell cannot be represented in its column type
func RowsFor(t *table.Table, cols []ColumnSpec) ([][]any, error) {
	srcs := make([]*table.Column, len(cols))
	for i, c := range cols {
		srcs[i] = t.Column(c.Name)
		if srcs[i] == nil {
			return nil, fmt.Errorf("rows for %s: missing column %q", t.Name, c.Name)
		}
	}

	rows := make([][]any, t.Len())
	for r := range rows {
		row := make([]any, len(cols))
		for i, c := range cols {
			cell, err := coerce(srcs[i].Values[r], c.Type)
			if err != nil {
				return nil, fmt.Errorf("rows for %s: row %d column %q: %w", t.Name, r, c.Name, err)
			}
			row[i] = cell
		}
		rows[r] = row
	}
	return rows, nil
}

func coerce(v table.Value, t ColumnType) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	switch t {
	case TypeInteger:
		if v.Kind == table.KindInt {
			return v.I, nil
		}
	case TypeReal:
		switch v.Kind {
		case table.KindFloat:
			return v.F, nil
		case table.KindInt:
			return float64(v.I), nil
		}
	case TypeBoolean:
		if v.Kind == table.KindBool {
			return v.B, nil
		}
	default:
		return v.Text(), nil
	}
	return nil, fmt.Errorf("%s value does not fit %s column", v.Kind, t)
}
