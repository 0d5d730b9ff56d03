// Package normalize flattens fetched tables into store-compatible columns.
//
// Two passes run in order:
//
//  1. Reference splitting: each mapped (id, name) pair column becomes two
//     scalar columns appended at the end of the table; the source column is
//     removed.
//  2. Column flattening: any remaining column that ever held a list is
//     rewritten as comma-joined text, then any column that ever held an
//     object is rewritten as JSON text. The decision is column-wide, so a
//     flattened column holds text in every row, nulls included.
package normalize

import (
	"strings"

	"salesetl/internal/table"
)

// Mapping splits Source into the derived columns Num and Name.
type Mapping struct {
	Source string `json:"source" mapstructure:"source"`
	Num    string `json:"num" mapstructure:"num"`
	Name   string `json:"name" mapstructure:"name"`
}

// Reference is a nullable (id, display name) pair.
type Reference struct {
	ID    table.Value
	Name  table.Value
	Valid bool
}

// ParseReference reads a reference cell.
//
// A list of at least two elements yields its first and second elements; any
// other value (scalar, false, null, a shorter list) yields an invalid
// reference whose ID and Name are both null.
func ParseReference(v table.Value) Reference {
	if v.Kind != table.KindList || len(v.Elems) < 2 {
		return Reference{ID: table.Null(), Name: table.Null()}
	}
	return Reference{ID: v.Elems[0], Name: v.Elems[1], Valid: true}
}

// Stats summarizes what Apply changed.
type Stats struct {
	SplitColumns  []string
	ListColumns   []string
	ObjectColumns []string
	Unresolved    map[string]int
}

// Text form of null cells in a flattened column: explicit JSON nulls and
// keys the record never carried.
const (
	nullText   = "None"
	absentText = "nan"
)

// Apply normalizes t in place.
//
// A mapping whose source column is absent still produces both derived
// columns, filled with nulls, so downstream queries always find them. A
// derived column that already exists in the record is overwritten in place.
func Apply(t *table.Table, mappings []Mapping) (Stats, error) {
	st := Stats{Unresolved: map[string]int{}}

	for _, m := range mappings {
		nums, names, unresolved := splitColumn(t, m.Source)
		if err := t.SetColumn(m.Num, nums); err != nil {
			return st, err
		}
		if err := t.SetColumn(m.Name, names); err != nil {
			return st, err
		}
		t.Drop(m.Source)
		st.SplitColumns = append(st.SplitColumns, m.Source)
		if unresolved > 0 {
			st.Unresolved[m.Source] = unresolved
		}
	}

	for _, col := range t.Columns {
		if FlattenLists(col) {
			st.ListColumns = append(st.ListColumns, col.Name)
		}
		if FlattenObjects(col) {
			st.ObjectColumns = append(st.ObjectColumns, col.Name)
		}
	}
	return st, nil
}

func splitColumn(t *table.Table, source string) (nums, names []table.Value, unresolved int) {
	n := t.Len()
	nums = make([]table.Value, n)
	names = make([]table.Value, n)

	col := t.Column(source)
	for i := 0; i < n; i++ {
		ref := Reference{ID: table.Null(), Name: table.Null()}
		if col != nil {
			ref = ParseReference(col.Values[i])
		}
		if !ref.Valid {
			unresolved++
		}
		nums[i] = ref.ID
		names[i] = ref.Name
	}
	return nums, names, unresolved
}

// FlattenLists rewrites col as text when any of its cells is a list.
//
// Lists become their elements' text joined by ","; every other cell, nulls
// included, becomes its plain text. It reports whether col was rewritten.
func FlattenLists(col *table.Column) bool {
	if !col.Shape.HasList {
		return false
	}
	out := make([]table.Value, len(col.Values))
	for i, v := range col.Values {
		if v.Kind == table.KindList {
			out[i] = table.String(JoinList(v))
			continue
		}
		out[i] = table.String(cellText(v))
	}
	col.Replace(out)
	return true
}

// FlattenObjects rewrites col as text when any of its cells is an object.
//
// Objects become compact JSON text; every other cell, nulls included,
// becomes its plain text. It reports whether col was rewritten.
func FlattenObjects(col *table.Column) bool {
	if !col.Shape.HasObject {
		return false
	}
	out := make([]table.Value, len(col.Values))
	for i, v := range col.Values {
		out[i] = table.String(cellText(v))
	}
	col.Replace(out)
	return true
}

// JoinList renders a list cell as comma-joined element text.
func JoinList(v table.Value) string {
	parts := make([]string, len(v.Elems))
	for i, e := range v.Elems {
		parts[i] = cellText(e)
	}
	return strings.Join(parts, ",")
}

func cellText(v table.Value) string {
	if !v.IsNull() {
		return v.Text()
	}
	if v.Absent {
		return absentText
	}
	return nullText
}
