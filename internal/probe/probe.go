// Package probe inspects a fetched resource and reports how it will land in
// the store.
//
// The report answers the questions one has before adding a resource to the
// config:
//   - which columns look like (id, name) references and need a mapping
//   - what SQL type each column gets after normalization
//   - how sparse and how unique each column is
//
// Inspection is best-effort and never fails on odd data; the only errors are
// the ones normalization itself returns.
package probe

import (
	"fmt"
	"sort"
	"strings"

	"salesetl/internal/normalize"
	"salesetl/internal/storage"
	"salesetl/internal/table"
)

// distinctCapPerColumn bounds the memory spent on distinct counting.
const distinctCapPerColumn = 10000

// Column describes one column after normalization.
type Column struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	SQLType string `json:"sql_type"`

	// Values counts non-null cells; Nulls the rest.
	Values int `json:"values"`
	Nulls  int `json:"nulls"`

	// Distinct counts distinct non-null cells up to distinctCapPerColumn;
	// Capped is set once the cap was hit.
	Distinct int  `json:"distinct"`
	Capped   bool `json:"capped,omitempty"`

	// Flattened names the pass that rewrote the column: "list" or "object".
	Flattened string `json:"flattened,omitempty"`
}

// Report is the result of Inspect.
type Report struct {
	Resource string              `json:"resource"`
	Dialect  string              `json:"dialect"`
	Rows     int                 `json:"rows"`
	Columns  []Column            `json:"columns"`
	Applied  []string            `json:"applied_mappings,omitempty"`
	Suggest  []normalize.Mapping `json:"suggested_mappings,omitempty"`
}

// Inspect suggests reference mappings on the raw table, normalizes t in place
// with mappings and describes the resulting columns for dialect d.
//
// Columns already covered by mappings are never suggested.
func Inspect(t *table.Table, mappings []normalize.Mapping, d storage.Dialect) (Report, error) {
	rep := Report{Resource: t.Name, Dialect: d.Name(), Rows: t.Len()}

	mapped := map[string]bool{}
	for _, m := range mappings {
		mapped[m.Source] = true
	}
	for _, m := range SuggestMappings(t) {
		if !mapped[m.Source] {
			rep.Suggest = append(rep.Suggest, m)
		}
	}

	st, err := normalize.Apply(t, mappings)
	if err != nil {
		return rep, fmt.Errorf("probe %s: %w", t.Name, err)
	}
	rep.Applied = st.SplitColumns

	flattened := map[string]string{}
	for _, c := range st.ListColumns {
		flattened[c] = "list"
	}
	for _, c := range st.ObjectColumns {
		flattened[c] = "object"
	}

	for _, spec := range storage.ColumnsFor(t) {
		col := describe(t.Column(spec.Name))
		col.Type = spec.Type.String()
		col.SQLType = d.ColumnType(spec.Type)
		col.Flattened = flattened[spec.Name]
		rep.Columns = append(rep.Columns, col)
	}
	return rep, nil
}

func describe(c *table.Column) Column {
	out := Column{Name: c.Name}
	seen := map[string]struct{}{}
	for _, v := range c.Values {
		if v.IsNull() {
			out.Nulls++
			continue
		}
		out.Values++
		if out.Capped {
			continue
		}
		seen[v.Kind.String()+":"+v.Text()] = struct{}{}
		if len(seen) >= distinctCapPerColumn {
			out.Capped = true
		}
	}
	out.Distinct = len(seen)
	return out
}

// SuggestMappings returns a mapping for every column that holds at least one
// (int id, string name) pair and otherwise only nulls or false. Derived
// names follow the <column>_num / <column>_name convention. Output keeps the
// table's column order.
func SuggestMappings(t *table.Table) []normalize.Mapping {
	var out []normalize.Mapping
	for _, c := range t.Columns {
		if !c.Shape.HasList || !looksLikeReference(c) {
			continue
		}
		out = append(out, normalize.Mapping{Source: c.Name, Num: c.Name + "_num", Name: c.Name + "_name"})
	}
	return out
}

func looksLikeReference(c *table.Column) bool {
	pairs := 0
	for _, v := range c.Values {
		switch {
		case v.IsNull(), v.Kind == table.KindBool && !v.B:
		case v.Kind == table.KindList && len(v.Elems) >= 2 &&
			v.Elems[0].Kind == table.KindInt && v.Elems[1].Kind == table.KindString:
			pairs++
		default:
			return false
		}
	}
	return pairs > 0
}

// Format renders rep as a fixed-width text table, columns in load order.
func Format(rep Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "resource=%s rows=%d dialect=%s\n", rep.Resource, rep.Rows, rep.Dialect)
	fmt.Fprintf(&b, "%-24s\t%-8s\t%-16s\t%-7s\t%-7s\t%s\n", "column", "type", "sql_type", "nulls", "unique", "flattened")
	for _, c := range rep.Columns {
		unique := fmt.Sprintf("%d", c.Distinct)
		if c.Capped {
			unique += "+"
		}
		fmt.Fprintf(&b, "%-24s\t%-8s\t%-16s\t%-7d\t%-7s\t%s\n", c.Name, c.Type, c.SQLType, c.Nulls, unique, c.Flattened)
	}
	if len(rep.Suggest) > 0 {
		names := make([]string, 0, len(rep.Suggest))
		for _, m := range rep.Suggest {
			names = append(names, m.Source)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "unmapped references: %s\n", strings.Join(names, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}
