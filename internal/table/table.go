package table

import "fmt"

// Shape records which structured variants a column has ever held.
//
// It is maintained incrementally while values are appended, so the
// column-wide flattening decision never needs a second scan.
type Shape struct {
	HasList   bool
	HasObject bool
}

func (s *Shape) observe(v Value) {
	switch v.Kind {
	case KindList:
		s.HasList = true
	case KindObject:
		s.HasObject = true
	}
}

// Column is a named, positional slice of cells.
type Column struct {
	Name   string
	Values []Value
	Shape  Shape
}

func (c *Column) append(v Value) {
	c.Values = append(c.Values, v)
	c.Shape.observe(v)
}

// Replace swaps the column contents and recomputes its shape.
func (c *Column) Replace(values []Value) {
	c.Values = values
	c.Shape = Shape{}
	for _, v := range values {
		c.Shape.observe(v)
	}
}

// Field is one key/value pair of a source record, in document order.
type Field struct {
	Key   string
	Value Value
}

// Table is an ordered collection of equally long columns.
type Table struct {
	Name    string
	Columns []*Column

	rows  int
	index map[string]int
}

// New returns an empty table.
func New(name string) *Table {
	return &Table{Name: name, index: map[string]int{}}
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Column returns the named column or nil.
func (t *Table) Column(name string) *Column {
	i, ok := t.index[name]
	if !ok {
		return nil
	}
	return t.Columns[i]
}

// ColumnNames returns the column names in table order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// AppendRecord adds one row.
//
// Columns are created in first-seen key order. A column that first appears
// in a later record is back-filled with nulls for the earlier rows, and a
// record that lacks an existing column gets a null in it. Both fills use
// Missing, so they stay distinguishable from explicit JSON nulls. When a key repeats
// inside one record the last value wins.
func (t *Table) AppendRecord(fields []Field) {
	seen := make([]bool, len(t.Columns), len(t.Columns)+len(fields))
	for _, f := range fields {
		i, ok := t.index[f.Key]
		if !ok {
			col := &Column{Name: f.Key, Values: make([]Value, t.rows, t.rows+1)}
			for r := range col.Values {
				col.Values[r] = Missing()
			}
			t.Columns = append(t.Columns, col)
			i = len(t.Columns) - 1
			t.index[f.Key] = i
			seen = append(seen, false)
		}
		col := t.Columns[i]
		if seen[i] {
			col.Values[len(col.Values)-1] = f.Value
			col.Shape.observe(f.Value)
			continue
		}
		seen[i] = true
		col.append(f.Value)
	}
	for i, col := range t.Columns {
		if !seen[i] {
			col.append(Missing())
		}
	}
	t.rows++
}

// AddColumn appends a new column at the end of the table.
func (t *Table) AddColumn(name string, values []Value) error {
	if _, ok := t.index[name]; ok {
		return fmt.Errorf("table %s: column %q already exists", t.Name, name)
	}
	if len(values) != t.rows {
		return fmt.Errorf("table %s: column %q has %d values, want %d", t.Name, name, len(values), t.rows)
	}
	col := &Column{Name: name}
	col.Replace(values)
	t.Columns = append(t.Columns, col)
	t.index[name] = len(t.Columns) - 1
	return nil
}

// SetColumn replaces the values of the named column in place, keeping its
// position, or appends it when the table has no such column.
func (t *Table) SetColumn(name string, values []Value) error {
	col := t.Column(name)
	if col == nil {
		return t.AddColumn(name, values)
	}
	if len(values) != t.rows {
		return fmt.Errorf("table %s: column %q has %d values, want %d", t.Name, name, len(values), t.rows)
	}
	col.Replace(values)
	return nil
}

// Drop removes the named column. It reports whether the column existed.
func (t *Table) Drop(name string) bool {
	i, ok := t.index[name]
	if !ok {
		return false
	}
	t.Columns = append(t.Columns[:i], t.Columns[i+1:]...)
	t.reindex()
	return true
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		t.index[c.Name] = i
	}
}

// Row returns the values of row i in column order.
func (t *Table) Row(i int) []Value {
	out := make([]Value, len(t.Columns))
	for j, c := range t.Columns {
		out[j] = c.Values[i]
	}
	return out
}
