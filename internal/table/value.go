// Package table holds the in-memory representation of a fetched resource:
// an ordered set of named columns whose cells are tagged variants.
//
// Cells are typed once, while parsing, so later stages (normalize, storage)
// never need to re-inspect raw JSON to decide what a value is.
package table

import (
	"math"
	"strconv"
	"strings"
)

// Kind is the variant tag of a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is a single cell.
//
// For KindList and KindObject, Raw holds the compact JSON text of the value
// (object keys in document order). KindList additionally exposes its elements.
type Value struct {
	Kind Kind
	// Absent marks a null that stands for a key the source record did not
	// carry, as opposed to an explicit JSON null.
	Absent bool
	B      bool
	I      int64
	F      float64
	S      string
	Elems  []Value
	Raw    string
}

func Null() Value             { return Value{} }
func Bool(b bool) Value       { return Value{Kind: KindBool, B: b} }
func Int(i int64) Value       { return Value{Kind: KindInt, I: i} }
func Float(f float64) Value   { return Value{Kind: KindFloat, F: f} }
func String(s string) Value   { return Value{Kind: KindString, S: s} }
func Object(raw string) Value { return Value{Kind: KindObject, Raw: raw} }

// Missing returns the null that fills a cell whose key was absent.
func Missing() Value { return Value{Absent: true} }

// List builds a list value from its compact JSON text and parsed elements.
func List(raw string, elems []Value) Value {
	return Value{Kind: KindList, Raw: raw, Elems: elems}
}

// IsNull reports whether v is the null variant.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// Text returns the plain string form of v.
//
// Numbers use their shortest round-trip representation, booleans are
// "true"/"false", lists and objects render as compact JSON and null renders
// as the empty string.
func (v Value) Text() string {
	switch v.Kind {
	case KindBool:
		return strconv.FormatBool(v.B)
	case KindInt:
		return strconv.FormatInt(v.I, 10)
	case KindFloat:
		return formatFloat(v.F)
	case KindString:
		return v.S
	case KindList, KindObject:
		return v.Raw
	default:
		return ""
	}
}

// Equal compares two values by variant and content.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindBool:
		return v.B == o.B
	case KindInt:
		return v.I == o.I
	case KindFloat:
		return v.F == o.F || (math.IsNaN(v.F) && math.IsNaN(o.F))
	case KindString:
		return v.S == o.S
	default:
		return v.Raw == o.Raw
	}
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	// keep a fractional marker so 3.0 stays distinguishable from the integer 3
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
