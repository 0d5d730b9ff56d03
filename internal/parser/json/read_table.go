// Package json reads JSON documents into table.Table values.
//
// Supported document shapes:
//   - a root array of objects (null elements are skipped)
//   - a root object whose first array-valued field holds the records (envelope)
//   - a single root object (one record)
//
// Any of these may be followed by trailing JSONL objects, which become
// additional records.
package json

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"salesetl/internal/table"
)

// ReadTable parses r and returns its records as a table named name.
//
// Records are array elements decoded one at a time, so a large root array is
// never held twice in memory. Each record is walked with gjson so columns keep
// the key order of the document.
//
// onParseErr, when non-nil, is called with the 1-based record number at which
// a parse error happened (0 when the document root itself is unreadable).
func ReadTable(
	ctx context.Context,
	name string,
	r io.Reader,
	onParseErr func(line int, err error),
) (*table.Table, error) {
	br := bufio.NewReader(r)
	t := table.New(name)
	line := 0

	fail := func(at int, err error) error {
		if onParseErr != nil {
			onParseErr(at, err)
		}
		return err
	}

	emit := func(obj gjson.Result) error {
		line++
		t.AppendRecord(fieldsOf(obj))
		return nil
	}

	first, err := peekNonSpace(br)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return t, nil
		}
		return nil, fail(0, fmt.Errorf("json: read first token: %w", err))
	}

	dec := json.NewDecoder(br)

	switch first {
	case '[':
		if _, err := dec.Token(); err != nil {
			return nil, fail(0, fmt.Errorf("json: read first token: %w", err))
		}
		for dec.More() {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil, fail(line+1, fmt.Errorf("json: decode array element: %w", err))
			}
			if err := emitElement(gjson.ParseBytes(raw), emit); err != nil {
				return nil, fail(line+1, err)
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		end, err := dec.Token()
		if err != nil {
			return nil, fail(line+1, fmt.Errorf("json: read array end: %w", err))
		}
		if end != json.Delim(']') {
			return nil, fail(line+1, fmt.Errorf("json: expected array end ']', got %v", end))
		}

	case '{':
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fail(1, fmt.Errorf("json: decode root object: %w", err))
		}
		if err := emitEnvelopeOrSingle(ctx, gjson.ParseBytes(raw), emit); err != nil {
			return nil, fail(line+1, err)
		}

	default:
		return nil, fail(0, fmt.Errorf("json: unsupported root token %q (want object or array)", first))
	}

	if err := readTrailingObjects(ctx, dec, emit); err != nil {
		return nil, fail(line+1, err)
	}
	return t, nil
}

// peekNonSpace returns the first non-whitespace byte without consuming it.
// A leading UTF-8 byte order mark is skipped.
func peekNonSpace(br *bufio.Reader) (byte, error) {
	if bom, err := br.Peek(3); err == nil && string(bom) == "\xef\xbb\xbf" {
		_, _ = br.Discard(3)
	}
	for {
		b, err := br.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			_, _ = br.Discard(1)
		default:
			return b[0], nil
		}
	}
}

func emitElement(el gjson.Result, emit func(gjson.Result) error) error {
	if el.Type == gjson.Null {
		return nil
	}
	if !el.IsObject() {
		return fmt.Errorf("json: array element not an object (got %s)", describe(el))
	}
	return emit(el)
}

// emitEnvelopeOrSingle treats the first array-valued field of root as the
// record list. When root has no array field it is itself the only record.
func emitEnvelopeOrSingle(ctx context.Context, root gjson.Result, emit func(gjson.Result) error) error {
	var records gjson.Result
	found := false
	root.ForEach(func(_, v gjson.Result) bool {
		if v.IsArray() {
			records = v
			found = true
			return false
		}
		return true
	})
	if !found {
		return emit(root)
	}

	var err error
	records.ForEach(func(_, el gjson.Result) bool {
		if err = emitElement(el, emit); err != nil {
			return false
		}
		err = ctx.Err()
		return err == nil
	})
	return err
}

func readTrailingObjects(ctx context.Context, dec *json.Decoder, emit func(gjson.Result) error) error {
	for {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("json: decode trailing object: %w", err)
		}
		obj := gjson.ParseBytes(raw)
		if !obj.IsObject() {
			return fmt.Errorf("json: trailing value not an object (got %s)", describe(obj))
		}
		if err := emit(obj); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func fieldsOf(obj gjson.Result) []table.Field {
	var fields []table.Field
	obj.ForEach(func(k, v gjson.Result) bool {
		fields = append(fields, table.Field{Key: k.String(), Value: ValueOf(v)})
		return true
	})
	return fields
}

// ValueOf converts a gjson result into a typed cell.
//
// Integral numbers that fit in int64 become KindInt, every other number
// becomes KindFloat. Arrays and objects keep their compact JSON text.
func ValueOf(r gjson.Result) table.Value {
	switch r.Type {
	case gjson.Null:
		return table.Null()
	case gjson.False:
		return table.Bool(false)
	case gjson.True:
		return table.Bool(true)
	case gjson.Number:
		return numberValue(r)
	case gjson.String:
		return table.String(r.Str)
	case gjson.JSON:
		raw := compact(r.Raw)
		if r.IsArray() {
			items := r.Array()
			elems := make([]table.Value, len(items))
			for i, it := range items {
				elems[i] = ValueOf(it)
			}
			return table.List(raw, elems)
		}
		return table.Object(raw)
	default:
		return table.Null()
	}
}

func numberValue(r gjson.Result) table.Value {
	raw := strings.TrimSpace(r.Raw)
	if !strings.ContainsAny(raw, ".eE") {
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return table.Int(i)
		}
	}
	return table.Float(r.Num)
}

// compact strips insignificant whitespace while keeping key order.
func compact(raw string) string {
	return gjson.Get(raw, "@ugly").Raw
}

func describe(r gjson.Result) string {
	switch {
	case r.IsArray():
		return "array"
	case r.IsObject():
		return "object"
	default:
		return strings.ToLower(r.Type.String())
	}
}
