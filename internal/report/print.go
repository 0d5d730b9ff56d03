package report

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"salesetl/internal/table"
)

// Print writes every outcome to w: a blank line, the label and a colon, then
// one tuple per row or a single error line.
//
// Rows look like ('Electronics', 'Phone', 12.0). Strings are single-quoted,
// nulls print as None and reals always carry a fractional part.
func Print(w io.Writer, outcomes []Outcome) error {
	for _, o := range outcomes {
		if _, err := fmt.Fprintf(w, "\n%s:\n", o.Spec.Label); err != nil {
			return err
		}
		if !o.OK() {
			cause := o.Err
			var qe *QueryError
			if errors.As(o.Err, &qe) {
				cause = qe.Err
			}
			if _, err := fmt.Fprintf(w, "Error in query %s: %v\n", o.Spec.Label, cause); err != nil {
				return err
			}
			continue
		}
		for _, row := range o.Result.Rows {
			if _, err := io.WriteString(w, FormatRow(row)+"\n"); err != nil {
				return err
			}
		}
	}
	return nil
}

// quote prefers single quotes and switches to double quotes when the text
// holds a single quote but no double quote.
func quote(s string) string {
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	return "'" + strings.ReplaceAll(s, "'", `\'`) + "'"
}

// FormatRow renders one result row as a tuple.
func FormatRow(row []any) string {
	parts := make([]string, len(row))
	for i, v := range row {
		parts[i] = formatCell(v)
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case string:
		return quote(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return table.Float(x).Text()
	case bool:
		if x {
			return "True"
		}
		return "False"
	case time.Time:
		return "'" + x.Format("2006-01-02 15:04:05") + "'"
	default:
		return fmt.Sprint(x)
	}
}
