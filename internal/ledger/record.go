package ledger

import (
	"strings"

	"github.com/roach88/citycycle/internal/ir"
)

// Record is one data row read through an Index.
type Record struct {
	idx Index
	row ir.Row

	// Row is the sheet row number the record was read from.
	Row int
}

// NewRecord wraps a data row.
func NewRecord(idx Index, row ir.Row, rowNum int) Record {
	return Record{idx: idx, row: row, Row: rowNum}
}

// Records wraps every data row of a sheet with one shared index.
func Records(idx Index, rows []ir.Row, rowNumber func(i int) int) []Record {
	out := make([]Record, len(rows))
	for i, row := range rows {
		out[i] = NewRecord(idx, row, rowNumber(i))
	}
	return out
}

// Value returns the raw cell under name, or Null when the column or cell
// is absent.
func (r Record) Value(name string) ir.Value {
	c, ok := r.idx.Col(name)
	if !ok || c > len(r.row) || r.row[c-1] == nil {
		return ir.Null{}
	}
	return r.row[c-1]
}

// Empty reports whether the cell under name holds no data.
func (r Record) Empty(name string) bool {
	return ir.IsEmpty(r.Value(name))
}

// Text returns the trimmed display text of the cell.
func (r Record) Text(name string) string {
	return strings.TrimSpace(ir.Format(r.Value(name)))
}

// Int returns the cell as an int.
func (r Record) Int(name string) (int, bool) {
	n, ok := ir.ToInt(r.Value(name))
	return int(n), ok
}

// IntOr returns the cell as an int, or def when empty or unparseable.
func (r Record) IntOr(name string, def int) int {
	if n, ok := r.Int(name); ok {
		return n
	}
	return def
}

// OptionalInt returns nil for an empty cell.
func (r Record) OptionalInt(name string) *int {
	if n, ok := r.Int(name); ok {
		return &n
	}
	return nil
}

// Float returns the cell as a float64.
func (r Record) Float(name string) (float64, bool) {
	return ir.ToFloat(r.Value(name))
}

// Bool returns the cell as a bool; empty cells are false.
func (r Record) Bool(name string) bool {
	b, _ := ir.ToBool(r.Value(name))
	return b
}

// OptionalText returns nil for an empty cell.
func (r Record) OptionalText(name string) *string {
	if r.Empty(name) {
		return nil
	}
	s := r.Text(name)
	return &s
}

// List splits a comma-separated cell into trimmed, non-empty items.
func (r Record) List(name string) []string {
	text := r.Text(name)
	if text == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(text, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
