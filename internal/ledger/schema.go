// Package ledger maps collection headers to typed row access.
//
// Columns are addressed by header name, never by position: a Schema names
// the columns a collection should have, and an Index resolves those names
// against the header actually present in the store. The Index is built once
// per load and shared by every row read from that sheet.
package ledger

import (
	"fmt"
	"strings"

	"github.com/roach88/citycycle/internal/ir"
	"github.com/roach88/citycycle/internal/table"
)

// Schema describes the columns of one collection.
type Schema struct {
	// Columns in the order a new header is written.
	Columns []string

	// Required columns must be present for rows to be readable.
	Required []string
}

// HeaderRow renders the schema as a header row.
func (s Schema) HeaderRow() ir.Row {
	row := make(ir.Row, len(s.Columns))
	for i, c := range s.Columns {
		row[i] = ir.Text(c)
	}
	return row
}

// Index maps header names to 1-based column numbers.
type Index struct {
	cols  map[string]int
	width int
}

// NewIndex builds an index from header names. Names are matched exactly
// after trimming; the first occurrence of a duplicate name wins.
func NewIndex(header []string) Index {
	idx := Index{cols: make(map[string]int, len(header)), width: len(header)}
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := idx.cols[name]; !dup {
			idx.cols[name] = i + 1
		}
	}
	return idx
}

// IndexFor builds the index for a loaded sheet.
func IndexFor(sheet table.Sheet) Index {
	return NewIndex(sheet.Header)
}

// Col returns the 1-based column for name.
func (x Index) Col(name string) (int, bool) {
	c, ok := x.cols[name]
	return c, ok
}

// Width returns the number of header columns.
func (x Index) Width() int {
	return x.width
}

// Missing lists the schema's required columns absent from the index.
func (x Index) Missing(s Schema) []string {
	var out []string
	for _, name := range s.Required {
		if _, ok := x.cols[name]; !ok {
			out = append(out, name)
		}
	}
	return out
}

// Check returns an error naming any missing required columns.
func (x Index) Check(s Schema) error {
	if missing := x.Missing(s); len(missing) > 0 {
		return fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Row renders values in header order. Columns without a value, and values
// for names the header lacks, are left out: the row is exactly Width wide.
func (x Index) Row(values map[string]ir.Value) ir.Row {
	row := make(ir.Row, x.width)
	for i := range row {
		row[i] = ir.Null{}
	}
	for name, v := range values {
		if c, ok := x.cols[name]; ok {
			if v == nil {
				v = ir.Null{}
			}
			row[c-1] = v
		}
	}
	return row
}
