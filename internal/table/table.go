// Package table defines the boundary to the tabular backing store.
//
// A store holds named collections. Each collection is a grid of ir.Row
// values addressed 1-based by (row, col); row 1 is the header. Every
// operation is atomic on its own and nothing more: callers that need a
// multi-operation commit batch through the intent executor instead.
//
// Only the intent executor and ledger replay talk to a Store directly.
package table

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/citycycle/internal/ir"
)

// HeaderRow is the row number of the header in every collection.
const HeaderRow = 1

var (
	// ErrNotFound is returned when a collection does not exist.
	ErrNotFound = errors.New("collection not found")

	// ErrInvalidAddress is returned for row or column numbers below 1.
	ErrInvalidAddress = errors.New("invalid cell address")
)

// Store is the abstract keyed tabular store.
//
// Append and Replace create a missing collection. WriteCell and WriteRange
// require it to exist. Writes past the current last row or row width pad
// with empty cells. LastRow of a missing collection is 0.
type Store interface {
	ReadAll(ctx context.Context, collection string) (Sheet, error)
	WriteCell(ctx context.Context, collection string, row, col int, value ir.Value) error
	WriteRange(ctx context.Context, collection string, row, col int, values []ir.Row) error
	Append(ctx context.Context, collection string, rows []ir.Row) error
	Replace(ctx context.Context, collection string, rows []ir.Row) error
	LastRow(ctx context.Context, collection string) (int, error)
}

// Sheet is a snapshot of one collection as read by ReadAll.
// Rows excludes the header; Rows[i] lives at sheet row i+2.
type Sheet struct {
	Collection string
	Exists     bool
	Header     []string
	Rows       []ir.Row
}

// NewSheet splits a full grid (header first) into a Sheet.
func NewSheet(collection string, grid []ir.Row) Sheet {
	s := Sheet{Collection: collection, Exists: true}
	if len(grid) == 0 {
		return s
	}
	s.Header = HeaderNames(grid[0])
	s.Rows = ir.CloneRows(grid[1:])
	return s
}

// HeaderNames renders a header row as trimmed column names.
func HeaderNames(row ir.Row) []string {
	names := make([]string, len(row))
	for i, cell := range row {
		names[i] = strings.TrimSpace(ir.Format(cell))
	}
	return names
}

// RowNumber returns the sheet row number of data row i.
func (s Sheet) RowNumber(i int) int {
	return i + HeaderRow + 1
}

// LastRow returns the number of the last occupied row (0 when empty).
func (s Sheet) LastRow() int {
	if !s.Exists || s.Header == nil {
		return 0
	}
	return HeaderRow + len(s.Rows)
}

// HasData reports whether the sheet holds at least one row below the header.
func (s Sheet) HasData() bool {
	return s.Exists && len(s.Header) > 0 && len(s.Rows) > 0
}

// Load reads a collection, mapping ErrNotFound to an empty, non-existent
// sheet. This is the normal state of every ledger on the first cycle.
func Load(ctx context.Context, st Store, collection string) (Sheet, error) {
	sheet, err := st.ReadAll(ctx, collection)
	if errors.Is(err, ErrNotFound) {
		return Sheet{Collection: collection}, nil
	}
	if err != nil {
		return Sheet{}, fmt.Errorf("load %s: %w", collection, err)
	}
	return sheet, nil
}

// ValidateAddress checks a 1-based cell address.
func ValidateAddress(row, col int) error {
	if row < 1 || col < 1 {
		return fmt.Errorf("%w: row=%d col=%d", ErrInvalidAddress, row, col)
	}
	return nil
}

// Splice writes values into row starting at column col (1-based),
// padding with Null when the row is too short. The input row is not modified.
func Splice(row ir.Row, col int, values ir.Row) ir.Row {
	need := col - 1 + len(values)
	out := make(ir.Row, max(len(row), need))
	copy(out, row)
	for i := len(row); i < len(out); i++ {
		out[i] = ir.Null{}
	}
	copy(out[col-1:], values)
	return out
}

// SetRange applies a rectangular write to a full grid (header at index 0),
// padding with empty rows when the write reaches past the end.
func SetRange(grid []ir.Row, row, col int, values []ir.Row) []ir.Row {
	for i, vals := range values {
		idx := row - 1 + i
		for len(grid) <= idx {
			grid = append(grid, ir.Row{})
		}
		grid[idx] = Splice(grid[idx], col, vals)
	}
	return grid
}
