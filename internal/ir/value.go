package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Value is a sealed interface representing a single cell.
// Only Null, Text, Int, Float and Bool implement it.
type Value interface {
	cellValue() // Sealed - only these types implement it
}

// Null is an empty cell.
type Null struct{}

func (Null) cellValue() {}

// Text is a string cell.
type Text string

func (Text) cellValue() {}

// Int is an integer cell.
type Int int64

func (Int) cellValue() {}

// Float is a floating point cell. NaN and infinities are not representable
// in storage and are rejected when a row is marshaled.
type Float float64

func (Float) cellValue() {}

// Bool is a boolean cell.
type Bool bool

func (Bool) cellValue() {}

// Row is one stored row of cells.
type Row []Value

// Clone returns a copy of the row that shares no backing array.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// CloneRows deep-copies a grid of rows.
func CloneRows(rows []Row) []Row {
	if rows == nil {
		return nil
	}
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// Rectangular reports whether every row has the same, non-zero width.
func Rectangular(rows []Row) bool {
	if len(rows) == 0 {
		return false
	}
	width := len(rows[0])
	if width == 0 {
		return false
	}
	for _, r := range rows[1:] {
		if len(r) != width {
			return false
		}
	}
	return true
}

// RowOf builds a row from Go values. Panics on unsupported types; intended
// for literals in code and tests. Use FromAny for untrusted input.
func RowOf(vals ...any) Row {
	row := make(Row, len(vals))
	for i, v := range vals {
		cell, err := FromAny(v)
		if err != nil {
			panic(fmt.Sprintf("ir.RowOf: column %d: %v", i, err))
		}
		row[i] = cell
	}
	return row
}

// FromAny converts a Go scalar to a Value.
// nil becomes Null. Integers of any width become Int.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		if val == nil {
			return Null{}, nil
		}
		return val, nil
	case string:
		return Text(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return Int(val), nil
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	default:
		return nil, fmt.Errorf("unsupported cell type: %T", v)
	}
}

// IsEmpty reports whether a cell holds no data (Null or blank text).
func IsEmpty(v Value) bool {
	switch val := v.(type) {
	case nil, Null:
		return true
	case Text:
		return strings.TrimSpace(string(val)) == ""
	default:
		return false
	}
}

// Format renders a cell the way a sheet displays it.
func Format(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return ""
	case Text:
		return string(val)
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case Float:
		return strconv.FormatFloat(float64(val), 'g', -1, 64)
	case Bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ToInt coerces a cell to an integer.
// Accepts Int, integral Float, and numeric Text. Returns false otherwise.
func ToInt(v Value) (int64, bool) {
	switch val := v.(type) {
	case Int:
		return int64(val), true
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return 0, false
		}
		return int64(f), true
	case Text:
		s := strings.TrimSpace(string(val))
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
			return int64(f), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// ToFloat coerces a cell to a float. Accepts Int, Float, and numeric Text.
func ToFloat(v Value) (float64, bool) {
	switch val := v.(type) {
	case Int:
		return float64(val), true
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case Text:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(val)), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// ToBool coerces a cell to a boolean.
// Accepts Bool, Int (non-zero is true) and the text forms sheets produce.
// Empty cells are false.
func ToBool(v Value) (bool, bool) {
	switch val := v.(type) {
	case nil, Null:
		return false, true
	case Bool:
		return bool(val), true
	case Int:
		return val != 0, true
	case Text:
		switch strings.ToLower(strings.TrimSpace(string(val))) {
		case "true", "yes", "y", "1":
			return true, true
		case "false", "no", "n", "0", "":
			return false, true
		}
		return false, false
	default:
		return false, false
	}
}

// Equal compares two cells by type and value.
// A nil Value is treated as Null.
func Equal(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}
	return a == b
}

// RowsEqual compares two rows cell by cell.
func RowsEqual(a, b Row) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
