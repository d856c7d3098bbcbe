// Package ir provides the cell-level value types shared by every citycycle
// package.
//
// A collection in the table store is a grid of scalar cells. Rows are
// addressed 1-based with row 1 holding the header, the way the backing sheets
// are laid out. All other internal packages import ir; ir imports nothing
// internal.
//
// Key design constraints:
//   - Cells are scalars only: Null, Text, Int, Float, Bool
//   - NaN and infinities are rejected at the serialization boundary
//   - Canonical row encoding is the only encoding used for fingerprints
package ir
