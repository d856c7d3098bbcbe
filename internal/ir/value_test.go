package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAny(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Value
	}{
		{"nil", nil, Null{}},
		{"string", "A1", Text("A1")},
		{"int", 7, Int(7)},
		{"int64", int64(-3), Int(-3)},
		{"float", 2.5, Float(2.5)},
		{"bool", true, Bool(true)},
		{"value passthrough", Int(4), Int(4)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAny(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromAny_Unsupported(t *testing.T) {
	_, err := FromAny([]string{"nested"})
	assert.Error(t, err)
}

func TestRowOf_PanicsOnUnsupported(t *testing.T) {
	assert.Panics(t, func() { RowOf(map[string]int{}) })
}

func TestRectangular(t *testing.T) {
	assert.True(t, Rectangular([]Row{RowOf(1, 2), RowOf(3, 4)}))
	assert.False(t, Rectangular([]Row{RowOf(1, 2), RowOf(3)}))
	assert.False(t, Rectangular(nil))
	assert.False(t, Rectangular([]Row{{}}))
}

func TestCloneRows_Independent(t *testing.T) {
	orig := []Row{RowOf("a", 1)}
	clone := CloneRows(orig)
	clone[0][0] = Text("b")

	assert.Equal(t, Text("a"), orig[0][0])
}

func TestToInt(t *testing.T) {
	tests := []struct {
		in     Value
		want   int64
		wantOK bool
	}{
		{Int(10), 10, true},
		{Float(3), 3, true},
		{Float(3.5), 0, false},
		{Text(" 42 "), 42, true},
		{Text("12.0"), 12, true},
		{Text("abc"), 0, false},
		{Null{}, 0, false},
		{Bool(true), 0, false},
	}

	for _, tt := range tests {
		got, ok := ToInt(tt.in)
		assert.Equal(t, tt.wantOK, ok, "ToInt(%#v)", tt.in)
		assert.Equal(t, tt.want, got, "ToInt(%#v)", tt.in)
	}
}

func TestToFloat(t *testing.T) {
	f, ok := ToFloat(Int(3))
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)

	f, ok = ToFloat(Text("6.5"))
	assert.True(t, ok)
	assert.Equal(t, 6.5, f)

	_, ok = ToFloat(Text("high"))
	assert.False(t, ok)
}

func TestToBool(t *testing.T) {
	tests := []struct {
		in     Value
		want   bool
		wantOK bool
	}{
		{Bool(true), true, true},
		{Text("TRUE"), true, true},
		{Text("no"), false, true},
		{Null{}, false, true},
		{Int(0), false, true},
		{Int(2), true, true},
		{Text("maybe"), false, false},
	}

	for _, tt := range tests {
		got, ok := ToBool(tt.in)
		assert.Equal(t, tt.wantOK, ok, "ToBool(%#v)", tt.in)
		assert.Equal(t, tt.want, got, "ToBool(%#v)", tt.in)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "", Format(Null{}))
	assert.Equal(t, "rising", Format(Text("rising")))
	assert.Equal(t, "12", Format(Int(12)))
	assert.Equal(t, "6.5", Format(Float(6.5)))
	assert.Equal(t, "TRUE", Format(Bool(true)))
}

func TestEqual_NilIsNull(t *testing.T) {
	assert.True(t, Equal(nil, Null{}))
	assert.False(t, Equal(Int(1), Float(1)))
	assert.True(t, RowsEqual(RowOf("a", nil), Row{Text("a"), nil}))
}
