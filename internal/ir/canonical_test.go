package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalRow_Scalars(t *testing.T) {
	row := Row{Text("F7"), Int(10), Float(3), Float(6.5), Bool(false), Null{}}

	data, err := MarshalRow(row)
	require.NoError(t, err)
	assert.Equal(t, `["F7",10,3.0,6.5,false,null]`, string(data))
}

func TestMarshalRow_NoHTMLEscape(t *testing.T) {
	data, err := MarshalRow(Row{Text("<b>&</b>")})
	require.NoError(t, err)
	assert.Equal(t, `["<b>&</b>"]`, string(data))
}

func TestMarshalRow_NFCNormalization(t *testing.T) {
	// "é" as e + combining acute accent normalizes to the single code point.
	decomposed := Row{Text("cafe\u0301")}
	composed := Row{Text("caf\u00e9")}

	a, err := MarshalRow(decomposed)
	require.NoError(t, err)
	b, err := MarshalRow(composed)
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))
}

func TestMarshalRow_LineSeparatorsLiteral(t *testing.T) {
	data, err := MarshalRow(Row{Text("a\u2028b")})
	require.NoError(t, err)
	assert.Equal(t, "[\"a\u2028b\"]", string(data))
}

func TestMarshalRow_RejectsNonFinite(t *testing.T) {
	_, err := MarshalRow(Row{Float(math.NaN())})
	assert.Error(t, err)

	_, err = MarshalRow(Row{Float(math.Inf(1))})
	assert.Error(t, err)
}

func TestUnmarshalRow_RoundTripKeepsTypes(t *testing.T) {
	row := Row{Text("A1"), Int(4), Float(9), Bool(true), Null{}}

	data, err := MarshalRow(row)
	require.NoError(t, err)

	got, err := UnmarshalRow(data)
	require.NoError(t, err)
	assert.Equal(t, row, got)
}

func TestUnmarshalRow_RejectsNested(t *testing.T) {
	_, err := UnmarshalRow([]byte(`["a",["b"]]`))
	assert.Error(t, err)

	_, err = UnmarshalRow([]byte(`{"a":1}`))
	assert.Error(t, err)
}

func TestMarshalRows(t *testing.T) {
	data, err := MarshalRows([]Row{RowOf("a"), RowOf(1)})
	require.NoError(t, err)
	assert.Equal(t, `[["a"],[1]]`, string(data))
}
