package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedRunIDGenerator_ReturnsSameID(t *testing.T) {
	gen := NewFixedRunIDGenerator("run-123")

	assert.Equal(t, "run-123", gen.Generate())
	assert.Equal(t, "run-123", gen.Generate())
}

func TestFixedRunIDGenerator_EmptyIDDefault(t *testing.T) {
	assert.Equal(t, "test-run-default", NewFixedRunIDGenerator("").Generate())
}

func TestSequentialIDs(t *testing.T) {
	next := SequentialIDs(3)

	assert.Equal(t, "00030001", next())
	assert.Equal(t, "00030002", next())
	assert.Equal(t, "00070001", SequentialIDs(7)(), "each cycle starts its own sequence")
}
