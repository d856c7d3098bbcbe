package testutil

import (
	"fmt"
	"sync"
)

// FixedRunIDGenerator generates the same run ID every time.
//
// Unlike engine.FixedGenerator, which returns IDs in sequence, this
// generator never runs out, so a scenario can run any number of cycles.
//
// Thread-safety: FixedRunIDGenerator is stateless and safe for concurrent use.
type FixedRunIDGenerator struct {
	id string
}

// NewFixedRunIDGenerator creates a generator. An empty id means
// "test-run-default".
func NewFixedRunIDGenerator(id string) *FixedRunIDGenerator {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunIDGenerator{id: id}
}

// Generate returns the fixed run ID.
func (g *FixedRunIDGenerator) Generate() string {
	return g.id
}

// SequentialIDs is a per-cycle entity ID source that yields readable IDs:
// the n-th ID of cycle c is "CCCCNNNN". Its signature matches
// engine.WithIDSource, and minted arc and hook IDs come out as e.g.
// "CIVIC-00030001".
func SequentialIDs(cycle int) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%04d%04d", cycle, n)
	}
}
