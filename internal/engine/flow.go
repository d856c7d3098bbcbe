package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// RunIDGenerator generates one ID per cycle run.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type RunIDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 run IDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined run IDs for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedGenerator creates a generator that returns tokens in order.
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

// Generate returns the next predetermined token.
//
// Panics if all tokens have been consumed.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic("FixedGenerator: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}

// idNamespace scopes entity IDs derived by CycleIDSource.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("citycycle:entity-ids"))

// CycleIDSource returns the entity ID source for one cycle: the n-th call
// yields a name-based UUID of (cycle, n). Running the same cycle twice with
// the same generator calls mints the same IDs, which is what lets a
// recorded cycle be replayed and compared row for row.
func CycleIDSource(cycle int) func() string {
	n := 0
	return func() string {
		n++
		return uuid.NewSHA1(idNamespace, []byte(fmt.Sprintf("%d/%d", cycle, n))).String()
	}
}
