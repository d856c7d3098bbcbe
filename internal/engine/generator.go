package engine

import "context"

// Generator produces one kind of narrative change per cycle.
//
// Advance is called once per cycle, in registration order, after hooks have
// been processed. It must only change state through State's lifecycles and
// cooldown ledger; it must not touch the store.
type Generator interface {
	Name() string
	Advance(ctx context.Context, s *State) error
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc struct {
	ID string
	Fn func(ctx context.Context, s *State) error
}

// Name returns the generator's ID.
func (g GeneratorFunc) Name() string { return g.ID }

// Advance calls Fn.
func (g GeneratorFunc) Advance(ctx context.Context, s *State) error {
	return g.Fn(ctx, s)
}
