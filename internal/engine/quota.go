package engine

// IntentBudget caps the number of intents one cycle may queue.
//
// The budget is checked after each generator runs, so a runaway generator
// is named in the error. A limit of zero or less disables the check.
type IntentBudget struct {
	limit int
}

// NewIntentBudget creates a budget with the given limit.
func NewIntentBudget(limit int) IntentBudget {
	return IntentBudget{limit: limit}
}

// Check returns a budget error when queued exceeds the limit.
func (b IntentBudget) Check(runID, generator string, queued int) error {
	if b.limit <= 0 || queued <= b.limit {
		return nil
	}
	return NewBudgetError(runID, generator, queued, b.limit)
}

// Limit returns the configured limit.
func (b IntentBudget) Limit() int {
	return b.limit
}
