package harness

import (
	"github.com/roach88/citycycle/internal/engine"
)

// CycleResult is the outcome of one scripted cycle.
type CycleResult struct {
	Cycle  int           `json:"cycle"`
	Report engine.Report `json:"-"`

	// Err is the RunCycle error, if any.
	Err error `json:"-"`

	// Errors lists failed expectations for this cycle.
	Errors []string `json:"errors,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every cycle met its expect_error and expect clauses.
	Pass bool `json:"pass"`

	Cycles []CycleResult `json:"cycles"`

	// Errors contains every failed expectation, prefixed by cycle.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Cycles: []CycleResult{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
