package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while running a cycle.
//
// Runtime errors include:
//   - Budget exceeded: generators queued more intents than allowed
//   - Generator failure: a generator's Advance returned an error
//   - Invalid cycle: the requested cycle number is not usable
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run.
	RunID string

	// Generator names the generator involved, if any.
	Generator string

	// Details contains additional context.
	Details map[string]string

	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeBudgetExceeded indicates the cycle queued too many intents.
	ErrCodeBudgetExceeded RuntimeErrorCode = "INTENT_BUDGET_EXCEEDED"

	// ErrCodeGeneratorFailed indicates a generator returned an error.
	ErrCodeGeneratorFailed RuntimeErrorCode = "GENERATOR_FAILED"

	// ErrCodeInvalidCycle indicates a cycle number below 1.
	ErrCodeInvalidCycle RuntimeErrorCode = "INVALID_CYCLE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Generator != "" {
		msg = fmt.Sprintf("%s (generator=%s)", msg, e.Generator)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsBudgetError returns true if the error is an intent budget error.
// Uses errors.As to handle wrapped errors.
func IsBudgetError(err error) bool {
	return hasCode(err, ErrCodeBudgetExceeded)
}

// IsGeneratorError returns true if a generator failed.
func IsGeneratorError(err error) bool {
	return hasCode(err, ErrCodeGeneratorFailed)
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// NewBudgetError creates a RuntimeError for an exceeded intent budget.
func NewBudgetError(runID, generator string, queued, limit int) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeBudgetExceeded,
		Message:   fmt.Sprintf("cycle queued %d intents, limit is %d", queued, limit),
		RunID:     runID,
		Generator: generator,
		Details: map[string]string{
			"queued": fmt.Sprintf("%d", queued),
			"limit":  fmt.Sprintf("%d", limit),
		},
	}
}

func newGeneratorError(runID, generator string, err error) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeGeneratorFailed,
		Message:   "generator failed",
		RunID:     runID,
		Generator: generator,
		Err:       err,
	}
}
