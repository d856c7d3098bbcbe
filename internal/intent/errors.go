package intent

import (
	"errors"
	"fmt"
)

// ErrAborted is returned when queueing onto an aborted ExecutionContext.
var ErrAborted = errors.New("execution context aborted")

// ValidationErrorCode categorizes enqueue-time validation failures.
type ValidationErrorCode string

const (
	// ErrCodeEmptyCollection indicates a blank target collection.
	ErrCodeEmptyCollection ValidationErrorCode = "EMPTY_COLLECTION"

	// ErrCodeMissingAddress indicates a cell or range intent without a
	// valid 1-based address.
	ErrCodeMissingAddress ValidationErrorCode = "MISSING_ADDRESS"

	// ErrCodeNotRectangular indicates range or replace values whose rows
	// differ in width.
	ErrCodeNotRectangular ValidationErrorCode = "NOT_RECTANGULAR"

	// ErrCodeEmptyValues indicates an intent with no values, or an append
	// containing an empty row.
	ErrCodeEmptyValues ValidationErrorCode = "EMPTY_VALUES"

	// ErrCodeInvalidValue indicates a value with no canonical encoding,
	// such as NaN.
	ErrCodeInvalidValue ValidationErrorCode = "INVALID_VALUE"
)

// ValidationError rejects an intent at enqueue time.
// Invalid intents are never coerced or padded into shape.
type ValidationError struct {
	Code       ValidationErrorCode
	Kind       Kind
	Collection string
	Message    string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Collection != "" {
		return fmt.Sprintf("%s: %s %s: %s", e.Code, e.Kind, e.Collection, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Code, e.Kind, e.Message)
}

// IsValidationError reports whether err is a ValidationError with the given
// code. An empty code matches any validation error.
func IsValidationError(err error, code ValidationErrorCode) bool {
	var ve *ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	return code == "" || ve.Code == code
}

// FlushError records a store write that failed during Flush.
//
// Outside strict mode FlushErrors are collected in Result.Errors and the
// flush continues with other collections. In strict mode the first one is
// returned from Flush.
type FlushError struct {
	Collection string
	Kind       Kind
	Row        int
	Intents    []string
	Err        error
}

// Error implements the error interface.
func (e *FlushError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("flush %s %s at row %d: %v", e.Kind, e.Collection, e.Row, e.Err)
	}
	return fmt.Sprintf("flush %s %s: %v", e.Kind, e.Collection, e.Err)
}

// Unwrap returns the underlying store error.
func (e *FlushError) Unwrap() error {
	return e.Err
}

// IsFlushError reports whether err is or wraps a FlushError.
func IsFlushError(err error) bool {
	var fe *FlushError
	return errors.As(err, &fe)
}
