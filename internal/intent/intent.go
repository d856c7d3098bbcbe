package intent

import (
	"time"

	"github.com/roach88/citycycle/internal/ir"
)

// Kind is the shape of a deferred write.
type Kind string

const (
	KindCell    Kind = "cell"
	KindRange   Kind = "range"
	KindAppend  Kind = "append"
	KindReplace Kind = "replace"
)

// Default priorities. Lower values execute earlier.
const (
	PriorityReplace = 50
	PriorityDefault = 100
	PriorityLog     = 200
)

// Address is a 1-based cell address. Row 1 is the header.
type Address struct {
	Row int
	Col int
}

// WriteIntent is a deferred mutation of one collection.
//
// Intents are values: the queue keeps its own deep copy and hands out
// copies, so an intent cannot change after it is queued. Queueing the same
// logical write twice creates two intents.
type WriteIntent struct {
	// ID fingerprints the intent content and sequence; audit only.
	ID string

	Collection string
	Kind       Kind

	// Address is set for cell and range intents, nil otherwise.
	Address *Address

	// Values is 1x1 for a cell, rectangular for range and replace, and one
	// or more non-empty rows for an append.
	Values []ir.Row

	// Reason and Domain are audit metadata; neither affects execution.
	Reason string
	Domain string

	Priority int

	// Log marks appends that belong to the log queue.
	Log bool

	// Seq is the insertion order within the ExecutionContext.
	Seq int

	CreatedAt time.Time
}

// Clone returns a deep copy of the intent.
func (w WriteIntent) Clone() WriteIntent {
	out := w
	if w.Address != nil {
		addr := *w.Address
		out.Address = &addr
	}
	out.Values = ir.CloneRows(w.Values)
	return out
}

// Option customizes an intent at enqueue time.
type Option func(*intentOptions)

type intentOptions struct {
	priority *int
}

// WithPriority overrides the kind's default priority.
func WithPriority(p int) Option {
	return func(o *intentOptions) {
		o.priority = &p
	}
}

func defaultPriority(kind Kind, log bool) int {
	switch {
	case log:
		return PriorityLog
	case kind == KindReplace:
		return PriorityReplace
	default:
		return PriorityDefault
	}
}
