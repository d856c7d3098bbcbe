package intent

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/citycycle/internal/ir"
)

// Mode controls how the executor treats a context.
type Mode struct {
	// DryRun plans every operation and writes nothing.
	DryRun bool

	// Replay behaves like DryRun; used to regenerate a recorded cycle for
	// comparison.
	Replay bool

	// Strict aborts the flush on the first store failure.
	Strict bool
}

// Writes reports whether a flush in this mode touches the store.
func (m Mode) Writes() bool {
	return !m.DryRun && !m.Replay
}

// String renders the mode for logs and the cycle log row.
func (m Mode) String() string {
	var parts []string
	switch {
	case m.Replay:
		parts = append(parts, "replay")
	case m.DryRun:
		parts = append(parts, "dry-run")
	default:
		parts = append(parts, "live")
	}
	if m.Strict {
		parts = append(parts, "strict")
	}
	return strings.Join(parts, "+")
}

// ParseMode reads a mode name as written by Mode.String: "live",
// "dry-run" or "replay", optionally followed by "+strict".
func ParseMode(s string) (Mode, error) {
	var m Mode
	name, suffix, _ := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "+")
	switch name {
	case "", "live":
	case "dry-run", "dryrun":
		m.DryRun = true
	case "replay":
		m.Replay = true
	default:
		return Mode{}, fmt.Errorf("unknown mode %q", s)
	}
	switch suffix {
	case "":
	case "strict":
		m.Strict = true
	default:
		return Mode{}, fmt.Errorf("unknown mode %q", s)
	}
	return m, nil
}

// ExecutionContext owns one cycle's write intents.
//
// It is created once per cycle, filled by lifecycle code and generators,
// flushed once by an Executor, then cleared or aborted by the orchestrator.
// ExecutionContext is not safe for concurrent use.
type ExecutionContext struct {
	mode Mode
	now  func() time.Time

	seq        int
	updates    []WriteIntent
	logs       []WriteIntent
	replaceOps []WriteIntent
	aborted    bool
}

// ContextOption configures an ExecutionContext.
type ContextOption func(*ExecutionContext)

// WithNow sets the wall clock used for CreatedAt stamps.
func WithNow(now func() time.Time) ContextOption {
	return func(ec *ExecutionContext) {
		ec.now = now
	}
}

// NewExecutionContext creates an empty context in the given mode.
func NewExecutionContext(mode Mode, opts ...ContextOption) *ExecutionContext {
	ec := &ExecutionContext{
		mode: mode,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(ec)
	}
	return ec
}

// Mode returns the context's execution mode.
func (ec *ExecutionContext) Mode() Mode {
	return ec.mode
}

// QueueCell queues a single-cell write.
func (ec *ExecutionContext) QueueCell(collection string, row, col int, value ir.Value, reason, domain string, opts ...Option) (WriteIntent, error) {
	if value == nil {
		value = ir.Null{}
	}
	return ec.queue(WriteIntent{
		Collection: collection,
		Kind:       KindCell,
		Address:    &Address{Row: row, Col: col},
		Values:     []ir.Row{{value}},
		Reason:     reason,
		Domain:     domain,
	}, opts)
}

// QueueRange queues a rectangular write whose top-left cell is (row, col).
func (ec *ExecutionContext) QueueRange(collection string, row, col int, values []ir.Row, reason, domain string, opts ...Option) (WriteIntent, error) {
	return ec.queue(WriteIntent{
		Collection: collection,
		Kind:       KindRange,
		Address:    &Address{Row: row, Col: col},
		Values:     values,
		Reason:     reason,
		Domain:     domain,
	}, opts)
}

// QueueAppend queues one row to be appended after the collection's last row.
func (ec *ExecutionContext) QueueAppend(collection string, row ir.Row, reason, domain string, opts ...Option) (WriteIntent, error) {
	return ec.QueueBatchAppend(collection, []ir.Row{row}, reason, domain, opts...)
}

// QueueBatchAppend queues several rows to be appended in order.
func (ec *ExecutionContext) QueueBatchAppend(collection string, rows []ir.Row, reason, domain string, opts ...Option) (WriteIntent, error) {
	return ec.queue(WriteIntent{
		Collection: collection,
		Kind:       KindAppend,
		Values:     rows,
		Reason:     reason,
		Domain:     domain,
	}, opts)
}

// QueueReplace queues a full overwrite of the collection, header included.
func (ec *ExecutionContext) QueueReplace(collection string, allRows []ir.Row, reason, domain string, opts ...Option) (WriteIntent, error) {
	return ec.queue(WriteIntent{
		Collection: collection,
		Kind:       KindReplace,
		Values:     allRows,
		Reason:     reason,
		Domain:     domain,
	}, opts)
}

// QueueLog queues a log-tagged append. Log appends are flushed after all
// other updates.
func (ec *ExecutionContext) QueueLog(collection string, row ir.Row, reason, domain string, opts ...Option) (WriteIntent, error) {
	return ec.queue(WriteIntent{
		Collection: collection,
		Kind:       KindAppend,
		Values:     []ir.Row{row},
		Reason:     reason,
		Domain:     domain,
		Log:        true,
	}, opts)
}

func (ec *ExecutionContext) queue(w WriteIntent, opts []Option) (WriteIntent, error) {
	if ec.aborted {
		return WriteIntent{}, ErrAborted
	}
	if err := validate(w); err != nil {
		return WriteIntent{}, err
	}

	var o intentOptions
	for _, opt := range opts {
		opt(&o)
	}

	w = w.Clone()
	w.Priority = defaultPriority(w.Kind, w.Log)
	if o.priority != nil {
		w.Priority = *o.priority
	}
	ec.seq++
	w.Seq = ec.seq
	w.CreatedAt = ec.now()

	row, col := 0, 0
	if w.Address != nil {
		row, col = w.Address.Row, w.Address.Col
	}
	id, err := ir.IntentID(w.Collection, string(w.Kind), row, col, w.Values, w.Seq)
	if err != nil {
		ec.seq--
		return WriteIntent{}, &ValidationError{
			Code:       ErrCodeInvalidValue,
			Kind:       w.Kind,
			Collection: w.Collection,
			Message:    fmt.Sprintf("values cannot be encoded: %v", err),
		}
	}
	w.ID = id

	switch {
	case w.Kind == KindReplace:
		ec.replaceOps = append(ec.replaceOps, w)
	case w.Log:
		ec.logs = append(ec.logs, w)
	default:
		ec.updates = append(ec.updates, w)
	}
	return w.Clone(), nil
}

func validate(w WriteIntent) error {
	fail := func(code ValidationErrorCode, format string, args ...any) error {
		return &ValidationError{
			Code:       code,
			Kind:       w.Kind,
			Collection: w.Collection,
			Message:    fmt.Sprintf(format, args...),
		}
	}

	if strings.TrimSpace(w.Collection) == "" {
		return fail(ErrCodeEmptyCollection, "collection name is required")
	}

	switch w.Kind {
	case KindCell, KindRange:
		if w.Address == nil || w.Address.Row < 1 || w.Address.Col < 1 {
			return fail(ErrCodeMissingAddress, "a 1-based row and column are required")
		}
	}

	switch w.Kind {
	case KindRange, KindReplace:
		if len(w.Values) == 0 || len(w.Values[0]) == 0 {
			return fail(ErrCodeEmptyValues, "at least one non-empty row is required")
		}
		if !ir.Rectangular(w.Values) {
			return fail(ErrCodeNotRectangular, "all rows must have %d columns", len(w.Values[0]))
		}
	case KindAppend:
		if len(w.Values) == 0 {
			return fail(ErrCodeEmptyValues, "at least one row is required")
		}
		for i, row := range w.Values {
			if len(row) == 0 {
				return fail(ErrCodeEmptyValues, "row %d is empty", i+1)
			}
		}
	}
	return nil
}

// Updates returns copies of the queued cell, range and append intents.
func (ec *ExecutionContext) Updates() []WriteIntent {
	return cloneIntents(ec.updates)
}

// Logs returns copies of the queued log appends.
func (ec *ExecutionContext) Logs() []WriteIntent {
	return cloneIntents(ec.logs)
}

// ReplaceOps returns copies of the queued replace intents.
func (ec *ExecutionContext) ReplaceOps() []WriteIntent {
	return cloneIntents(ec.replaceOps)
}

// Len returns the total number of queued intents.
func (ec *ExecutionContext) Len() int {
	return len(ec.updates) + len(ec.logs) + len(ec.replaceOps)
}

// Clear discards all queued intents. The sequence counter keeps running.
func (ec *ExecutionContext) Clear() {
	ec.updates = nil
	ec.logs = nil
	ec.replaceOps = nil
}

// Abort clears the queues and rejects any further intents.
func (ec *ExecutionContext) Abort() {
	ec.Clear()
	ec.aborted = true
}

// Aborted reports whether Abort was called.
func (ec *ExecutionContext) Aborted() bool {
	return ec.aborted
}

// Summary counts queued intents for logging and metrics.
type Summary struct {
	Total    int
	ByKind   map[Kind]int
	ByDomain map[string]int
	Logs     int
}

// Summary counts the queued intents by kind and domain.
func (ec *ExecutionContext) Summary() Summary {
	s := Summary{
		ByKind:   make(map[Kind]int),
		ByDomain: make(map[string]int),
	}
	for _, queue := range [][]WriteIntent{ec.replaceOps, ec.updates, ec.logs} {
		for _, w := range queue {
			s.Total++
			s.ByKind[w.Kind]++
			s.ByDomain[w.Domain]++
			if w.Log {
				s.Logs++
			}
		}
	}
	return s
}

func cloneIntents(in []WriteIntent) []WriteIntent {
	out := make([]WriteIntent, len(in))
	for i, w := range in {
		out[i] = w.Clone()
	}
	return out
}
