package intent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/citycycle/internal/ir"
	"github.com/roach88/citycycle/internal/table"
)

// Result summarizes a flush. In dry-run and replay modes the counters are
// what a live flush would have written.
type Result struct {
	CellsWritten  int
	RangesWritten int
	RowsAppended  int
	RowsReplaced  int

	// Calls is the number of store write calls issued (or planned).
	Calls int

	// Errors holds one *FlushError per failed call.
	Errors []error

	// FailedCollections lists collections whose remaining operations were
	// skipped, in failure order.
	FailedCollections []string

	DryRun bool

	// Planned lists every operation in execution order, including those
	// skipped after a failure.
	Planned []Operation
}

// OK reports whether the flush recorded no errors.
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// Executor applies an ExecutionContext's intents to a table.Store.
type Executor struct {
	store  table.Store
	logger *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithLogger sets the executor's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor creates an executor writing to store.
func NewExecutor(store table.Store, opts ...ExecutorOption) *Executor {
	e := &Executor{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Flush applies the context's intents in priority order.
//
// Outside strict mode a failed call marks its collection failed, is recorded
// in Result.Errors, and the flush continues with the other collections; the
// returned error is nil. In strict mode the first failure stops the flush and
// is returned as a *FlushError. Context cancellation stops the flush and
// returns ctx.Err().
//
// Flush never clears the context. Flushing an empty context is a no-op.
func (e *Executor) Flush(ctx context.Context, ec *ExecutionContext) (Result, error) {
	mode := ec.Mode()
	res := Result{DryRun: !mode.Writes()}

	if ec.Len() == 0 {
		e.logger.Debug("flush skipped: no intents", "mode", mode.String())
		return res, nil
	}

	failed := make(map[string]bool)
	fail := func(fe *FlushError) {
		res.Errors = append(res.Errors, fe)
		if !failed[fe.Collection] {
			failed[fe.Collection] = true
			res.FailedCollections = append(res.FailedCollections, fe.Collection)
		}
		e.logger.Error("flush operation failed",
			"collection", fe.Collection,
			"kind", fe.Kind,
			"error", fe.Err,
		)
	}

	ops, err := e.plan(ctx, ec, fail, mode.Strict)
	res.Planned = ops
	if err != nil {
		return res, err
	}

	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("flush cancelled: %w", err)
		}
		if failed[op.Collection] {
			e.logger.Debug("skipping operation on failed collection",
				"collection", op.Collection,
				"kind", op.Kind,
			)
			continue
		}

		if mode.Writes() {
			if err := e.apply(ctx, op); err != nil {
				fe := &FlushError{
					Collection: op.Collection,
					Kind:       op.Kind,
					Row:        op.Row,
					Intents:    op.Intents,
					Err:        err,
				}
				fail(fe)
				if mode.Strict {
					return res, fe
				}
				continue
			}
		}
		res.count(op)
	}

	e.logger.Info("flush complete",
		"mode", mode.String(),
		"calls", res.Calls,
		"cells", res.CellsWritten,
		"ranges", res.RangesWritten,
		"appended", res.RowsAppended,
		"replaced", res.RowsReplaced,
		"errors", len(res.Errors),
	)
	return res, nil
}

// plan builds the ordered operation list. Append start rows are computed
// from row counts read before any write, or from the row count left by a
// replace earlier in the same flush.
func (e *Executor) plan(ctx context.Context, ec *ExecutionContext, fail func(*FlushError), strict bool) ([]Operation, error) {
	var ops []Operation
	next := make(map[string]int)

	for _, w := range sortByPriority(ec.replaceOps) {
		ops = append(ops, Operation{
			Collection: w.Collection,
			Kind:       KindReplace,
			Row:        table.HeaderRow,
			Col:        1,
			Values:     ir.CloneRows(w.Values),
			Intents:    []string{w.ID},
		})
		next[w.Collection] = len(w.Values) + 1
	}

	type batchPlan struct {
		ops   []Operation
		batch *Operation
	}
	var plans []batchPlan
	for _, queue := range []struct {
		intents []WriteIntent
		log     bool
	}{
		{ec.updates, false},
		{ec.logs, true},
	} {
		order, groups := groupByCollection(sortByPriority(queue.intents))
		for _, collection := range order {
			groupOps, batch := planUpdates(collection, groups[collection], queue.log)
			plans = append(plans, batchPlan{ops: groupOps, batch: batch})
		}
	}

	for _, p := range plans {
		if p.batch == nil {
			continue
		}
		c := p.batch.Collection
		if _, ok := next[c]; ok {
			continue
		}
		last, err := e.store.LastRow(ctx, c)
		if err != nil {
			fe := &FlushError{Collection: c, Kind: KindAppend, Intents: p.batch.Intents, Err: fmt.Errorf("read last row: %w", err)}
			fail(fe)
			if strict {
				return ops, fe
			}
			continue
		}
		next[c] = last + 1
	}

	for _, p := range plans {
		ops = append(ops, p.ops...)
		if p.batch != nil {
			c := p.batch.Collection
			p.batch.Row = next[c]
			p.batch.Col = 1
			next[c] += len(p.batch.Values)
			ops = append(ops, *p.batch)
		}
	}
	return ops, nil
}

func (e *Executor) apply(ctx context.Context, op Operation) error {
	e.logger.Debug("applying operation",
		"collection", op.Collection,
		"kind", op.Kind,
		"row", op.Row,
		"col", op.Col,
		"rows", len(op.Values),
	)
	switch op.Kind {
	case KindCell:
		return e.store.WriteCell(ctx, op.Collection, op.Row, op.Col, op.Values[0][0])
	case KindRange:
		return e.store.WriteRange(ctx, op.Collection, op.Row, op.Col, op.Values)
	case KindAppend:
		return e.store.Append(ctx, op.Collection, op.Values)
	case KindReplace:
		return e.store.Replace(ctx, op.Collection, op.Values)
	default:
		return fmt.Errorf("unknown operation kind %q", op.Kind)
	}
}

func (r *Result) count(op Operation) {
	r.Calls++
	switch op.Kind {
	case KindCell:
		r.CellsWritten += op.Cells
	case KindRange:
		if op.Cells > 0 {
			r.CellsWritten += op.Cells
		} else {
			r.RangesWritten++
		}
	case KindAppend:
		r.RowsAppended += len(op.Values)
	case KindReplace:
		r.RowsReplaced += len(op.Values)
	}
}
