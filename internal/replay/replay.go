// Package replay reconstructs cycle-start state from stored collections.
//
// Replay is a pure function of a loaded sheet: the same sheet always yields
// the same state. It never writes and never fails on bad rows; malformed
// rows are skipped and counted in the Report.
//
// Arc state depends on row order. Rows are scanned in stored order, which
// every table.Store preserves; when every row carries a Seq value, rows are
// stable-sorted by Seq first so that stores without reliable ordering still
// replay correctly.
package replay

import (
	"fmt"
	"sort"

	"github.com/roach88/citycycle/internal/arc"
	"github.com/roach88/citycycle/internal/cooldown"
	"github.com/roach88/citycycle/internal/hook"
	"github.com/roach88/citycycle/internal/ledger"
	"github.com/roach88/citycycle/internal/table"
)

// Report describes one replay scan.
type Report struct {
	Collection string

	// Rows is the number of data rows scanned.
	Rows int

	// Skipped counts malformed rows; Errors holds one reason per skip.
	Skipped int
	Errors  []error

	// Later counts rows written at or after the replayed cycle and ignored.
	Later int

	// MissingColumns lists required columns absent from the header.
	MissingColumns []string
}

func (r *Report) skip(err error) {
	r.Skipped++
	r.Errors = append(r.Errors, err)
}

// Arcs reconstructs arc state as of the start of currentCycle.
//
// For each ArcId the last row wins. Rows whose Cycle is at or after
// currentCycle are ignored, so a recorded cycle can be replayed against the
// history that preceded it. A missing or header-only ledger yields an empty
// state.
func Arcs(sheet table.Sheet, currentCycle int) (arc.State, Report) {
	state := arc.NewState()
	report := Report{Collection: sheet.Collection}
	if !sheet.HasData() {
		return state, report
	}

	idx := ledger.IndexFor(sheet)
	if missing := idx.Missing(ledger.ArcLedger); len(missing) > 0 {
		report.MissingColumns = missing
		report.Rows = len(sheet.Rows)
		report.Skipped = len(sheet.Rows)
		report.Errors = append(report.Errors, fmt.Errorf("%s: %w", sheet.Collection, idx.Check(ledger.ArcLedger)))
		return state, report
	}

	recs := orderBySeq(ledger.Records(idx, sheet.Rows, sheet.RowNumber))
	report.Rows = len(recs)

	latest := make(map[string]arc.Arc)
	maxSeq, considered := 0, 0
	for _, rec := range recs {
		cycle := rec.IntOr(ledger.ColCycle, rec.IntOr(ledger.ColCycleCreated, 0))
		if currentCycle > 0 && cycle >= currentCycle {
			report.Later++
			continue
		}
		considered++
		if seq, ok := rec.Int(ledger.ColSeq); ok {
			maxSeq = max(maxSeq, seq)
		}

		a, err := arc.FromRecord(rec)
		if err != nil {
			report.skip(err)
			continue
		}

		a.PhaseSince = a.Cycle
		if prev, ok := latest[a.ID]; ok && prev.Phase == a.Phase {
			a.PhaseSince = prev.PhaseSince
		}
		latest[a.ID] = a
	}

	for id, a := range latest {
		if a.Live() {
			state.Live[id] = a
		} else {
			state.Resolved[id] = true
		}
	}
	state.NextSeq = max(maxSeq, considered) + 1
	return state, report
}

// orderBySeq stable-sorts records by Seq when every record has one.
func orderBySeq(recs []ledger.Record) []ledger.Record {
	seqs := make([]int, len(recs))
	for i, rec := range recs {
		seq, ok := rec.Int(ledger.ColSeq)
		if !ok {
			return recs
		}
		seqs[i] = seq
	}

	order := make([]int, len(recs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return seqs[order[a]] < seqs[order[b]]
	})

	out := make([]ledger.Record, len(recs))
	for i, j := range order {
		out[i] = recs[j]
	}
	return out
}

// Hooks reads the hook collection as stored. Ages are recomputed by the
// hook lifecycle, not here. Rows repeating an earlier HookId are skipped.
func Hooks(sheet table.Sheet) ([]hook.Hook, Report) {
	report := Report{Collection: sheet.Collection}
	if !sheet.HasData() {
		return nil, report
	}

	idx := ledger.IndexFor(sheet)
	if missing := idx.Missing(ledger.Hooks); len(missing) > 0 {
		report.MissingColumns = missing
		report.Rows = len(sheet.Rows)
		report.Skipped = len(sheet.Rows)
		report.Errors = append(report.Errors, fmt.Errorf("%s: %w", sheet.Collection, idx.Check(ledger.Hooks)))
		return nil, report
	}

	var hooks []hook.Hook
	seen := make(map[string]bool)
	for _, rec := range ledger.Records(idx, sheet.Rows, sheet.RowNumber) {
		report.Rows++
		h, err := hook.FromRecord(rec)
		if err != nil {
			report.skip(err)
			continue
		}
		if seen[h.ID] {
			report.skip(fmt.Errorf("row %d: duplicate hook %s", rec.Row, h.ID))
			continue
		}
		seen[h.ID] = true
		hooks = append(hooks, h)
	}
	return hooks, report
}

// ArchivedHooks returns the HookIds that already have an archive row.
func ArchivedHooks(sheet table.Sheet) map[string]bool {
	ids := make(map[string]bool)
	if !sheet.HasData() {
		return ids
	}
	idx := ledger.IndexFor(sheet)
	for _, rec := range ledger.Records(idx, sheet.Rows, sheet.RowNumber) {
		if id := rec.Text(ledger.ColHookID); id != "" {
			ids[id] = true
		}
	}
	return ids
}

// Cooldowns reads the persisted cooldown ledger.
func Cooldowns(sheet table.Sheet) (cooldown.Ledger, Report) {
	report := Report{Collection: sheet.Collection}
	if !sheet.HasData() {
		return cooldown.Ledger{}, report
	}

	idx := ledger.IndexFor(sheet)
	if missing := idx.Missing(ledger.Cooldowns); len(missing) > 0 {
		report.MissingColumns = missing
		report.Rows = len(sheet.Rows)
		report.Skipped = len(sheet.Rows)
		report.Errors = append(report.Errors, fmt.Errorf("%s: %w", sheet.Collection, idx.Check(ledger.Cooldowns)))
		return cooldown.Ledger{}, report
	}

	recs := ledger.Records(idx, sheet.Rows, sheet.RowNumber)
	report.Rows = len(recs)
	l, skipped := cooldown.FromRecords(recs)
	for _, err := range skipped {
		report.skip(err)
	}
	return l, report
}

// LastCycle returns the highest cycle recorded in the cycle log.
func LastCycle(sheet table.Sheet) (int, bool) {
	if !sheet.HasData() {
		return 0, false
	}
	idx := ledger.IndexFor(sheet)
	last, found := 0, false
	for _, rec := range ledger.Records(idx, sheet.Rows, sheet.RowNumber) {
		if c, ok := rec.Int(ledger.ColCycle); ok && (!found || c > last) {
			last, found = c, true
		}
	}
	return last, found
}
