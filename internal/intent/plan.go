package intent

import (
	"sort"

	"github.com/roach88/citycycle/internal/ir"
)

// Operation is one store call planned by the executor.
type Operation struct {
	Collection string

	// Kind is the store call: cell, range, append or replace.
	Kind Kind

	// Row and Col address cell and range writes. For appends Row is the
	// planned first row; for replaces it is 1.
	Row int
	Col int

	Values []ir.Row

	// Cells counts cell intents' cells folded into this call; zero for
	// calls that came from range, append or replace intents.
	Cells int

	Log bool

	// Intents lists the IDs of the intents this call applies, in
	// insertion order.
	Intents []string
}

// sortByPriority orders intents by priority, ties by insertion order.
func sortByPriority(intents []WriteIntent) []WriteIntent {
	out := make([]WriteIntent, len(intents))
	copy(out, intents)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// groupByCollection splits intents into per-collection slices in order of
// each collection's first appearance, preserving the input order within
// each group.
func groupByCollection(intents []WriteIntent) (order []string, groups map[string][]WriteIntent) {
	groups = make(map[string][]WriteIntent)
	for _, w := range intents {
		if _, ok := groups[w.Collection]; !ok {
			order = append(order, w.Collection)
		}
		groups[w.Collection] = append(groups[w.Collection], w)
	}
	return order, groups
}

type cellKey struct {
	row, col int
}

// cellRun accumulates consecutive cell intents on one collection.
type cellRun struct {
	values map[cellKey]ir.Value
	ids    map[cellKey][]string
}

func newCellRun() *cellRun {
	return &cellRun{
		values: make(map[cellKey]ir.Value),
		ids:    make(map[cellKey][]string),
	}
}

func (r *cellRun) add(w WriteIntent) {
	key := cellKey{row: w.Address.Row, col: w.Address.Col}
	r.values[key] = w.Values[0][0]
	r.ids[key] = append(r.ids[key], w.ID)
}

func (r *cellRun) empty() bool {
	return len(r.values) == 0
}

// operations turns the run into one call per contiguous column run per row.
// Later writes to the same cell have already replaced earlier ones.
func (r *cellRun) operations(collection string) []Operation {
	byRow := make(map[int][]int)
	for key := range r.values {
		byRow[key.row] = append(byRow[key.row], key.col)
	}
	rows := make([]int, 0, len(byRow))
	for row := range byRow {
		rows = append(rows, row)
	}
	sort.Ints(rows)

	var ops []Operation
	for _, row := range rows {
		cols := byRow[row]
		sort.Ints(cols)

		start := 0
		for i := 1; i <= len(cols); i++ {
			if i < len(cols) && cols[i] == cols[i-1]+1 {
				continue
			}
			run := cols[start:i]
			vals := make(ir.Row, len(run))
			var ids []string
			for j, col := range run {
				key := cellKey{row: row, col: col}
				vals[j] = r.values[key]
				ids = append(ids, r.ids[key]...)
			}
			kind := KindCell
			if len(run) > 1 {
				kind = KindRange
			}
			ops = append(ops, Operation{
				Collection: collection,
				Kind:       kind,
				Row:        row,
				Col:        run[0],
				Values:     []ir.Row{vals},
				Cells:      len(run),
				Intents:    ids,
			})
			start = i
		}
	}
	return ops
}

// planUpdates plans one collection's updates: cell runs coalesced, ranges
// in place, and every append concatenated into one trailing batch.
func planUpdates(collection string, intents []WriteIntent, log bool) (ops []Operation, batch *Operation) {
	run := newCellRun()
	flushRun := func() {
		if !run.empty() {
			ops = append(ops, run.operations(collection)...)
			run = newCellRun()
		}
	}

	for _, w := range intents {
		switch w.Kind {
		case KindCell:
			run.add(w)
		case KindRange:
			flushRun()
			ops = append(ops, Operation{
				Collection: collection,
				Kind:       KindRange,
				Row:        w.Address.Row,
				Col:        w.Address.Col,
				Values:     ir.CloneRows(w.Values),
				Intents:    []string{w.ID},
			})
		case KindAppend:
			if batch == nil {
				batch = &Operation{Collection: collection, Kind: KindAppend, Log: log}
			}
			batch.Values = append(batch.Values, ir.CloneRows(w.Values)...)
			batch.Intents = append(batch.Intents, w.ID)
		}
	}
	flushRun()
	return ops, batch
}
