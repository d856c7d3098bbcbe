// Package arc implements the multi-cycle story arc and its lifecycle.
//
// An arc moves through early, rising, peak and decline to resolved, one step
// at a time and never backwards. Every change is recorded as a full row
// appended to the arc ledger; the current state of an arc is always its
// latest ledger row.
package arc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/citycycle/internal/ir"
	"github.com/roach88/citycycle/internal/ledger"
)

// ErrMalformedRow marks a ledger row that cannot be read as an arc.
var ErrMalformedRow = errors.New("malformed arc row")

// MaxTension and MinTension bound an arc's tension.
const (
	MinTension = 0.0
	MaxTension = 10.0
)

// Arc is one multi-cycle narrative thread.
type Arc struct {
	ID               string
	Type             string
	Phase            Phase
	Tension          float64
	Neighborhood     string
	DomainTag        string
	Summary          string
	InvolvedEntities []string
	CycleCreated     int
	CycleResolved    *int
	CalendarTrigger  *string

	// Cycle is the cycle of the ledger row this state came from.
	Cycle int

	// PhaseSince is the cycle the current phase was entered.
	PhaseSince int
}

// Live reports whether the arc still takes part in cycles.
func (a Arc) Live() bool {
	return a.Phase != "" && !a.Phase.Terminal()
}

// Clone returns a deep copy.
func (a Arc) Clone() Arc {
	out := a
	out.InvolvedEntities = append([]string(nil), a.InvolvedEntities...)
	if a.CycleResolved != nil {
		v := *a.CycleResolved
		out.CycleResolved = &v
	}
	if a.CalendarTrigger != nil {
		v := *a.CalendarTrigger
		out.CalendarTrigger = &v
	}
	return out
}

// FromRecord reads an arc from a ledger row.
// Rows without an ID or with an empty or unknown phase are malformed.
func FromRecord(rec ledger.Record) (Arc, error) {
	id := rec.Text(ledger.ColArcID)
	if id == "" {
		return Arc{}, fmt.Errorf("%w: row %d: no %s", ErrMalformedRow, rec.Row, ledger.ColArcID)
	}
	phase, ok := ParsePhase(rec.Text(ledger.ColPhase))
	if !ok {
		return Arc{}, fmt.Errorf("%w: row %d: arc %s: phase %q", ErrMalformedRow, rec.Row, id, rec.Text(ledger.ColPhase))
	}

	tension := 0.0
	if !rec.Empty(ledger.ColTension) {
		f, ok := rec.Float(ledger.ColTension)
		if !ok {
			return Arc{}, fmt.Errorf("%w: row %d: arc %s: tension %q", ErrMalformedRow, rec.Row, id, rec.Text(ledger.ColTension))
		}
		tension = clampTension(f)
	}

	created := rec.IntOr(ledger.ColCycleCreated, 0)
	return Arc{
		ID:               id,
		Type:             rec.Text(ledger.ColType),
		Phase:            phase,
		Tension:          tension,
		Neighborhood:     rec.Text(ledger.ColNeighborhood),
		DomainTag:        rec.Text(ledger.ColDomainTag),
		Summary:          rec.Text(ledger.ColSummary),
		InvolvedEntities: rec.List(ledger.ColInvolvedEntities),
		CycleCreated:     created,
		CycleResolved:    rec.OptionalInt(ledger.ColCycleResolved),
		CalendarTrigger:  rec.OptionalText(ledger.ColCalendarTrigger),
		Cycle:            rec.IntOr(ledger.ColCycle, created),
	}, nil
}

// Values renders the arc's full ledger row for cycle, keyed by column.
func (a Arc) Values(cycle, seq int) map[string]ir.Value {
	v := map[string]ir.Value{
		ledger.ColArcID:            ir.Text(a.ID),
		ledger.ColType:             ir.Text(a.Type),
		ledger.ColPhase:            ir.Text(string(a.Phase)),
		ledger.ColTension:          ir.Float(a.Tension),
		ledger.ColNeighborhood:     ir.Text(a.Neighborhood),
		ledger.ColDomainTag:        ir.Text(a.DomainTag),
		ledger.ColSummary:          ir.Text(a.Summary),
		ledger.ColInvolvedEntities: ir.Text(strings.Join(a.InvolvedEntities, ", ")),
		ledger.ColCycleCreated:     ir.Int(a.CycleCreated),
		ledger.ColCycleResolved:    ir.Null{},
		ledger.ColCalendarTrigger:  ir.Null{},
		ledger.ColCycle:            ir.Int(cycle),
		ledger.ColSeq:              ir.Int(seq),
	}
	if a.CycleResolved != nil {
		v[ledger.ColCycleResolved] = ir.Int(*a.CycleResolved)
	}
	if a.CalendarTrigger != nil {
		v[ledger.ColCalendarTrigger] = ir.Text(*a.CalendarTrigger)
	}
	return v
}

func clampTension(t float64) float64 {
	return min(max(t, MinTension), MaxTension)
}
