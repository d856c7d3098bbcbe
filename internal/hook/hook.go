// Package hook implements story-hook aging, decay, expiration and archival.
//
// Hooks live in a single collection that is updated in place; they are read
// fresh every cycle rather than replayed from history. Age is always derived
// from the current cycle and the hook's creation cycle.
package hook

import (
	"errors"
	"fmt"
	"math"

	"github.com/roach88/citycycle/internal/ir"
	"github.com/roach88/citycycle/internal/ledger"
)

const (
	// DefaultExpiresAfter is the age at which a hook expires when the row
	// does not say otherwise.
	DefaultExpiresAfter = 5

	// MinSeverity and MaxSeverity bound a hook's severity.
	MinSeverity = 1
	MaxSeverity = 10

	// DecayRate scales age into severity loss.
	DecayRate = 0.1

	// decayAfterAge is the age a hook must exceed before it decays.
	decayAfterAge = 2
)

// ErrMalformedRow marks a hook row that cannot be read.
var ErrMalformedRow = errors.New("malformed hook row")

// Hook is a short-lived story prompt.
type Hook struct {
	ID           string
	Type         string
	Summary      string
	Priority     int
	Severity     int
	CreatedCycle int
	Age          int
	ExpiresAfter int
	IsExpired    bool
	PickupCycle  *int
	Archived     bool

	// Row is the sheet row the hook was read from; 0 for a hook created
	// this cycle and not yet flushed.
	Row int
}

// Active reports whether the hook is neither expired nor archived.
func (h Hook) Active() bool {
	return !h.IsExpired && !h.Archived
}

// PickedUp reports whether a consumer has picked the hook up.
func (h Hook) PickedUp() bool {
	return h.PickupCycle != nil
}

// Clone returns a deep copy.
func (h Hook) Clone() Hook {
	out := h
	if h.PickupCycle != nil {
		v := *h.PickupCycle
		out.PickupCycle = &v
	}
	return out
}

// UpdateAge recomputes age for the current cycle. A creation cycle in the
// future yields age 0.
func UpdateAge(h Hook, currentCycle int) Hook {
	h.Age = max(currentCycle-h.CreatedCycle, 0)
	return h
}

// CheckExpiration marks the hook expired once its age reaches ExpiresAfter.
// It returns true only on the call that sets IsExpired; the flag is never
// cleared.
func CheckExpiration(h *Hook) bool {
	if h.IsExpired {
		return false
	}
	if h.Age >= h.ExpiresAfter {
		h.IsExpired = true
		return true
	}
	return false
}

// DecayPriority lowers severity by floor(age * DecayRate) once the hook is
// older than two cycles, never below MinSeverity. Pickup does not affect
// decay.
func DecayPriority(h Hook) Hook {
	if h.Age <= decayAfterAge {
		return h
	}
	loss := int(math.Floor(float64(h.Age) * DecayRate))
	h.Severity = max(MinSeverity, h.Severity-loss)
	return h
}

// FromRecord reads a hook from a row of the hooks collection.
func FromRecord(rec ledger.Record) (Hook, error) {
	id := rec.Text(ledger.ColHookID)
	if id == "" {
		return Hook{}, fmt.Errorf("%w: row %d: no %s", ErrMalformedRow, rec.Row, ledger.ColHookID)
	}
	created, ok := rec.Int(ledger.ColCreatedCycle)
	if !ok {
		return Hook{}, fmt.Errorf("%w: row %d: hook %s: created cycle %q", ErrMalformedRow, rec.Row, id, rec.Text(ledger.ColCreatedCycle))
	}

	expires := rec.IntOr(ledger.ColExpiresAfter, DefaultExpiresAfter)
	if expires <= 0 {
		expires = DefaultExpiresAfter
	}
	return Hook{
		ID:           id,
		Type:         rec.Text(ledger.ColType),
		Summary:      rec.Text(ledger.ColSummary),
		Priority:     rec.IntOr(ledger.ColPriority, 0),
		Severity:     clampSeverity(rec.IntOr(ledger.ColSeverity, MinSeverity)),
		CreatedCycle: created,
		Age:          rec.IntOr(ledger.ColAge, 0),
		ExpiresAfter: expires,
		IsExpired:    rec.Bool(ledger.ColIsExpired),
		PickupCycle:  rec.OptionalInt(ledger.ColPickupCycle),
		Archived:     rec.Bool(ledger.ColArchived),
		Row:          rec.Row,
	}, nil
}

// Values renders the hook's full row, keyed by column.
func (h Hook) Values() map[string]ir.Value {
	v := map[string]ir.Value{
		ledger.ColHookID:       ir.Text(h.ID),
		ledger.ColType:         ir.Text(h.Type),
		ledger.ColSummary:      ir.Text(h.Summary),
		ledger.ColPriority:     ir.Int(h.Priority),
		ledger.ColSeverity:     ir.Int(h.Severity),
		ledger.ColCreatedCycle: ir.Int(h.CreatedCycle),
		ledger.ColAge:          ir.Int(h.Age),
		ledger.ColExpiresAfter: ir.Int(h.ExpiresAfter),
		ledger.ColIsExpired:    ir.Bool(h.IsExpired),
		ledger.ColPickupCycle:  ir.Null{},
		ledger.ColArchived:     ir.Bool(h.Archived),
	}
	if h.PickupCycle != nil {
		v[ledger.ColPickupCycle] = ir.Int(*h.PickupCycle)
	}
	return v
}

// ArchiveValues renders the hook's archive row.
func (h Hook) ArchiveValues(cycle int) map[string]ir.Value {
	v := h.Values()
	delete(v, ledger.ColIsExpired)
	delete(v, ledger.ColArchived)
	v[ledger.ColArchivedCycle] = ir.Int(cycle)
	return v
}

func clampSeverity(s int) int {
	return min(max(s, MinSeverity), MaxSeverity)
}
