package harness

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/roach88/citycycle/internal/arc"
	"github.com/roach88/citycycle/internal/engine"
	"github.com/roach88/citycycle/internal/hook"
	"github.com/roach88/citycycle/internal/ir"
	"github.com/roach88/citycycle/internal/ledger"
	"github.com/roach88/citycycle/internal/replay"
	"github.com/roach88/citycycle/internal/table"
)

// Assertion checks the stored state after a cycle.
type Assertion struct {
	// Type specifies the assertion type:
	// - "arc_phase": the arc's latest row has Phase (and Tension, if set)
	// - "arc_resolved": the arc's latest row is resolved
	// - "arc_rows": the arc has exactly Count ledger rows
	// - "hook_state": the hook row matches every field set
	// - "cooldown": the domain has Remaining cycles left (absent means 0)
	// - "row_count": the collection has Count rows below the header
	Type string `yaml:"type"`

	Arc        string `yaml:"arc,omitempty"`
	Hook       string `yaml:"hook,omitempty"`
	Domain     string `yaml:"domain,omitempty"`
	Collection string `yaml:"collection,omitempty"`

	Phase   string   `yaml:"phase,omitempty"`
	Tension *float64 `yaml:"tension,omitempty"`

	Age      *int  `yaml:"age,omitempty"`
	Severity *int  `yaml:"severity,omitempty"`
	Expired  *bool `yaml:"expired,omitempty"`
	Archived *bool `yaml:"archived,omitempty"`
	PickedUp *bool `yaml:"picked_up,omitempty"`

	Remaining *int `yaml:"remaining,omitempty"`
	Count     *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertArcPhase    = "arc_phase"
	AssertArcResolved = "arc_resolved"
	AssertArcRows     = "arc_rows"
	AssertHookState   = "hook_state"
	AssertCooldown    = "cooldown"
	AssertRowCount    = "row_count"
)

// AssertionContext carries what assertions read.
type AssertionContext struct {
	Ctx         context.Context
	Store       table.Store
	Collections engine.Collections

	// Cycle is the cycle that just ran.
	Cycle int
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Subject  string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s %s: expected %s, got %s", e.Type, e.Subject, e.Expected, e.Actual)
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for _, a := range assertions {
		if err := evaluate(a, actx); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func evaluate(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertArcPhase, AssertArcResolved:
		return assertArc(a, actx)
	case AssertArcRows:
		return assertArcRows(a, actx)
	case AssertHookState:
		return assertHook(a, actx)
	case AssertCooldown:
		return assertCooldown(a, actx)
	case AssertRowCount:
		return assertRowCount(a, actx)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// validateAssertion checks the fields an assertion type needs.
func validateAssertion(a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("type is required")
	case AssertArcPhase:
		if a.Arc == "" || a.Phase == "" {
			return fmt.Errorf("arc and phase are required for %s", a.Type)
		}
		if _, ok := arc.ParsePhase(a.Phase); !ok {
			return fmt.Errorf("unknown phase %q", a.Phase)
		}
	case AssertArcResolved:
		if a.Arc == "" {
			return fmt.Errorf("arc is required for %s", a.Type)
		}
	case AssertArcRows:
		if a.Arc == "" || a.Count == nil {
			return fmt.Errorf("arc and count are required for %s", a.Type)
		}
	case AssertHookState:
		if a.Hook == "" {
			return fmt.Errorf("hook is required for %s", a.Type)
		}
	case AssertCooldown:
		if a.Domain == "" || a.Remaining == nil {
			return fmt.Errorf("domain and remaining are required for %s", a.Type)
		}
	case AssertRowCount:
		if a.Collection == "" || a.Count == nil {
			return fmt.Errorf("collection and count are required for %s", a.Type)
		}
		if *a.Count < 0 {
			return fmt.Errorf("count must be non-negative for %s", a.Type)
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

func load(actx *AssertionContext, collection string) (table.Sheet, error) {
	return table.Load(actx.Ctx, actx.Store, collection)
}

func assertArc(a Assertion, actx *AssertionContext) error {
	sheet, err := load(actx, actx.Collections.Arcs)
	if err != nil {
		return err
	}
	state, _ := replay.Arcs(sheet, actx.Cycle+1)

	want := arc.PhaseResolved
	if a.Type == AssertArcPhase {
		want, _ = arc.ParsePhase(a.Phase)
	}

	if state.Resolved[a.Arc] {
		if want != arc.PhaseResolved {
			return &AssertionError{Type: a.Type, Subject: a.Arc, Expected: string(want), Actual: string(arc.PhaseResolved)}
		}
		return nil
	}
	live, ok := state.Live[a.Arc]
	if !ok {
		return &AssertionError{Type: a.Type, Subject: a.Arc, Expected: string(want), Actual: "no such arc"}
	}
	if live.Phase != want {
		return &AssertionError{Type: a.Type, Subject: a.Arc, Expected: string(want), Actual: string(live.Phase)}
	}
	if a.Tension != nil && math.Abs(live.Tension-*a.Tension) > 1e-9 {
		return &AssertionError{
			Type:     a.Type,
			Subject:  a.Arc,
			Expected: fmt.Sprintf("tension %g", *a.Tension),
			Actual:   fmt.Sprintf("tension %g", live.Tension),
		}
	}
	return nil
}

func assertArcRows(a Assertion, actx *AssertionContext) error {
	sheet, err := load(actx, actx.Collections.Arcs)
	if err != nil {
		return err
	}
	n := 0
	if col, ok := ledger.IndexFor(sheet).Col(ledger.ColArcID); ok {
		for _, row := range sheet.Rows {
			if col <= len(row) && ir.Format(row[col-1]) == a.Arc {
				n++
			}
		}
	}
	if n != *a.Count {
		return &AssertionError{Type: a.Type, Subject: a.Arc, Expected: fmt.Sprintf("%d rows", *a.Count), Actual: fmt.Sprintf("%d rows", n)}
	}
	return nil
}

func assertHook(a Assertion, actx *AssertionContext) error {
	sheet, err := load(actx, actx.Collections.Hooks)
	if err != nil {
		return err
	}
	hooks, _ := replay.Hooks(sheet)

	var h *hook.Hook
	for i := range hooks {
		if hooks[i].ID == a.Hook {
			h = &hooks[i]
			break
		}
	}
	if h == nil {
		return &AssertionError{Type: a.Type, Subject: a.Hook, Expected: "hook row", Actual: "no such hook"}
	}

	var diffs []string
	checkInt := func(name string, want *int, got int) {
		if want != nil && *want != got {
			diffs = append(diffs, fmt.Sprintf("%s=%d (want %d)", name, got, *want))
		}
	}
	checkBool := func(name string, want *bool, got bool) {
		if want != nil && *want != got {
			diffs = append(diffs, fmt.Sprintf("%s=%t (want %t)", name, got, *want))
		}
	}
	checkInt("age", a.Age, h.Age)
	checkInt("severity", a.Severity, h.Severity)
	checkBool("expired", a.Expired, h.IsExpired)
	checkBool("archived", a.Archived, h.Archived)
	checkBool("picked_up", a.PickedUp, h.PickedUp())

	if len(diffs) > 0 {
		return &AssertionError{Type: a.Type, Subject: a.Hook, Expected: "matching fields", Actual: strings.Join(diffs, ", ")}
	}
	return nil
}

func assertCooldown(a Assertion, actx *AssertionContext) error {
	sheet, err := load(actx, actx.Collections.Cooldowns)
	if err != nil {
		return err
	}
	cds, _ := replay.Cooldowns(sheet)
	if got := cds[a.Domain]; got != *a.Remaining {
		return &AssertionError{Type: a.Type, Subject: a.Domain, Expected: fmt.Sprintf("%d remaining", *a.Remaining), Actual: fmt.Sprintf("%d remaining", got)}
	}
	return nil
}

func assertRowCount(a Assertion, actx *AssertionContext) error {
	sheet, err := load(actx, a.Collection)
	if err != nil {
		return err
	}
	if got := len(sheet.Rows); got != *a.Count {
		return &AssertionError{Type: a.Type, Subject: a.Collection, Expected: fmt.Sprintf("%d rows", *a.Count), Actual: fmt.Sprintf("%d rows", got)}
	}
	return nil
}
