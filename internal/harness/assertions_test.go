package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/citycycle/internal/engine"
	"github.com/roach88/citycycle/internal/ir"
	"github.com/roach88/citycycle/internal/ledger"
	"github.com/roach88/citycycle/internal/table"
)

func intPtr(n int) *int           { return &n }
func boolPtr(b bool) *bool        { return &b }
func floatPtr(f float64) *float64 { return &f }

func arcStore() *table.Memory {
	st := table.NewMemory()
	st.Seed(ledger.ArcLedgerCollection, []ir.Row{
		ledger.ArcLedger.HeaderRow(),
		ir.RowOf("CIVIC-1", "civic", "early", 2.0, "", "", "", "", 1, nil, nil, 1, 1),
		ir.RowOf("CIVIC-1", "civic", "rising", 4.0, "", "", "", "", 1, nil, nil, 2, 2),
		ir.RowOf("CRIME-1", "crime", "resolved", 1.0, "", "", "", "", 1, 2, nil, 2, 3),
		ir.RowOf("CIVIC-1", "civic", "peak", 7.0, "", "", "", "", 1, nil, nil, 3, 4),
	})
	return st
}

func TestEvaluateAssertions_Arcs(t *testing.T) {
	actx := &AssertionContext{
		Ctx:         t.Context(),
		Store:       arcStore(),
		Collections: engine.DefaultCollections(),
		Cycle:       2,
	}

	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"phase as of cycle", Assertion{Type: AssertArcPhase, Arc: "CIVIC-1", Phase: "rising", Tension: floatPtr(4)}, ""},
		{"later rows ignored", Assertion{Type: AssertArcPhase, Arc: "CIVIC-1", Phase: "peak"}, "arc_phase CIVIC-1: expected peak, got rising"},
		{"tension mismatch", Assertion{Type: AssertArcPhase, Arc: "CIVIC-1", Phase: "rising", Tension: floatPtr(5)}, "expected tension 5, got tension 4"},
		{"resolved", Assertion{Type: AssertArcResolved, Arc: "CRIME-1"}, ""},
		{"resolved is not live", Assertion{Type: AssertArcPhase, Arc: "CRIME-1", Phase: "early"}, "got resolved"},
		{"not resolved", Assertion{Type: AssertArcResolved, Arc: "CIVIC-1"}, "expected resolved, got rising"},
		{"missing", Assertion{Type: AssertArcResolved, Arc: "NOPE"}, "no such arc"},
		{"row count", Assertion{Type: AssertArcRows, Arc: "CIVIC-1", Count: intPtr(3)}, ""},
		{"row count mismatch", Assertion{Type: AssertArcRows, Arc: "CRIME-1", Count: intPtr(2)}, "expected 2 rows, got 1 rows"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions([]Assertion{tt.assertion}, actx)
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.wantErr)
		})
	}
}

func TestEvaluateAssertions_HooksAndCooldowns(t *testing.T) {
	st := table.NewMemory()
	st.Seed(ledger.HooksCollection, []ir.Row{
		ledger.Hooks.HeaderRow(),
		ir.RowOf("HOOK-1", "rumor", "", 1, 4, 1, 3, 5, false, 2, false),
	})
	st.Seed(ledger.CooldownsCollection, []ir.Row{
		ledger.Cooldowns.HeaderRow(),
		ir.RowOf("crime", 2, 3),
	})
	actx := &AssertionContext{Ctx: t.Context(), Store: st, Collections: engine.DefaultCollections(), Cycle: 3}

	errs := EvaluateAssertions([]Assertion{
		{Type: AssertHookState, Hook: "HOOK-1", Age: intPtr(3), Severity: intPtr(4), Expired: boolPtr(false), PickedUp: boolPtr(true)},
		{Type: AssertCooldown, Domain: "crime", Remaining: intPtr(2)},
		{Type: AssertCooldown, Domain: "politics", Remaining: intPtr(0)},
		{Type: AssertRowCount, Collection: ledger.HooksCollection, Count: intPtr(1)},
		{Type: AssertRowCount, Collection: "Never_Written", Count: intPtr(0)},
	}, actx)
	assert.Empty(t, errs)

	errs = EvaluateAssertions([]Assertion{
		{Type: AssertHookState, Hook: "HOOK-1", Age: intPtr(1), Archived: boolPtr(true)},
		{Type: AssertHookState, Hook: "HOOK-2"},
	}, actx)
	require.Len(t, errs, 2)
	assert.Equal(t, "hook_state HOOK-1: expected matching fields, got age=3 (want 1), archived=false (want true)", errs[0])
	assert.Contains(t, errs[1], "no such hook")
}

func TestValidateAssertion(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		errMsg    string
	}{
		{"missing type", Assertion{}, "type is required"},
		{"phase without arc", Assertion{Type: AssertArcPhase, Phase: "early"}, "arc and phase are required"},
		{"unknown phase", Assertion{Type: AssertArcPhase, Arc: "A", Phase: "simmering"}, `unknown phase "simmering"`},
		{"resolved without arc", Assertion{Type: AssertArcResolved}, "arc is required"},
		{"rows without count", Assertion{Type: AssertArcRows, Arc: "A"}, "arc and count are required"},
		{"hook without id", Assertion{Type: AssertHookState}, "hook is required"},
		{"cooldown without remaining", Assertion{Type: AssertCooldown, Domain: "crime"}, "domain and remaining are required"},
		{"negative row count", Assertion{Type: AssertRowCount, Collection: "X", Count: intPtr(-1)}, "count must be non-negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAssertion(&tt.assertion)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	assert.NoError(t, validateAssertion(&Assertion{Type: AssertRowCount, Collection: "X", Count: intPtr(0)}))
}
