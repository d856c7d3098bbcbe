package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/citycycle/internal/engine"
	"github.com/roach88/citycycle/internal/intent"
	"github.com/roach88/citycycle/internal/ir"
)

func TestRunWithGolden_HarborTwoCycles(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/harbor_two_cycles.yaml")
	require.NoError(t, err)

	// First run with -update to create golden file:
	//   go test ./internal/harness -run TestRunWithGolden_HarborTwoCycles -update
	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRenderPlan_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/arc_lifecycle.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := RenderPlan(scenario.Name, first.Cycles)
	require.NoError(t, err)
	b, err := RenderPlan(scenario.Name, second.Cycles)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRenderPlan_Format(t *testing.T) {
	cycles := []CycleResult{
		{
			Cycle: 4,
			Report: engine.Report{
				Cycle: 4,
				RunID: "run-4",
				Mode:  intent.Mode{DryRun: true},
				Flush: intent.Result{Planned: []intent.Operation{
					{Collection: "Story_Hooks", Kind: intent.KindRange, Row: 3, Col: 7, Values: []ir.Row{ir.RowOf(2, true)}},
					{Collection: "Cycle_Log", Kind: intent.KindAppend, Row: 5, Col: 1, Log: true, Values: []ir.Row{ir.RowOf(4, 1.0)}},
				}},
			},
		},
		{Cycle: 5, Err: errors.New("boom")},
	}

	got, err := RenderPlan("format", cycles)
	require.NoError(t, err)
	assert.Equal(t, `scenario format

cycle 4 dry-run run=run-4
  range Story_Hooks @3:7
    [2,true]
  log Cycle_Log @5:1
    [4,1.0]

cycle 5 failed
`, string(got))
}
