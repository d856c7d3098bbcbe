package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/citycycle/internal/ir"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/harbor_two_cycles.yaml")
	require.NoError(t, err)

	assert.Equal(t, "harbor_two_cycles", s.Name)
	assert.Equal(t, "harbor-run", s.RunID)
	require.Len(t, s.Cycles, 2)

	first := s.Cycles[0]
	require.Len(t, first.Steps, 3)
	assert.Equal(t, OpCreateArc, first.Steps[0].Op())
	assert.Equal(t, []string{"Mayor Ruiz", "Dock Union"}, first.Steps[0].CreateArc.Entities)
	assert.Equal(t, 2.5, first.Steps[0].CreateArc.Tension)
	assert.Equal(t, OpCooldown, first.Steps[2].Op())
	assert.Equal(t, "high", first.Steps[2].Cooldown.Severity)

	require.Len(t, first.Expect, 4)
	assert.Equal(t, AssertArcPhase, first.Expect[0].Type)
	require.NotNil(t, first.Expect[1].Age)
	assert.Equal(t, 0, *first.Expect[1].Age)
}

func TestLoadScenario_Settings(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/calendar_cooldowns.yaml")
	require.NoError(t, err)

	require.Len(t, s.Settings.Rules, 1)
	assert.Equal(t, "Halloween", s.Settings.Rules[0].Holiday)
	assert.Equal(t, []string{"crime"}, s.Settings.Rules[0].Boost)
	assert.Equal(t, "Halloween", s.Cycles[0].Calendar.Holiday)
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: misspelled key
cycles:
  - cycle: 1
    step:
      - cooldown: {domain: crime}
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "missing name",
			content: "description: d\ncycles: [{cycle: 1}]\n",
			errMsg:  "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\ncycles: [{cycle: 1}]\n",
			errMsg:  "description is required",
		},
		{
			name:    "no cycles",
			content: "name: n\ndescription: d\n",
			errMsg:  "cycles list is required",
		},
		{
			name:    "cycle zero",
			content: "name: n\ndescription: d\ncycles: [{cycle: 0}]\n",
			errMsg:  "cycle must be at least 1",
		},
		{
			name:    "duplicate cycle",
			content: "name: n\ndescription: d\ncycles: [{cycle: 1}, {cycle: 1}]\n",
			errMsg:  "duplicate cycle 1",
		},
		{
			name:    "bad mode",
			content: "name: n\ndescription: d\ncycles: [{cycle: 1, mode: wet-run}]\n",
			errMsg:  `unknown mode "wet-run"`,
		},
		{
			name:    "empty step",
			content: "name: n\ndescription: d\ncycles: [{cycle: 1, steps: [{}]}]\n",
			errMsg:  "cycles[0].steps[0]: no operation set",
		},
		{
			name: "two operations",
			content: `name: n
description: d
cycles:
  - cycle: 1
    steps:
      - cooldown: {domain: crime}
        pickup_hook: {id: H}
`,
			errMsg: "more than one operation set",
		},
		{
			name:    "advance without id",
			content: "name: n\ndescription: d\ncycles: [{cycle: 1, steps: [{advance_arc: {pressure: 1}}]}]\n",
			errMsg:  "advance_arc: id is required",
		},
		{
			name:    "cooldown without domain",
			content: "name: n\ndescription: d\ncycles: [{cycle: 1, steps: [{cooldown: {severity: high}}]}]\n",
			errMsg:  "cooldown: domain is required",
		},
		{
			name:    "unknown assertion",
			content: "name: n\ndescription: d\ncycles: [{cycle: 1, expect: [{type: vibes}]}]\n",
			errMsg:  `unknown assertion type "vibes"`,
		},
		{
			name:    "negative budget",
			content: "name: n\ndescription: d\nsettings: {max_intents: -1}\ncycles: [{cycle: 1}]\n",
			errMsg:  "max_intents must be non-negative",
		},
		{
			name:    "bad seed cell",
			content: "name: n\ndescription: d\nseed: {Story_Hooks: [[{a: 1}]]}\ncycles: [{cycle: 1}]\n",
			errMsg:  "seed Story_Hooks[0][0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParseScenario_InvalidCycleAllowedWithExpectError(t *testing.T) {
	_, err := ParseScenario([]byte("name: n\ndescription: d\ncycles: [{cycle: 0, expect_error: INVALID_CYCLE}]\n"))
	assert.NoError(t, err)
}

func TestScenario_SeedRows(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: seeded
description: seed grids convert to rows
seed:
  Domain_Cooldowns:
    - [Domain, CyclesRemaining, UpdatedCycle]
    - [crime, 2, 4]
  Arc_Ledger:
    - [ArcId, Tension, CycleResolved]
    - [CIVIC-1, 2.5, null]
cycles:
  - cycle: 5
`))
	require.NoError(t, err)

	rows, names, err := s.SeedRows()
	require.NoError(t, err)
	assert.Equal(t, []string{"Arc_Ledger", "Domain_Cooldowns"}, names)
	assert.Equal(t, []ir.Row{
		ir.RowOf("Domain", "CyclesRemaining", "UpdatedCycle"),
		ir.RowOf("crime", 2, 4),
	}, rows["Domain_Cooldowns"])
	assert.Equal(t, ir.RowOf("CIVIC-1", 2.5, nil), rows["Arc_Ledger"][1])
}

func TestStep_Op(t *testing.T) {
	assert.Equal(t, OpCreateHook, Step{CreateHook: &CreateHookStep{}}.Op())
	assert.Equal(t, OpPickupHook, Step{PickupHook: &RefStep{ID: "H"}}.Op())
	assert.Equal(t, OpResolveArc, Step{ResolveArc: &RefStep{ID: "A"}}.Op())
	assert.Equal(t, OpAdvanceArc, Step{AdvanceArc: &AdvanceArcStep{ID: "A"}}.Op())
	assert.Empty(t, Step{}.Op())
}
