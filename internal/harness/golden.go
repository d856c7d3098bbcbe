package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/citycycle/internal/intent"
	"github.com/roach88/citycycle/internal/ir"
)

// RenderPlan renders the planned store calls of every successful cycle as
// text. Rows are canonical JSON, so the output is byte-stable across runs.
//
//	cycle 1 live run=test-run-default
//	  replace Domain_Cooldowns @1:1
//	    ["Domain","CyclesRemaining","UpdatedCycle"]
func RenderPlan(scenarioName string, cycles []CycleResult) ([]byte, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "scenario %s\n", scenarioName)
	for _, c := range cycles {
		if c.Err != nil {
			fmt.Fprintf(&buf, "\ncycle %d failed\n", c.Cycle)
			continue
		}
		r := c.Report
		fmt.Fprintf(&buf, "\ncycle %d %s run=%s\n", r.Cycle, r.Mode.String(), r.RunID)
		for _, op := range r.Flush.Planned {
			fmt.Fprintf(&buf, "  %s %s @%d:%d\n", opVerb(op), op.Collection, op.Row, op.Col)
			for _, row := range op.Values {
				data, err := ir.MarshalRow(row)
				if err != nil {
					return nil, fmt.Errorf("cycle %d: %s: %w", r.Cycle, op.Collection, err)
				}
				fmt.Fprintf(&buf, "    %s\n", data)
			}
		}
	}
	return buf.Bytes(), nil
}

func opVerb(op intent.Operation) string {
	if op.Log {
		return "log"
	}
	return string(op.Kind)
}

// RunWithGolden executes a scenario and compares its flush plans against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the plan doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return result, err
	}
	return result, nil
}

// AssertGolden compares an existing result's flush plans against the
// golden file named scenarioName.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	plan, err := RenderPlan(scenarioName, result.Cycles)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, plan)
	return nil
}
