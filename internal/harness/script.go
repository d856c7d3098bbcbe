package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/citycycle/internal/arc"
	"github.com/roach88/citycycle/internal/cooldown"
	"github.com/roach88/citycycle/internal/engine"
	"github.com/roach88/citycycle/internal/hook"
)

// ScriptGeneratorName is the name the scripted generator registers under.
const ScriptGeneratorName = "script"

// ScriptGenerator is an engine.Generator that replays scripted steps.
// Each cycle it runs the steps of the matching CycleScript, in order;
// cycles without a script do nothing.
//
// In replay mode only arc steps run. The hook and cooldown collections
// hold current state rather than history, so their steps cannot be
// re-applied to a cycle that already happened.
type ScriptGenerator struct {
	steps map[int][]Step
}

// NewScriptGenerator builds a generator from a scenario's cycles.
func NewScriptGenerator(cycles []CycleScript) *ScriptGenerator {
	g := &ScriptGenerator{steps: make(map[int][]Step, len(cycles))}
	for _, c := range cycles {
		g.steps[c.Cycle] = append(g.steps[c.Cycle], c.Steps...)
	}
	return g
}

// Name implements engine.Generator.
func (g *ScriptGenerator) Name() string { return ScriptGeneratorName }

// Advance implements engine.Generator.
func (g *ScriptGenerator) Advance(ctx context.Context, s *engine.State) error {
	for i, step := range g.steps[s.Cycle] {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.Mode.Replay && !step.arcStep() {
			s.Logger.Debug("step skipped in replay", "step", i, "op", step.Op())
			continue
		}
		err := applyStep(s, step)
		switch {
		case step.ExpectError == "" && err != nil:
			return fmt.Errorf("step %d (%s): %w", i, step.Op(), err)
		case step.ExpectError != "" && err == nil:
			return fmt.Errorf("step %d (%s): expected error containing %q, got none", i, step.Op(), step.ExpectError)
		case step.ExpectError != "" && !strings.Contains(err.Error(), step.ExpectError):
			return fmt.Errorf("step %d (%s): expected error containing %q, got: %w", i, step.Op(), step.ExpectError, err)
		case err != nil:
			s.Logger.Debug("step failed as expected", "step", i, "op", step.Op(), "error", err)
		}
	}
	return nil
}

func applyStep(s *engine.State, step Step) error {
	switch {
	case step.CreateArc != nil:
		c := step.CreateArc
		_, err := s.Arcs.Create(s.ArcTick(0), arc.Spec{
			ID:               c.ID,
			Type:             c.Type,
			Neighborhood:     c.Neighborhood,
			DomainTag:        c.Domain,
			Summary:          c.Summary,
			InvolvedEntities: c.Entities,
			Tension:          c.Tension,
			CalendarTrigger:  c.CalendarTrigger,
		})
		return err

	case step.AdvanceArc != nil:
		_, err := s.Arcs.Advance(arc.Arc{ID: step.AdvanceArc.ID}, s.ArcTick(step.AdvanceArc.Pressure))
		return err

	case step.ResolveArc != nil:
		_, err := s.Arcs.Resolve(arc.Arc{ID: step.ResolveArc.ID}, s.ArcTick(0))
		return err

	case step.CreateHook != nil:
		c := step.CreateHook
		_, err := s.Hooks.Create(s.HookTick(), hook.Spec{
			ID:           c.ID,
			Type:         c.Type,
			Summary:      c.Summary,
			Priority:     c.Priority,
			Severity:     c.Severity,
			ExpiresAfter: c.ExpiresAfter,
		})
		return err

	case step.PickupHook != nil:
		_, err := s.Hooks.MarkPickedUp(step.PickupHook.ID, s.Cycle)
		return err

	case step.Cooldown != nil:
		s.ApplyCooldown(step.Cooldown.Domain, cooldown.ParseSeverity(step.Cooldown.Severity))
		return nil
	}
	return fmt.Errorf("no operation set")
}
