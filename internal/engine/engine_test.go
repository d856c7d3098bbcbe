package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/citycycle/internal/arc"
	"github.com/roach88/citycycle/internal/cooldown"
	"github.com/roach88/citycycle/internal/hook"
	"github.com/roach88/citycycle/internal/intent"
	"github.com/roach88/citycycle/internal/ir"
	"github.com/roach88/citycycle/internal/ledger"
	"github.com/roach88/citycycle/internal/replay"
	"github.com/roach88/citycycle/internal/table"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(mem *table.Memory, gens []Generator, opts ...Option) *Engine {
	base := []Option{
		WithRunIDGenerator(NewFixedGenerator("run-1", "run-2", "run-3", "run-4")),
		WithNow(func() time.Time { return fixedNow }),
	}
	return New(mem, gens, append(base, opts...)...)
}

func gen(name string, fn func(ctx context.Context, s *State) error) Generator {
	return GeneratorFunc{ID: name, Fn: fn}
}

func live() Request { return Request{Cycle: 1} }

func TestRunCycle_FirstCycleBootstrapsLedgers(t *testing.T) {
	mem := table.NewMemory()
	e := newTestEngine(mem, nil)

	report, err := e.RunCycle(context.Background(), live())
	require.NoError(t, err)
	assert.True(t, report.Flush.OK())
	assert.Equal(t, "run-1", report.RunID)

	assert.Equal(t, []ir.Row{ledger.ArcLedger.HeaderRow()}, mem.Grid(ledger.ArcLedgerCollection))
	assert.Equal(t, []ir.Row{ledger.Hooks.HeaderRow()}, mem.Grid(ledger.HooksCollection))
	assert.Equal(t, []ir.Row{ledger.HookArchive.HeaderRow()}, mem.Grid(ledger.HookArchiveCollection))
	assert.Equal(t, []ir.Row{ledger.Cooldowns.HeaderRow()}, mem.Grid(ledger.CooldownsCollection))

	logGrid := mem.Grid(ledger.CycleLogCollection)
	require.Len(t, logGrid, 2)
	assert.Equal(t, ledger.CycleLog.HeaderRow(), logGrid[0])
	// four header appends and the cooldown replace precede the log row
	assert.Equal(t, ir.RowOf(1, "run-1", "live", 5, 0, 0, ir.EngineVersion), logGrid[1])
}

func TestRunCycle_GeneratorsRunInOrder(t *testing.T) {
	mem := table.NewMemory()
	var order []string
	record := func(name string) Generator {
		return gen(name, func(ctx context.Context, s *State) error {
			order = append(order, name)
			return nil
		})
	}
	e := newTestEngine(mem, []Generator{record("arcs"), record("hooks"), record("weather")})

	_, err := e.RunCycle(context.Background(), live())
	require.NoError(t, err)
	assert.Equal(t, []string{"arcs", "hooks", "weather"}, order)
	assert.Equal(t, []string{"arcs", "hooks", "weather"}, e.Generators())
}

func TestRunCycle_ArcsPersistAcrossCycles(t *testing.T) {
	mem := table.NewMemory()
	var seen arc.Arc
	var found bool
	e := newTestEngine(mem, []Generator{
		gen("arcs", func(ctx context.Context, s *State) error {
			switch s.Cycle {
			case 1:
				_, err := s.Arcs.Create(s.ArcTick(0), arc.Spec{ID: "ARC-1", Type: "civic", Tension: 2})
				return err
			case 2:
				seen, found = s.Arcs.Get("ARC-1")
			}
			return nil
		}),
	})

	_, err := e.RunCycle(context.Background(), Request{Cycle: 1})
	require.NoError(t, err)
	report, err := e.RunCycle(context.Background(), Request{Cycle: 2})
	require.NoError(t, err)

	require.True(t, found)
	assert.Equal(t, arc.PhaseEarly, seen.Phase)
	assert.Equal(t, 1, seen.CycleCreated)
	assert.Equal(t, 1, report.LiveArcs)

	logGrid := mem.Grid(ledger.CycleLogCollection)
	require.Len(t, logGrid, 3)
}

func TestRunCycle_HooksExpireAndArchive(t *testing.T) {
	mem := table.NewMemory()
	e := newTestEngine(mem, []Generator{
		gen("hooks", func(ctx context.Context, s *State) error {
			if s.Cycle != 1 {
				return nil
			}
			_, err := s.Hooks.Create(s.HookTick(), hook.Spec{ID: "H1", Type: "rumor", Severity: 5, ExpiresAfter: 1})
			return err
		}),
	})

	first, err := e.RunCycle(context.Background(), Request{Cycle: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, first.ActiveHooks)

	second, err := e.RunCycle(context.Background(), Request{Cycle: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Expired)
	assert.Equal(t, 1, second.Archived)
	assert.Equal(t, 0, second.ActiveHooks)

	hooks, rep := replay.Hooks(table.NewSheet(ledger.HooksCollection, mem.Grid(ledger.HooksCollection)))
	require.Zero(t, rep.Skipped)
	require.Len(t, hooks, 1)
	assert.True(t, hooks[0].IsExpired)
	assert.True(t, hooks[0].Archived)
	assert.Equal(t, 1, hooks[0].Age)

	assert.Len(t, mem.Grid(ledger.HookArchiveCollection), 2)

	// archival is idempotent across cycles
	third, err := e.RunCycle(context.Background(), Request{Cycle: 3})
	require.NoError(t, err)
	assert.Zero(t, third.Archived)
	assert.Len(t, mem.Grid(ledger.HookArchiveCollection), 2)
}

func TestRunCycle_ArchiveSurvivesFailedHookWrites(t *testing.T) {
	mem := table.NewMemory()
	e := newTestEngine(mem, []Generator{
		gen("hooks", func(ctx context.Context, s *State) error {
			if s.Cycle != 1 {
				return nil
			}
			_, err := s.Hooks.Create(s.HookTick(), hook.Spec{ID: "H1", Type: "rumor", Severity: 5, ExpiresAfter: 1})
			return err
		}),
	})

	_, err := e.RunCycle(context.Background(), Request{Cycle: 1})
	require.NoError(t, err)

	// The archive row lands but the Archived flag does not.
	mem.FailWrites(ledger.HooksCollection, errors.New("quota"))
	second, err := e.RunCycle(context.Background(), Request{Cycle: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{ledger.HooksCollection}, second.Flush.FailedCollections)
	assert.Equal(t, 1, second.Archived)
	require.Len(t, mem.Grid(ledger.HookArchiveCollection), 2)

	mem.FailWrites(ledger.HooksCollection, nil)
	third, err := e.RunCycle(context.Background(), Request{Cycle: 3})
	require.NoError(t, err)
	assert.True(t, third.Flush.OK())
	assert.Zero(t, third.Archived)
	assert.Len(t, mem.Grid(ledger.HookArchiveCollection), 2, "no second archive row")

	hooks, _ := replay.Hooks(table.NewSheet(ledger.HooksCollection, mem.Grid(ledger.HooksCollection)))
	require.Len(t, hooks, 1)
	assert.True(t, hooks[0].Archived)
	assert.True(t, hooks[0].IsExpired)
}

func TestRunCycle_WithoutArchiveCollection(t *testing.T) {
	mem := table.NewMemory()
	c := DefaultCollections()
	c.Archive = ""
	e := newTestEngine(mem, nil, WithCollections(c))

	_, err := e.RunCycle(context.Background(), live())
	require.NoError(t, err)
	assert.NotContains(t, mem.Collections(), ledger.HookArchiveCollection)
}

func TestRunCycle_CooldownsDecayAndPersist(t *testing.T) {
	mem := table.NewMemory()
	e := newTestEngine(mem, []Generator{
		gen("crime", func(ctx context.Context, s *State) error {
			if s.Cycle == 1 {
				assert.Equal(t, 3, s.ApplyCooldown("crime", cooldown.SeverityHigh))
				assert.True(t, s.IsSuppressed("crime"))
			}
			return nil
		}),
	}, WithCooldownPolicy(CooldownPolicy{
		Rules: []cooldown.Rule{{Holiday: "Halloween", Boost: []string{"crime"}}},
	}))

	_, err := e.RunCycle(context.Background(), Request{Cycle: 1})
	require.NoError(t, err)
	assert.Equal(t, []ir.Row{
		ledger.Cooldowns.HeaderRow(),
		ir.RowOf("crime", 3, 1),
	}, mem.Grid(ledger.CooldownsCollection))

	_, err = e.RunCycle(context.Background(), Request{Cycle: 2})
	require.NoError(t, err)
	assert.Equal(t, ir.RowOf("crime", 2, 2), mem.Grid(ledger.CooldownsCollection)[1])

	report, err := e.RunCycle(context.Background(), Request{
		Cycle:    3,
		Calendar: cooldown.Calendar{Holiday: "Halloween"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"crime"}, report.Boosted)
	assert.Equal(t, 0, report.Cooldowns["crime"])
	assert.Equal(t, ir.RowOf("crime", 0, 3), mem.Grid(ledger.CooldownsCollection)[1])
}

func TestRunCycle_DryRunWritesNothing(t *testing.T) {
	mem := table.NewMemory()
	e := newTestEngine(mem, []Generator{
		gen("arcs", func(ctx context.Context, s *State) error {
			_, err := s.Arcs.Create(s.ArcTick(0), arc.Spec{Type: "civic", Tension: 1})
			return err
		}),
	})

	report, err := e.RunCycle(context.Background(), Request{Cycle: 1, Mode: intent.Mode{DryRun: true}})
	require.NoError(t, err)
	assert.True(t, report.Flush.DryRun)
	assert.NotEmpty(t, report.Flush.Planned)
	assert.Equal(t, 1, report.LiveArcs)
	assert.Zero(t, mem.Writes())
	assert.Empty(t, mem.Collections())
}

func TestRunCycle_GeneratorErrorAbortsCycle(t *testing.T) {
	mem := table.NewMemory()
	boom := errors.New("boom")
	e := newTestEngine(mem, []Generator{
		gen("arcs", func(ctx context.Context, s *State) error {
			_, err := s.Arcs.Create(s.ArcTick(0), arc.Spec{ID: "ARC-1", Type: "civic"})
			return err
		}),
		gen("broken", func(ctx context.Context, s *State) error { return boom }),
	})

	_, err := e.RunCycle(context.Background(), live())
	require.Error(t, err)
	assert.True(t, IsGeneratorError(err))
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, mem.Writes())
}

func TestRunCycle_IntentBudget(t *testing.T) {
	mem := table.NewMemory()
	e := newTestEngine(mem, []Generator{
		gen("noisy", func(ctx context.Context, s *State) error {
			for i := 0; i < 3; i++ {
				if _, err := s.Hooks.Create(s.HookTick(), hook.Spec{Type: "rumor", Severity: 3}); err != nil {
					return err
				}
			}
			return nil
		}),
	}, WithMaxIntents(6))

	_, err := e.RunCycle(context.Background(), live())
	require.Error(t, err)
	assert.True(t, IsBudgetError(err))

	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "noisy", re.Generator)
	assert.Zero(t, mem.Writes())
}

func TestRunCycle_InvalidCycle(t *testing.T) {
	e := newTestEngine(table.NewMemory(), nil)

	_, err := e.RunCycle(context.Background(), Request{Cycle: 0})
	var re *RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, ErrCodeInvalidCycle, re.Code)
}

func TestRunCycle_CancelledContext(t *testing.T) {
	mem := table.NewMemory()
	e := newTestEngine(mem, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.RunCycle(ctx, live())
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, mem.Writes())
}

func TestRunCycle_PartialFailureIsReported(t *testing.T) {
	mem := table.NewMemory()
	mem.FailWrites(ledger.CooldownsCollection, errors.New("quota"))
	e := newTestEngine(mem, nil)

	report, err := e.RunCycle(context.Background(), live())
	require.NoError(t, err)
	assert.False(t, report.Flush.OK())
	assert.Equal(t, []string{ledger.CooldownsCollection}, report.Flush.FailedCollections)
	assert.Len(t, mem.Grid(ledger.CycleLogCollection), 2)
}

func TestRunCycle_StrictFailureReturnsFlushError(t *testing.T) {
	mem := table.NewMemory()
	mem.FailWrites(ledger.CooldownsCollection, errors.New("quota"))
	e := newTestEngine(mem, nil, WithStrict(true))

	report, err := e.RunCycle(context.Background(), live())
	require.Error(t, err)
	assert.True(t, intent.IsFlushError(err))
	assert.True(t, report.Mode.Strict)
}

func TestRunCycle_ReplayReproducesRecordedArcRows(t *testing.T) {
	mem := table.NewMemory()
	script := func(ctx context.Context, s *State) error {
		if s.Cycle == 1 {
			_, err := s.Arcs.Create(s.ArcTick(0), arc.Spec{Type: "civic", Tension: 2, Summary: "budget fight"})
			return err
		}
		for _, a := range s.Arcs.Live() {
			if _, err := s.Arcs.Advance(a, s.ArcTick(2)); err != nil {
				return err
			}
		}
		return nil
	}
	e := newTestEngine(mem, []Generator{gen("arcs", script)})

	_, err := e.RunCycle(context.Background(), Request{Cycle: 1})
	require.NoError(t, err)
	_, err = e.RunCycle(context.Background(), Request{Cycle: 2})
	require.NoError(t, err)

	recorded := mem.Grid(ledger.ArcLedgerCollection)
	require.Len(t, recorded, 3)

	for cycle := 1; cycle <= 2; cycle++ {
		report, err := e.RunCycle(context.Background(), Request{Cycle: cycle, Mode: intent.Mode{Replay: true}})
		require.NoError(t, err)

		var planned []ir.Row
		for _, op := range report.Flush.Planned {
			if op.Collection == ledger.ArcLedgerCollection && op.Kind == intent.KindAppend {
				planned = append(planned, op.Values...)
			}
		}
		require.Len(t, planned, 1, "cycle %d", cycle)
		assert.Equal(t, recorded[cycle], planned[0], "cycle %d", cycle)
	}
	assert.Len(t, mem.Grid(ledger.ArcLedgerCollection), 3)
}

func TestLastCycle(t *testing.T) {
	mem := table.NewMemory()
	e := newTestEngine(mem, nil)

	_, ok, err := e.LastCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = e.RunCycle(context.Background(), Request{Cycle: 4})
	require.NoError(t, err)

	n, ok, err := e.LastCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4, n)
}
