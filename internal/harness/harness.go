package harness

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/citycycle/internal/arc"
	"github.com/roach88/citycycle/internal/engine"
	"github.com/roach88/citycycle/internal/intent"
	"github.com/roach88/citycycle/internal/logging"
	"github.com/roach88/citycycle/internal/table"
	"github.com/roach88/citycycle/internal/testutil"
)

// Harness runs one scenario with deterministic run IDs, entity IDs and
// wall clock.
type Harness struct {
	store  *table.Memory
	engine *engine.Engine
	clock  *testutil.FixedClock
	runIDs *testutil.FixedRunIDGenerator
	logger *slog.Logger

	collections engine.Collections
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger handed to the engine. Logs are discarded by
// default.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) { h.logger = logger }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh memory store. Execution flow:
//  1. Seed the store
//  2. Build the engine with one scripted generator
//  3. Run each cycle, checking expect_error
//  4. Evaluate the cycle's expect clauses against the store
//
// Run returns an error only when the scenario cannot be set up; failed
// expectations are reported in the Result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	return RunContext(context.Background(), scenario, opts...)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	h, err := New(scenario, opts...)
	if err != nil {
		return nil, err
	}
	return h.Execute(ctx, scenario), nil
}

// New prepares a harness for scenario: a seeded memory store and an engine
// configured from the scenario settings.
func New(scenario *Scenario, opts ...Option) (*Harness, error) {
	h := &Harness{
		store:  table.NewMemory(),
		clock:  testutil.NewFixedClock(time.Time{}),
		runIDs: testutil.NewFixedRunIDGenerator(scenario.RunID),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}

	seed, names, err := scenario.SeedRows()
	if err != nil {
		return nil, fmt.Errorf("failed to seed store: %w", err)
	}
	for _, name := range names {
		h.store.Seed(name, seed[name])
	}

	engOpts, err := h.engineOptions(scenario.Settings)
	if err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	gen := NewScriptGenerator(scenario.Cycles)
	h.engine = engine.New(h.store, []engine.Generator{gen}, engOpts...)
	return h, nil
}

// Store returns the harness's memory store.
func (h *Harness) Store() *table.Memory {
	return h.store
}

func (h *Harness) engineOptions(s Settings) ([]engine.Option, error) {
	thresholds := arc.ThresholdSet{Default: s.Thresholds.Apply(arc.DefaultThresholds())}
	if len(s.ByType) > 0 {
		thresholds.ByType = make(map[string]arc.Thresholds, len(s.ByType))
		for typ, o := range s.ByType {
			thresholds.ByType[typ] = o.Apply(thresholds.Default)
		}
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}

	h.collections = engine.DefaultCollections()
	if s.NoArchive {
		h.collections.Archive = ""
	}

	opts := []engine.Option{
		engine.WithCollections(h.collections),
		engine.WithThresholds(thresholds),
		engine.WithCooldownPolicy(engine.CooldownPolicy{
			PriorityDomains: s.PriorityDomains,
			LongDomains:     s.LongDomains,
			Rules:           s.Rules,
		}),
		engine.WithStrict(s.Strict),
		engine.WithRunIDGenerator(h.runIDs),
		engine.WithIDSource(testutil.SequentialIDs),
		engine.WithNow(h.clock.Now),
		engine.WithLogger(h.logger),
	}
	if s.ExpiresAfter > 0 {
		opts = append(opts, engine.WithHookExpiry(s.ExpiresAfter))
	}
	if s.MaxIntents > 0 {
		opts = append(opts, engine.WithMaxIntents(s.MaxIntents))
	}
	return opts, nil
}

// Execute runs every cycle of the scenario in order.
func (h *Harness) Execute(ctx context.Context, scenario *Scenario) *Result {
	result := NewResult()
	for _, script := range scenario.Cycles {
		cr := h.runCycle(ctx, script)
		for _, msg := range cr.Errors {
			result.AddError(fmt.Sprintf("cycle %d: %s", cr.Cycle, msg))
		}
		result.Cycles = append(result.Cycles, cr)
		h.clock.Advance(time.Hour)
	}
	return result
}

func (h *Harness) runCycle(ctx context.Context, script CycleScript) CycleResult {
	cr := CycleResult{Cycle: script.Cycle}

	mode, err := intent.ParseMode(script.Mode)
	if err != nil {
		cr.Errors = append(cr.Errors, err.Error())
		return cr
	}

	cr.Report, cr.Err = h.engine.RunCycle(ctx, engine.Request{
		Cycle:    script.Cycle,
		Calendar: script.Calendar,
		Mode:     mode,
	})

	switch {
	case script.ExpectError == "" && cr.Err != nil:
		cr.Errors = append(cr.Errors, fmt.Sprintf("unexpected error: %v", cr.Err))
	case script.ExpectError != "" && cr.Err == nil:
		cr.Errors = append(cr.Errors, fmt.Sprintf("expected error containing %q, got none", script.ExpectError))
	case script.ExpectError != "" && !strings.Contains(cr.Err.Error(), script.ExpectError):
		cr.Errors = append(cr.Errors, fmt.Sprintf("expected error containing %q, got: %v", script.ExpectError, cr.Err))
	}
	if cr.Err == nil && !cr.Report.Flush.OK() {
		cr.Errors = append(cr.Errors, fmt.Sprintf("flush failed for %v", cr.Report.Flush.FailedCollections))
	}

	h.logger.Info("scenario cycle complete",
		"cycle", script.Cycle,
		"mode", mode.String(),
		"error", cr.Err,
	)

	actx := &AssertionContext{
		Ctx:         ctx,
		Store:       h.store,
		Collections: h.collections,
		Cycle:       script.Cycle,
	}
	cr.Errors = append(cr.Errors, EvaluateAssertions(script.Expect, actx)...)
	return cr
}
