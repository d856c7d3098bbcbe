package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/citycycle/internal/arc"
	"github.com/roach88/citycycle/internal/cooldown"
	"github.com/roach88/citycycle/internal/hook"
	"github.com/roach88/citycycle/internal/intent"
	"github.com/roach88/citycycle/internal/ir"
	"github.com/roach88/citycycle/internal/ledger"
	"github.com/roach88/citycycle/internal/replay"
	"github.com/roach88/citycycle/internal/table"
)

// DefaultMaxIntents is the default intent budget per cycle.
const DefaultMaxIntents = 5000

// Collections names the stored collections.
type Collections struct {
	Arcs      string
	Hooks     string
	Archive   string
	Cooldowns string
	CycleLog  string
}

// DefaultCollections returns the standard collection names.
func DefaultCollections() Collections {
	return Collections{
		Arcs:      ledger.ArcLedgerCollection,
		Hooks:     ledger.HooksCollection,
		Archive:   ledger.HookArchiveCollection,
		Cooldowns: ledger.CooldownsCollection,
		CycleLog:  ledger.CycleLogCollection,
	}
}

// Engine runs cycles against one store.
//
// INVARIANTS:
//   - generators order NEVER changes after construction
//   - every store write of a cycle happens in its single flush
type Engine struct {
	store       table.Store
	generators  []Generator
	collections Collections
	thresholds  arc.ThresholdSet
	expiry      int
	archive     bool
	policy      CooldownPolicy
	strict      bool
	budget      IntentBudget
	runIDs      RunIDGenerator
	idSource    func(cycle int) func() string
	now         func() time.Time
	logger      *slog.Logger
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithCollections overrides the collection names. An empty Archive
// disables hook archival.
func WithCollections(c Collections) Option {
	return func(e *Engine) {
		e.collections = c
		e.archive = c.Archive != ""
	}
}

// WithThresholds sets the arc phase thresholds.
func WithThresholds(t arc.ThresholdSet) Option {
	return func(e *Engine) { e.thresholds = t }
}

// WithHookExpiry sets the default expiry age for new hooks.
func WithHookExpiry(cycles int) Option {
	return func(e *Engine) { e.expiry = cycles }
}

// WithCooldownPolicy sets the cooldown domain lists and calendar rules.
func WithCooldownPolicy(p CooldownPolicy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithStrict makes every flush abort on the first store failure.
func WithStrict(strict bool) Option {
	return func(e *Engine) { e.strict = strict }
}

// WithMaxIntents sets the per-cycle intent budget. Zero disables it.
func WithMaxIntents(n int) Option {
	return func(e *Engine) { e.budget = NewIntentBudget(n) }
}

// WithRunIDGenerator sets the run ID source.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) { e.runIDs = g }
}

// WithIDSource sets the per-cycle source of entity IDs.
func WithIDSource(src func(cycle int) func() string) Option {
	return func(e *Engine) { e.idSource = src }
}

// WithNow sets the wall clock used to stamp intents.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New creates an Engine. The generators slice is copied; generators run in
// the given order every cycle.
func New(store table.Store, generators []Generator, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		generators:  append([]Generator(nil), generators...),
		collections: DefaultCollections(),
		thresholds:  arc.DefaultThresholdSet(),
		expiry:      hook.DefaultExpiresAfter,
		archive:     true,
		budget:      NewIntentBudget(DefaultMaxIntents),
		runIDs:      UUIDv7Generator{},
		idSource:    CycleIDSource,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Generators returns the registered generator names in run order.
func (e *Engine) Generators() []string {
	names := make([]string, len(e.generators))
	for i, g := range e.generators {
		names[i] = g.Name()
	}
	return names
}

// Request selects the cycle to run.
type Request struct {
	Cycle    int
	Calendar cooldown.Calendar
	Mode     intent.Mode
}

// Report describes one cycle run.
type Report struct {
	Cycle int
	RunID string
	Mode  intent.Mode

	Boosted    []string
	Suppressed []string

	// Queued counts the intents handed to the executor.
	Queued intent.Summary
	Flush  intent.Result

	LiveArcs    int
	ActiveHooks int
	Expired     int
	Archived    int

	// Cooldowns is the ledger persisted by this cycle.
	Cooldowns cooldown.Ledger

	Replay []replay.Report
}

// Skipped returns the number of malformed rows replay skipped.
func (r Report) Skipped() int {
	n := 0
	for _, rr := range r.Replay {
		n += rr.Skipped
	}
	return n
}

// sheets holds one cycle's loaded collections.
type sheets struct {
	arcs, hooks, archive, cooldowns, log table.Sheet
}

func (e *Engine) load(ctx context.Context) (sheets, error) {
	type target struct {
		name string
		dst  *table.Sheet
	}
	var s sheets
	targets := []target{
		{e.collections.Arcs, &s.arcs},
		{e.collections.Hooks, &s.hooks},
		{e.collections.Cooldowns, &s.cooldowns},
		{e.collections.CycleLog, &s.log},
	}
	if e.archive {
		targets = append(targets, target{e.collections.Archive, &s.archive})
	}
	for _, t := range targets {
		sheet, err := table.Load(ctx, e.store, t.name)
		if err != nil {
			return sheets{}, err
		}
		*t.dst = sheet
	}
	return s, nil
}

// LastCycle returns the highest cycle recorded in the cycle log.
func (e *Engine) LastCycle(ctx context.Context) (int, bool, error) {
	sheet, err := table.Load(ctx, e.store, e.collections.CycleLog)
	if err != nil {
		return 0, false, err
	}
	n, ok := replay.LastCycle(sheet)
	return n, ok, nil
}

// RunCycle runs one cycle: replay, lifecycle processing, generators, and a
// single flush. On error the cycle's intents are discarded. A flush that
// records per-collection failures outside strict mode returns a nil error;
// callers check Report.Flush.OK.
func (e *Engine) RunCycle(ctx context.Context, req Request) (Report, error) {
	if req.Cycle < 1 {
		return Report{}, &RuntimeError{
			Code:    ErrCodeInvalidCycle,
			Message: fmt.Sprintf("cycle must be at least 1, got %d", req.Cycle),
		}
	}
	mode := req.Mode
	mode.Strict = mode.Strict || e.strict

	runID := e.runIDs.Generate()
	logger := e.logger.With("run_id", runID, "cycle", req.Cycle)
	report := Report{Cycle: req.Cycle, RunID: runID, Mode: mode}

	logger.Info("cycle starting", "mode", mode.String(), "generators", len(e.generators))

	loaded, err := e.load(ctx)
	if err != nil {
		return report, fmt.Errorf("cycle %d: %w", req.Cycle, err)
	}

	ec := intent.NewExecutionContext(mode, intent.WithNow(e.now))
	state, err := e.prepare(ec, loaded, req, runID, logger, &report)
	if err != nil {
		ec.Abort()
		return report, fmt.Errorf("cycle %d: %w", req.Cycle, err)
	}

	for _, g := range e.generators {
		if err := ctx.Err(); err != nil {
			ec.Abort()
			return report, fmt.Errorf("cycle %d: %w", req.Cycle, err)
		}
		logger.Debug("generator advancing", "generator", g.Name())
		if err := g.Advance(ctx, state); err != nil {
			ec.Abort()
			return report, newGeneratorError(runID, g.Name(), err)
		}
		if err := e.budget.Check(runID, g.Name(), ec.Len()); err != nil {
			ec.Abort()
			logger.Error("intent budget exceeded", "generator", g.Name(), "queued", ec.Len(), "limit", e.budget.Limit())
			return report, err
		}
	}

	if err := e.finish(ec, state, &report); err != nil {
		ec.Abort()
		return report, fmt.Errorf("cycle %d: %w", req.Cycle, err)
	}

	report.Queued = ec.Summary()
	res, err := intent.NewExecutor(e.store, intent.WithLogger(logger)).Flush(ctx, ec)
	report.Flush = res
	if err != nil {
		ec.Abort()
		logger.Error("cycle flush failed", "error", err)
		return report, fmt.Errorf("cycle %d: %w", req.Cycle, err)
	}
	ec.Clear()

	if !res.OK() {
		logger.Warn("cycle flushed with errors", "failed_collections", res.FailedCollections, "errors", len(res.Errors))
	}
	logger.Info("cycle complete",
		"mode", mode.String(),
		"intents", report.Queued.Total,
		"calls", res.Calls,
		"live_arcs", report.LiveArcs,
		"active_hooks", report.ActiveHooks,
	)
	return report, nil
}

// prepare replays the ledgers, bootstraps headers, and runs the
// cycle-start cooldown and hook passes.
func (e *Engine) prepare(ec *intent.ExecutionContext, s sheets, req Request, runID string, logger *slog.Logger, report *Report) (*State, error) {
	arcState, arcReport := replay.Arcs(s.arcs, req.Cycle)
	hooks, hookReport := replay.Hooks(s.hooks)
	cds, cdReport := replay.Cooldowns(s.cooldowns)
	report.Replay = []replay.Report{arcReport, hookReport, cdReport}
	for _, rr := range report.Replay {
		if rr.Skipped > 0 {
			logger.Warn("replay skipped rows", "collection", rr.Collection, "skipped", rr.Skipped, "missing_columns", rr.MissingColumns)
		}
		for _, err := range rr.Errors {
			logger.Debug("replay skip", "collection", rr.Collection, "reason", err)
		}
	}

	arcIdx, err := ledger.EnsureHeader(ec, s.arcs, ledger.ArcLedger, "arcs")
	if err != nil {
		return nil, err
	}
	hookIdx, err := ledger.EnsureHeader(ec, s.hooks, ledger.Hooks, "hooks")
	if err != nil {
		return nil, err
	}
	logIdx, err := ledger.EnsureHeader(ec, s.log, ledger.CycleLog, "log")
	if err != nil {
		return nil, err
	}

	newID := e.idSource(req.Cycle)
	hookOpts := []hook.Option{
		hook.WithCollection(e.collections.Hooks),
		hook.WithExpiresAfter(e.expiry),
		hook.WithIDSource(newID),
		hook.WithLogger(logger),
	}
	if e.archive {
		archiveIdx, err := ledger.EnsureHeader(ec, s.archive, ledger.HookArchive, "hooks")
		if err != nil {
			return nil, err
		}
		hookOpts = append(hookOpts,
			hook.WithArchive(e.collections.Archive, archiveIdx),
			hook.WithArchivedIDs(replay.ArchivedHooks(s.archive)),
		)
	}

	boosted, suppressed := cooldown.Modifiers(req.Calendar, e.policy.Rules)
	state := &State{
		Cycle:      req.Cycle,
		RunID:      runID,
		Mode:       ec.Mode(),
		Calendar:   req.Calendar,
		Boosted:    boosted,
		Suppressed: suppressed,
		Exec:       ec,
		Arcs: arc.NewLifecycle(ec, arcIdx, arcState,
			arc.WithThresholds(e.thresholds),
			arc.WithCollection(e.collections.Arcs),
			arc.WithIDSource(newID),
			arc.WithLogger(logger),
		),
		Hooks:     hook.NewLifecycle(ec, hookIdx, hooks, hookOpts...),
		Cooldowns: cooldown.Decay(cds, boosted),
		Logger:    logger,
		policy:    e.policy,
		logIdx:    logIdx,
	}
	report.Boosted = boosted
	report.Suppressed = suppressed

	expired, err := state.Hooks.Process(state.HookTick())
	if err != nil {
		return nil, err
	}
	archived, err := state.Hooks.Archive(state.HookTick(), expired)
	if err != nil {
		return nil, err
	}
	state.Expired = expired
	report.Expired = len(expired)
	report.Archived = archived
	return state, nil
}

// finish queues the cooldown table and the cycle log row.
func (e *Engine) finish(ec *intent.ExecutionContext, s *State, report *Report) error {
	if _, err := ec.QueueReplace(e.collections.Cooldowns, cooldown.Rows(s.Cooldowns, s.Cycle), "persist cooldowns", "cooldowns"); err != nil {
		return err
	}

	report.LiveArcs = len(s.Arcs.Live())
	report.ActiveHooks = len(s.Hooks.Active())
	report.Cooldowns = s.Cooldowns.Clone()

	row := s.logIdx.Row(map[string]ir.Value{
		ledger.ColCycle:         ir.Int(s.Cycle),
		ledger.ColRunID:         ir.Text(s.RunID),
		ledger.ColMode:          ir.Text(s.Mode.String()),
		ledger.ColIntents:       ir.Int(ec.Len()),
		ledger.ColLiveArcs:      ir.Int(report.LiveArcs),
		ledger.ColActiveHooks:   ir.Int(report.ActiveHooks),
		ledger.ColEngineVersion: ir.Text(ir.EngineVersion),
	})
	if _, err := ec.QueueLog(e.collections.CycleLog, row, "cycle log", "log"); err != nil {
		return err
	}
	return nil
}
