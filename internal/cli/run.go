package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/citycycle/internal/engine"
	"github.com/roach88/citycycle/internal/harness"
	"github.com/roach88/citycycle/internal/intent"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Cycle  int
	Script string
	DryRun bool
	Strict bool

	calendar calendarFlags

	// RunIDs overrides the run ID generator (for testing).
	// If nil, the engine's UUIDv7 generator is used.
	RunIDs engine.RunIDGenerator
}

// CycleOutput is the JSON/text payload of a finished cycle.
type CycleOutput struct {
	Cycle       int            `json:"cycle"`
	RunID       string         `json:"run_id"`
	Mode        string         `json:"mode"`
	Intents     int            `json:"intents"`
	Calls       int            `json:"calls"`
	Cells       int            `json:"cells_written"`
	Ranges      int            `json:"ranges_written"`
	Appended    int            `json:"rows_appended"`
	Replaced    int            `json:"rows_replaced"`
	LiveArcs    int            `json:"live_arcs"`
	ActiveHooks int            `json:"active_hooks"`
	Expired     int            `json:"expired"`
	Archived    int            `json:"archived"`
	Skipped     int            `json:"skipped_rows"`
	Boosted     []string       `json:"boosted,omitempty"`
	Suppressed  []string       `json:"suppressed,omitempty"`
	Cooldowns   map[string]int `json:"cooldowns,omitempty"`
	Failed      []string       `json:"failed_collections,omitempty"`
	Errors      []string       `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one cycle against the configured store",
		Long: `Run one cycle: replay the ledgers, age hooks and cooldowns, run the
generators, and flush every change in one pass.

Without --cycle the next cycle after the last one in the cycle log runs.
With --script the steps a scenario file lists for that cycle are applied.

Example:
  citycycle run
  citycycle run --cycle 12 --holiday "Harvest Fair" --holiday-priority major
  citycycle run --script ./scenarios/harbor.yaml --dry-run --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCycle(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Cycle, "cycle", 0, "cycle number (default: last logged cycle + 1)")
	cmd.Flags().StringVar(&opts.Script, "script", "", "scenario file whose steps drive the generators")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "plan the flush without writing")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "abort the flush on the first store failure")
	opts.calendar.register(cmd.Flags())

	return cmd
}

func runCycle(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := opts.logger(cfg, cmd)

	ctx, stop := signalContext(cmd)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing store", "error", closeErr)
		}
	}()

	generators, err := scriptGenerators(opts.Script)
	if err != nil {
		return err
	}

	var extra []engine.Option
	if opts.RunIDs != nil {
		extra = append(extra, engine.WithRunIDGenerator(opts.RunIDs))
	}
	eng := engine.New(st, generators, engineOptions(cfg, logger, extra...)...)

	cycle, err := resolveCycle(ctx, eng, opts.Cycle)
	if err != nil {
		return err
	}

	mode := intent.Mode{DryRun: opts.DryRun, Strict: opts.Strict}
	logger.Debug("running cycle", "cycle", cycle, "mode", mode.String(), "store", cfg.Store.Driver)

	report, runErr := eng.RunCycle(ctx, engine.Request{
		Cycle:    cycle,
		Calendar: opts.calendar.Calendar,
		Mode:     mode,
	})

	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if runErr != nil {
		_ = f.Error(errorCode(runErr), runErr.Error(), map[string]any{"cycle": cycle, "run_id": report.RunID})
		return WrapExitError(ExitFailure, fmt.Sprintf("cycle %d failed", cycle), runErr)
	}

	out := newCycleOutput(report)
	if f.Format == "json" {
		if err := f.Success(out); err != nil {
			return err
		}
	} else {
		outputCycleText(f, out)
	}

	if !report.Flush.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("cycle %d flushed with errors in %v", cycle, report.Flush.FailedCollections))
	}
	return nil
}

// signalContext returns the command context cancelled on SIGINT/SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// scriptGenerators loads the scripted generator for path, if any.
func scriptGenerators(path string) ([]engine.Generator, error) {
	if path == "" {
		return nil, nil
	}
	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load script", err)
	}
	return []engine.Generator{harness.NewScriptGenerator(scenario.Cycles)}, nil
}

// resolveCycle returns requested, or the cycle after the last logged one.
func resolveCycle(ctx context.Context, eng *engine.Engine, requested int) (int, error) {
	if requested != 0 {
		return requested, nil
	}
	last, _, err := eng.LastCycle(ctx)
	if err != nil {
		return 0, WrapExitError(ExitCommandError, "failed to read cycle log", err)
	}
	return last + 1, nil
}

// errorCode maps a cycle error to its CLI error code.
func errorCode(err error) string {
	switch {
	case engine.IsBudgetError(err):
		return "E_BUDGET"
	case engine.IsGeneratorError(err):
		return "E_GENERATOR"
	}
	return "E_CYCLE_FAILED"
}

func newCycleOutput(r engine.Report) CycleOutput {
	out := CycleOutput{
		Cycle:       r.Cycle,
		RunID:       r.RunID,
		Mode:        r.Mode.String(),
		Intents:     r.Queued.Total,
		Calls:       r.Flush.Calls,
		Cells:       r.Flush.CellsWritten,
		Ranges:      r.Flush.RangesWritten,
		Appended:    r.Flush.RowsAppended,
		Replaced:    r.Flush.RowsReplaced,
		LiveArcs:    r.LiveArcs,
		ActiveHooks: r.ActiveHooks,
		Expired:     r.Expired,
		Archived:    r.Archived,
		Skipped:     r.Skipped(),
		Boosted:     r.Boosted,
		Suppressed:  r.Suppressed,
		Failed:      r.Flush.FailedCollections,
	}
	if len(r.Cooldowns) > 0 {
		out.Cooldowns = map[string]int(r.Cooldowns)
	}
	for _, err := range r.Flush.Errors {
		out.Errors = append(out.Errors, err.Error())
	}
	return out
}

func outputCycleText(f *OutputFormatter, out CycleOutput) {
	if len(out.Failed) > 0 {
		f.Warn("Cycle %d (%s) flushed with errors", out.Cycle, out.Mode)
	} else {
		f.Pass("Cycle %d (%s) complete", out.Cycle, out.Mode)
	}
	f.Detail("run:      %s", out.RunID)
	f.Detail("intents:  %d in %d calls (%d cells, %d ranges, %d appended, %d replaced)",
		out.Intents, out.Calls, out.Cells, out.Ranges, out.Appended, out.Replaced)
	f.Detail("arcs:     %d live", out.LiveArcs)
	f.Detail("hooks:    %d active, %d expired, %d archived", out.ActiveHooks, out.Expired, out.Archived)
	if len(out.Boosted) > 0 || len(out.Suppressed) > 0 {
		f.Detail("calendar: boosted %v, suppressed %v", out.Boosted, out.Suppressed)
	}
	if out.Skipped > 0 {
		f.Warn("%d malformed rows skipped during replay", out.Skipped)
	}
	for _, msg := range out.Errors {
		f.Fail("%s", msg)
	}
	f.VerboseLog("cooldowns: %v", out.Cooldowns)
}
