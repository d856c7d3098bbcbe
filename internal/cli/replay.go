package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/citycycle/internal/cooldown"
	"github.com/roach88/citycycle/internal/engine"
	"github.com/roach88/citycycle/internal/intent"
	"github.com/roach88/citycycle/internal/ir"
	"github.com/roach88/citycycle/internal/ledger"
	"github.com/roach88/citycycle/internal/table"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Cycle  int // 0 replays every logged cycle
	Script string

	calendar calendarFlags
}

// ReplayMismatch describes one arc ledger row that differs.
type ReplayMismatch struct {
	Index    int    `json:"index"`
	Recorded string `json:"recorded,omitempty"`
	Planned  string `json:"planned,omitempty"`
}

// ReplayCycleResult holds the replay result for a single cycle.
type ReplayCycleResult struct {
	Cycle         int              `json:"cycle"`
	Recorded      int              `json:"recorded_rows"`
	Planned       int              `json:"planned_rows"`
	Matched       int              `json:"matched_rows"`
	Deterministic bool             `json:"deterministic"`
	Error         string           `json:"error,omitempty"`
	Mismatches    []ReplayMismatch `json:"mismatches,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Cycles           []ReplayCycleResult `json:"cycles"`
	TotalCycles      int                 `json:"total_cycles"`
	AllDeterministic bool                `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Regenerate recorded cycles and verify determinism",
		Long: `Regenerate recorded cycles without writing and compare the arc ledger
rows each would append against the rows the store recorded for it.

Replay reads the arc ledger as it stood before the cycle, so the same
generator steps must reproduce the same rows byte for byte. Supply the
scenario that drove the original run with --script.

Exit codes:
  0 - All cycles are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (bad config, store unreachable, etc.)

Examples:
  citycycle replay
  citycycle replay --cycle 4 --script ./scenarios/harbor.yaml
  citycycle replay --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Cycle, "cycle", 0, "replay one cycle only")
	cmd.Flags().StringVar(&opts.Script, "script", "", "scenario file whose steps drive the generators")
	opts.calendar.register(cmd.Flags())

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
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
	eng := engine.New(st, generators, engineOptions(cfg, logger)...)

	cycles := []int{opts.Cycle}
	if opts.Cycle == 0 {
		last, _, err := eng.LastCycle(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read cycle log", err)
		}
		cycles = cycles[:0]
		for c := 1; c <= last; c++ {
			cycles = append(cycles, c)
		}
	}

	result := ReplayResult{
		Cycles:           make([]ReplayCycleResult, 0, len(cycles)),
		TotalCycles:      len(cycles),
		AllDeterministic: true,
	}
	if len(cycles) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(cmd, result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No cycles found in cycle log.")
		return nil
	}

	arcs := cfg.Collections.ArcLedger
	for _, c := range cycles {
		cr, err := replayCycle(ctx, eng, st, arcs, c, opts.calendar.Calendar)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay cycle %d", c), err)
		}
		logger.Debug("cycle replayed", "cycle", c, "deterministic", cr.Deterministic, "matched", cr.Matched)
		result.Cycles = append(result.Cycles, cr)
		if !cr.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr()), result)
}

// replayCycle runs cycle in replay mode and compares its planned arc
// ledger rows with the recorded ones. Store read failures are returned;
// a cycle that fails to run is reported as non-deterministic.
func replayCycle(ctx context.Context, eng *engine.Engine, st table.Store, arcs string, cycle int, cal cooldown.Calendar) (ReplayCycleResult, error) {
	out := ReplayCycleResult{Cycle: cycle}

	sheet, err := table.Load(ctx, st, arcs)
	if err != nil {
		return out, err
	}
	cycleCol, ok := ledger.IndexFor(sheet).Col(ledger.ColCycle)
	if !ok && sheet.HasData() {
		return out, fmt.Errorf("%s has no %s column", arcs, ledger.ColCycle)
	}
	inCycle := func(row ir.Row) bool {
		if cycleCol == 0 || cycleCol > len(row) {
			return false
		}
		n, ok := ir.ToInt(row[cycleCol-1])
		return ok && int(n) == cycle
	}

	var recorded []ir.Row
	for _, row := range sheet.Rows {
		if inCycle(row) {
			recorded = append(recorded, row)
		}
	}

	report, err := eng.RunCycle(ctx, engine.Request{
		Cycle:    cycle,
		Calendar: cal,
		Mode:     intent.Mode{Replay: true},
	})
	if err != nil {
		out.Recorded = len(recorded)
		out.Error = err.Error()
		return out, nil
	}

	var planned []ir.Row
	for _, op := range report.Flush.Planned {
		if op.Collection != arcs || op.Log || op.Kind != intent.KindAppend {
			continue
		}
		for _, row := range op.Values {
			if inCycle(row) {
				planned = append(planned, row)
			}
		}
	}

	out.Recorded, out.Planned = len(recorded), len(planned)
	for i := 0; i < max(len(recorded), len(planned)); i++ {
		var rec, plan ir.Row
		if i < len(recorded) {
			rec = trimRow(recorded[i])
		}
		if i < len(planned) {
			plan = trimRow(planned[i])
		}
		same, err := sameRow(rec, plan)
		if err != nil {
			return out, err
		}
		if same {
			out.Matched++
			continue
		}
		out.Mismatches = append(out.Mismatches, ReplayMismatch{
			Index:    i,
			Recorded: renderRow(rec),
			Planned:  renderRow(plan),
		})
	}
	out.Deterministic = len(out.Mismatches) == 0
	return out, nil
}

// trimRow drops trailing empty cells, which stores may or may not keep.
func trimRow(row ir.Row) ir.Row {
	n := len(row)
	for n > 0 && ir.IsEmpty(row[n-1]) {
		n--
	}
	return row[:n]
}

func sameRow(a, b ir.Row) (bool, error) {
	if a == nil || b == nil {
		return a == nil && b == nil, nil
	}
	fa, err := ir.RowFingerprint(a)
	if err != nil {
		return false, err
	}
	fb, err := ir.RowFingerprint(b)
	if err != nil {
		return false, err
	}
	return fa == fb, nil
}

func renderRow(row ir.Row) string {
	if row == nil {
		return ""
	}
	data, err := ir.MarshalRow(row)
	if err != nil {
		return fmt.Sprint([]ir.Value(row))
	}
	return string(data)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, f *OutputFormatter, result ReplayResult) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Replay Summary: %d cycle(s)\n\n", result.TotalCycles)

	for _, c := range result.Cycles {
		if c.Deterministic {
			f.Pass("Cycle %d", c.Cycle)
		} else {
			f.Fail("Cycle %d", c.Cycle)
		}
		fmt.Fprintf(w, "  Arc rows: %d recorded, %d planned, %d matched\n", c.Recorded, c.Planned, c.Matched)
		if c.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", c.Error)
		}
		for _, m := range c.Mismatches {
			fmt.Fprintf(w, "  Row %d differs\n", m.Index)
			if f.Verbose {
				f.Detail("recorded: %s", m.Recorded)
				f.Detail("planned:  %s", m.Planned)
			}
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		f.Pass("All cycles verified deterministic")
		return nil
	}
	f.Fail("Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
