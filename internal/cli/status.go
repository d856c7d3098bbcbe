package cli

import (
	"fmt"
	"math"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/citycycle/internal/config"
	"github.com/roach88/citycycle/internal/replay"
	"github.com/roach88/citycycle/internal/table"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
}

// ArcStatus is one live arc as reported by status.
type ArcStatus struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	Phase        string  `json:"phase"`
	Tension      float64 `json:"tension"`
	Neighborhood string  `json:"neighborhood"`
	Cycle        int     `json:"cycle"`
}

// HookStatus is one active hook as reported by status.
type HookStatus struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Severity int    `json:"severity"`
	Age      int    `json:"age"`
	PickedUp bool   `json:"picked_up"`
}

// StatusResult is the status command payload.
type StatusResult struct {
	Driver      string         `json:"driver"`
	LastCycle   int            `json:"last_cycle"`
	Rows        map[string]int `json:"rows"`
	LiveArcs    []ArcStatus    `json:"live_arcs"`
	Resolved    int            `json:"resolved_arcs"`
	ActiveHooks []HookStatus   `json:"active_hooks"`
	Cooldowns   map[string]int `json:"cooldowns"`
	Skipped     int            `json:"skipped_rows"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the replayed state of the store",
		Long: `Replay the ledgers without running a cycle and print the last logged
cycle, row counts, live arcs, active hooks and domain cooldowns.

Example:
  citycycle status
  citycycle status --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}
	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
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

	names, err := st.collections(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list collections", err)
	}

	result := StatusResult{
		Driver:      cfg.Store.Driver,
		Rows:        make(map[string]int, len(names)),
		LiveArcs:    []ArcStatus{},
		ActiveHooks: []HookStatus{},
	}
	sheets := make(map[string]table.Sheet, len(names))
	for _, name := range names {
		sheet, err := table.Load(ctx, st, name)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read %s", name), err)
		}
		sheets[name] = sheet
		result.Rows[name] = len(sheet.Rows)
	}

	fillStatus(&result, cfg, sheets)

	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if f.Format == "json" {
		return f.Success(result)
	}
	outputStatusText(f, result)
	return nil
}

// fillStatus replays the configured collections into result. Missing
// collections read as empty.
func fillStatus(result *StatusResult, cfg *config.Config, sheets map[string]table.Sheet) {
	c := cfg.Collections

	last, _ := replay.LastCycle(sheets[c.CycleLog])
	result.LastCycle = last

	arcs, arcReport := replay.Arcs(sheets[c.ArcLedger], math.MaxInt)
	for _, a := range arcs.Live {
		result.LiveArcs = append(result.LiveArcs, ArcStatus{
			ID:           a.ID,
			Type:         a.Type,
			Phase:        string(a.Phase),
			Tension:      a.Tension,
			Neighborhood: a.Neighborhood,
			Cycle:        a.Cycle,
		})
	}
	sort.Slice(result.LiveArcs, func(i, j int) bool { return result.LiveArcs[i].ID < result.LiveArcs[j].ID })
	result.Resolved = len(arcs.Resolved)

	hooks, hookReport := replay.Hooks(sheets[c.Hooks])
	for _, h := range hooks {
		if !h.Active() {
			continue
		}
		result.ActiveHooks = append(result.ActiveHooks, HookStatus{
			ID:       h.ID,
			Type:     h.Type,
			Severity: h.Severity,
			Age:      h.Age,
			PickedUp: h.PickedUp(),
		})
	}

	cds, cdReport := replay.Cooldowns(sheets[c.Cooldowns])
	result.Cooldowns = map[string]int(cds)
	if result.Cooldowns == nil {
		result.Cooldowns = map[string]int{}
	}

	result.Skipped = arcReport.Skipped + hookReport.Skipped + cdReport.Skipped
}

func outputStatusText(f *OutputFormatter, r StatusResult) {
	w := f.Writer
	if r.LastCycle == 0 {
		fmt.Fprintf(w, "Store (%s): no cycles logged\n", r.Driver)
	} else {
		fmt.Fprintf(w, "Store (%s): last cycle %d\n", r.Driver, r.LastCycle)
	}

	names := make([]string, 0, len(r.Rows))
	for name := range r.Rows {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f.Detail("%-22s %d rows", name, r.Rows[name])
	}

	fmt.Fprintf(w, "\nLive arcs: %d (%d resolved)\n", len(r.LiveArcs), r.Resolved)
	for _, a := range r.LiveArcs {
		fmt.Fprintf(w, "  %s  %-8s %4.1f  %s (%s)\n", a.ID, a.Phase, a.Tension, a.Type, a.Neighborhood)
	}

	fmt.Fprintf(w, "\nActive hooks: %d\n", len(r.ActiveHooks))
	for _, h := range r.ActiveHooks {
		picked := ""
		if h.PickedUp {
			picked = " picked up"
		}
		fmt.Fprintf(w, "  %s  %s severity=%d age=%d%s\n", h.ID, h.Type, h.Severity, h.Age, picked)
	}

	domains := make([]string, 0, len(r.Cooldowns))
	for d := range r.Cooldowns {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	fmt.Fprintf(w, "\nCooldowns: %d\n", len(domains))
	for _, d := range domains {
		fmt.Fprintf(w, "  %s  %d remaining\n", d, r.Cooldowns[d])
	}

	if r.Skipped > 0 {
		f.Warn("%d malformed rows skipped", r.Skipped)
	}
}
