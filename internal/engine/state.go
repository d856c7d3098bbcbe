package engine

import (
	"log/slog"

	"github.com/roach88/citycycle/internal/arc"
	"github.com/roach88/citycycle/internal/cooldown"
	"github.com/roach88/citycycle/internal/hook"
	"github.com/roach88/citycycle/internal/intent"
	"github.com/roach88/citycycle/internal/ledger"
)

// CooldownPolicy holds the static cooldown settings.
type CooldownPolicy struct {
	// PriorityDomains cool down one cycle faster.
	PriorityDomains []string

	// LongDomains cool down one cycle slower unless boosted.
	LongDomains []string

	// Rules derive boosted and suppressed domains from the calendar.
	Rules []cooldown.Rule
}

// State is everything a generator sees during one cycle.
//
// Generators read the replayed ledgers through Arcs, Hooks and Cooldowns
// and change them only through the lifecycle methods, which queue write
// intents on Exec. State is rebuilt from the store every cycle.
type State struct {
	Cycle    int
	RunID    string
	Mode     intent.Mode
	Calendar cooldown.Calendar

	// Boosted and Suppressed are this cycle's calendar modifiers, sorted.
	Boosted    []string
	Suppressed []string

	Exec  *intent.ExecutionContext
	Arcs  *arc.Lifecycle
	Hooks *hook.Lifecycle

	// Cooldowns is the ledger after this cycle's decay. It is persisted
	// after all generators have run.
	Cooldowns cooldown.Ledger

	// Expired lists the hooks that expired at the start of this cycle.
	Expired []hook.Hook

	Logger *slog.Logger

	policy CooldownPolicy
	logIdx ledger.Index
}

// ArcTick returns the arc lifecycle input for this cycle.
func (s *State) ArcTick(pressure float64) arc.Tick {
	return arc.Tick{Cycle: s.Cycle, Pressure: pressure}
}

// HookTick returns the hook lifecycle input for this cycle.
func (s *State) HookTick() hook.Tick {
	return hook.Tick{Cycle: s.Cycle}
}

// ApplyCooldown starts or extends domain's cooldown for an event of the
// given severity, applying the policy and this cycle's calendar modifiers.
// It returns the computed duration.
func (s *State) ApplyCooldown(domain string, severity cooldown.Severity) int {
	p := cooldown.Params{
		Severity:     severity,
		Priority:     cooldown.Contains(s.policy.PriorityDomains, domain),
		LongCooldown: cooldown.Contains(s.policy.LongDomains, domain),
		Boosted:      cooldown.Contains(s.Boosted, domain),
		Suppressed:   cooldown.Contains(s.Suppressed, domain),
	}
	d := cooldown.Apply(s.Cooldowns, domain, p)
	s.Logger.Debug("cooldown applied", "domain", domain, "severity", string(severity), "duration", d, "remaining", s.Cooldowns[domain])
	return d
}

// IsSuppressed reports whether domain is still cooling down.
func (s *State) IsSuppressed(domain string) bool {
	return cooldown.IsSuppressed(s.Cooldowns, domain)
}
