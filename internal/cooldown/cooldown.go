// Package cooldown throttles how often each narrative domain may originate
// new material.
//
// A Ledger maps a domain to the number of cycles it remains suppressed.
// Counters only grow through Apply and only shrink through Decay; they are
// never negative.
package cooldown

import (
	"sort"
	"strings"
)

// Ledger maps domain to cycles remaining.
type Ledger map[string]int

// Severity of the event that triggers a cooldown.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity maps free text to a Severity; unknown text is medium.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityLow:
		return SeverityLow
	case SeverityHigh:
		return SeverityHigh
	case SeverityCritical:
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

// Base durations by severity.
const (
	baseDuration   = 2
	severeDuration = 3
	lowDuration    = 1
)

// Params are the inputs to Apply for one domain.
type Params struct {
	Severity Severity

	// Priority domains cool down one cycle faster.
	Priority bool

	// LongCooldown domains cool down one cycle slower, unless boosted.
	LongCooldown bool

	// Boosted domains are favored by this cycle's calendar.
	Boosted bool

	// Suppressed domains are calendar-quiet this cycle.
	Suppressed bool
}

// Clone returns a copy of the ledger.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// Domains returns the ledger's domains in sorted order.
func (l Ledger) Domains() []string {
	out := make([]string, 0, len(l))
	for d := range l {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Decay returns a new ledger with every counter reduced by one, or by two for
// boosted domains, floored at zero. The input is not modified.
func Decay(l Ledger, boosted []string) Ledger {
	fast := make(map[string]bool, len(boosted))
	for _, d := range boosted {
		fast[d] = true
	}
	out := make(Ledger, len(l))
	for domain, n := range l {
		step := 1
		if fast[domain] {
			step = 2
		}
		out[domain] = max(n-step, 0)
	}
	return out
}

// Duration computes the cooldown length for an event.
func Duration(p Params) int {
	d := baseDuration
	switch p.Severity {
	case SeverityHigh, SeverityCritical:
		d = severeDuration
	case SeverityLow:
		d = lowDuration
	}
	if p.Priority {
		d--
	}
	if p.LongCooldown && !p.Boosted {
		d++
	}
	if p.Boosted {
		d--
	}
	if p.Suppressed {
		d++
	}
	return max(d, 0)
}

// Apply extends domain's cooldown to at least Duration(p) and returns the
// computed duration. It never shortens an existing cooldown.
func Apply(l Ledger, domain string, p Params) int {
	d := Duration(p)
	l[domain] = max(max(l[domain], 0), d)
	return d
}

// IsSuppressed reports whether domain is still cooling down.
func IsSuppressed(l Ledger, domain string) bool {
	return l[domain] > 0
}
