package arc

import "strings"

// Phase is an arc's position in its linear lifecycle.
type Phase string

const (
	PhaseEarly    Phase = "early"
	PhaseRising   Phase = "rising"
	PhasePeak     Phase = "peak"
	PhaseDecline  Phase = "decline"
	PhaseResolved Phase = "resolved"
)

var phaseOrder = []Phase{PhaseEarly, PhaseRising, PhasePeak, PhaseDecline, PhaseResolved}

// ParsePhase parses a ledger phase cell. Matching ignores case and
// surrounding space. Empty and unknown values return false.
func ParsePhase(s string) (Phase, bool) {
	p := Phase(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range phaseOrder {
		if p == known {
			return p, true
		}
	}
	return "", false
}

// Rank returns the phase's position, 0 for early. Unknown phases rank -1.
func (p Phase) Rank() int {
	for i, known := range phaseOrder {
		if p == known {
			return i
		}
	}
	return -1
}

// Next returns the following phase. Resolved is terminal and returns itself.
func (p Phase) Next() Phase {
	r := p.Rank()
	if r < 0 || p == PhaseResolved {
		return p
	}
	return phaseOrder[r+1]
}

// Terminal reports whether the phase is resolved.
func (p Phase) Terminal() bool {
	return p == PhaseResolved
}
