package arc

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/citycycle/internal/intent"
	"github.com/roach88/citycycle/internal/ledger"
)

var (
	// ErrLiveArcExists is returned by Create when the ID already has a live arc.
	ErrLiveArcExists = errors.New("arc already live")

	// ErrArcResolved is returned when an operation targets a resolved ID.
	// Resolved IDs are never revived; mint a new ID for a follow-on thread.
	ErrArcResolved = errors.New("arc already resolved")

	// ErrAlreadyTouched is returned when an arc was already written this cycle.
	ErrAlreadyTouched = errors.New("arc already written this cycle")

	// ErrArcNotFound is returned when an operation targets an ID that is
	// neither live nor resolved.
	ErrArcNotFound = errors.New("arc not found")
)

// State is the arc ledger as replayed at the start of a cycle.
type State struct {
	// Live holds the latest row of every unresolved arc.
	Live map[string]Arc

	// Resolved holds every ID whose latest row is resolved.
	Resolved map[string]bool

	// NextSeq is the Seq value for the next ledger row.
	NextSeq int
}

// NewState returns an empty state for a fresh ledger.
func NewState() State {
	return State{
		Live:     make(map[string]Arc),
		Resolved: make(map[string]bool),
		NextSeq:  1,
	}
}

// Tick carries the per-cycle inputs to a lifecycle call.
type Tick struct {
	Cycle int

	// Pressure is the signed tension change requested by event pressure.
	// Advance clamps it to the arc type's MaxDelta.
	Pressure float64
}

// Spec describes a new arc.
type Spec struct {
	// ID may be empty, in which case one is minted from Type.
	ID               string
	Type             string
	Neighborhood     string
	DomainTag        string
	Summary          string
	InvolvedEntities []string
	Tension          float64
	CalendarTrigger  string
}

// Lifecycle creates, advances and resolves arcs for one cycle, queueing
// exactly one full ledger row per call. An arc can be written at most once
// per cycle.
type Lifecycle struct {
	ec         *intent.ExecutionContext
	idx        ledger.Index
	collection string
	thresholds ThresholdSet
	newID      func() string
	logger     *slog.Logger

	live     map[string]Arc
	resolved map[string]bool
	minted   map[string]bool
	touched  map[string]int
	nextSeq  int
}

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithThresholds sets the phase thresholds.
func WithThresholds(t ThresholdSet) Option {
	return func(l *Lifecycle) { l.thresholds = t }
}

// WithCollection overrides the ledger collection name.
func WithCollection(name string) Option {
	return func(l *Lifecycle) { l.collection = name }
}

// WithIDSource sets the random source behind MintID. Defaults to UUIDs.
func WithIDSource(newID func() string) Option {
	return func(l *Lifecycle) { l.newID = newID }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Lifecycle) { l.logger = logger }
}

// NewLifecycle creates a lifecycle over the replayed state. Ledger rows are
// rendered through idx, which must cover the arc ledger schema.
func NewLifecycle(ec *intent.ExecutionContext, idx ledger.Index, state State, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		ec:         ec,
		idx:        idx,
		collection: ledger.ArcLedgerCollection,
		thresholds: DefaultThresholdSet(),
		newID:      uuid.NewString,
		logger:     slog.Default(),
		live:       make(map[string]Arc, len(state.Live)),
		resolved:   make(map[string]bool, len(state.Resolved)),
		minted:     make(map[string]bool),
		touched:    make(map[string]int),
		nextSeq:    max(state.NextSeq, 1),
	}
	for id, a := range state.Live {
		l.live[id] = a.Clone()
	}
	for id := range state.Resolved {
		l.resolved[id] = true
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Create starts a new arc in the early phase.
func (l *Lifecycle) Create(tick Tick, spec Spec) (Arc, error) {
	id := strings.TrimSpace(spec.ID)
	if id == "" {
		prefix := spec.Type
		if prefix == "" {
			prefix = "arc"
		}
		id = l.MintID(prefix)
	}

	switch {
	case l.resolved[id]:
		return Arc{}, fmt.Errorf("create %s: %w", id, ErrArcResolved)
	case l.isLive(id):
		return Arc{}, fmt.Errorf("create %s: %w", id, ErrLiveArcExists)
	case l.wasTouched(id, tick.Cycle):
		return Arc{}, fmt.Errorf("create %s: %w", id, ErrAlreadyTouched)
	}

	a := Arc{
		ID:               id,
		Type:             spec.Type,
		Phase:            PhaseEarly,
		Tension:          clampTension(spec.Tension),
		Neighborhood:     spec.Neighborhood,
		DomainTag:        spec.DomainTag,
		Summary:          spec.Summary,
		InvolvedEntities: append([]string(nil), spec.InvolvedEntities...),
		CycleCreated:     tick.Cycle,
		Cycle:            tick.Cycle,
		PhaseSince:       tick.Cycle,
	}
	if spec.CalendarTrigger != "" {
		trigger := spec.CalendarTrigger
		a.CalendarTrigger = &trigger
	}

	if err := l.record(a, tick, "create arc"); err != nil {
		return Arc{}, err
	}
	l.logger.Info("arc created", "arc_id", a.ID, "type", a.Type, "cycle", tick.Cycle)
	return a.Clone(), nil
}

// Advance applies the tick's bounded tension change, then moves the arc at
// most one phase forward:
//
//	early   -> rising   when tension >= RisingAt
//	rising  -> peak     when tension >= PeakAt
//	peak    -> decline  when tension < DeclineBelow or PeakHold cycles at peak
//	decline -> resolved when tension <= ResolveAt
//
// Only a.ID is read from the argument; the transition starts from the
// lifecycle's own state of that arc.
func (l *Lifecycle) Advance(a Arc, tick Tick) (Arc, error) {
	a, err := l.current("advance", a.ID, tick)
	if err != nil {
		return Arc{}, err
	}
	if a.Phase.Rank() < 0 {
		return Arc{}, fmt.Errorf("advance %s: %w: phase %q", a.ID, ErrMalformedRow, a.Phase)
	}

	th := l.thresholds.For(a.Type)
	next := a.Clone()
	delta := min(max(tick.Pressure, -th.MaxDelta), th.MaxDelta)
	next.Tension = clampTension(a.Tension + delta)

	switch a.Phase {
	case PhaseEarly:
		if next.Tension >= th.RisingAt {
			next.Phase = PhaseRising
		}
	case PhaseRising:
		if next.Tension >= th.PeakAt {
			next.Phase = PhasePeak
		}
	case PhasePeak:
		held := th.PeakHold > 0 && tick.Cycle-a.PhaseSince >= th.PeakHold
		if next.Tension < th.DeclineBelow || held {
			next.Phase = PhaseDecline
		}
	case PhaseDecline:
		if next.Tension <= th.ResolveAt {
			next.Phase = PhaseResolved
			cycle := tick.Cycle
			next.CycleResolved = &cycle
		}
	}
	if next.Phase != a.Phase {
		next.PhaseSince = tick.Cycle
	}
	next.Cycle = tick.Cycle

	if err := l.record(next, tick, "advance arc"); err != nil {
		return Arc{}, err
	}
	if next.Phase != a.Phase {
		l.logger.Info("arc phase changed",
			"arc_id", next.ID,
			"from", a.Phase,
			"to", next.Phase,
			"tension", next.Tension,
			"cycle", tick.Cycle,
		)
	} else {
		l.logger.Debug("arc advanced", "arc_id", next.ID, "tension", next.Tension, "cycle", tick.Cycle)
	}
	return next.Clone(), nil
}

// Resolve ends the arc permanently. Like Advance, it reads only a.ID.
func (l *Lifecycle) Resolve(a Arc, tick Tick) (Arc, error) {
	a, err := l.current("resolve", a.ID, tick)
	if err != nil {
		return Arc{}, err
	}

	next := a.Clone()
	cycle := tick.Cycle
	next.Phase = PhaseResolved
	next.CycleResolved = &cycle
	next.PhaseSince = cycle
	next.Cycle = cycle

	if err := l.record(next, tick, "resolve arc"); err != nil {
		return Arc{}, err
	}
	l.logger.Info("arc resolved", "arc_id", next.ID, "cycle", cycle)
	return next.Clone(), nil
}

// MintID returns an ID not used by any live or resolved arc.
func (l *Lifecycle) MintID(prefix string) string {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	for {
		raw := strings.ReplaceAll(l.newID(), "-", "")
		if len(raw) > 8 {
			raw = raw[:8]
		}
		id := fmt.Sprintf("%s-%s", prefix, strings.ToUpper(raw))
		if !l.isLive(id) && !l.resolved[id] && !l.minted[id] {
			l.minted[id] = true
			return id
		}
	}
}

// Get returns the current state of a live arc.
func (l *Lifecycle) Get(id string) (Arc, bool) {
	a, ok := l.live[id]
	if !ok {
		return Arc{}, false
	}
	return a.Clone(), true
}

// Live returns the live arcs sorted by ID.
func (l *Lifecycle) Live() []Arc {
	out := make([]Arc, 0, len(l.live))
	for _, a := range l.live {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// IsResolved reports whether id has been resolved.
func (l *Lifecycle) IsResolved(id string) bool {
	return l.resolved[id]
}

// current returns the live state of id, checking that op may write it in
// tick's cycle.
func (l *Lifecycle) current(op, id string, tick Tick) (Arc, error) {
	if l.resolved[id] {
		return Arc{}, fmt.Errorf("%s %s: %w", op, id, ErrArcResolved)
	}
	cur, ok := l.live[id]
	if !ok {
		return Arc{}, fmt.Errorf("%s %s: %w", op, id, ErrArcNotFound)
	}
	if l.wasTouched(id, tick.Cycle) {
		return Arc{}, fmt.Errorf("%s %s: %w", op, id, ErrAlreadyTouched)
	}
	return cur.Clone(), nil
}

func (l *Lifecycle) isLive(id string) bool {
	_, ok := l.live[id]
	return ok
}

func (l *Lifecycle) wasTouched(id string, cycle int) bool {
	c, ok := l.touched[id]
	return ok && c == cycle
}

// record queues the arc's full ledger row and updates the in-memory state.
func (l *Lifecycle) record(a Arc, tick Tick, reason string) error {
	row := l.idx.Row(a.Values(tick.Cycle, l.nextSeq))
	if _, err := l.ec.QueueAppend(l.collection, row, reason, "arcs"); err != nil {
		return fmt.Errorf("%s %s: %w", reason, a.ID, err)
	}
	l.nextSeq++
	l.touched[a.ID] = tick.Cycle

	if a.Live() {
		l.live[a.ID] = a.Clone()
	} else {
		delete(l.live, a.ID)
		l.resolved[a.ID] = true
	}
	return nil
}
