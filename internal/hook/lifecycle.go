package hook

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/citycycle/internal/intent"
	"github.com/roach88/citycycle/internal/ir"
	"github.com/roach88/citycycle/internal/ledger"
)

var (
	// ErrHookNotFound is returned for an unknown hook ID.
	ErrHookNotFound = errors.New("hook not found")

	// ErrHookExists is returned by Create for an ID already in the table.
	ErrHookExists = errors.New("hook already exists")

	// ErrAlreadyPickedUp is returned by MarkPickedUp for a second pickup.
	ErrAlreadyPickedUp = errors.New("hook already picked up")

	// ErrHookPending is returned for cell updates to a hook created this
	// cycle; its row number is not known until the flush.
	ErrHookPending = errors.New("hook created this cycle")
)

// Tick carries the per-cycle inputs to a lifecycle call.
type Tick struct {
	Cycle int
}

// Spec describes a new hook.
type Spec struct {
	// ID may be empty, in which case one is minted.
	ID       string
	Type     string
	Summary  string
	Priority int
	Severity int

	// ExpiresAfter defaults to the lifecycle's configured value.
	ExpiresAfter int
}

// Lifecycle ages, decays, expires, archives and creates hooks for one
// cycle. Changes to existing hooks are queued as cell writes against the
// row each hook was read from.
type Lifecycle struct {
	ec         *intent.ExecutionContext
	idx        ledger.Index
	collection string

	archive    string
	archiveIdx ledger.Index
	archived   map[string]bool

	expiresAfter int
	newID        func() string
	logger       *slog.Logger

	hooks []*Hook
	byID  map[string]*Hook
}

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithCollection overrides the hooks collection name.
func WithCollection(name string) Option {
	return func(l *Lifecycle) { l.collection = name }
}

// WithArchive enables archival into the named collection, writing rows
// through idx. Without it, expired hooks stay in place marked IsExpired.
func WithArchive(collection string, idx ledger.Index) Option {
	return func(l *Lifecycle) {
		l.archive = collection
		l.archiveIdx = idx
	}
}

// WithArchivedIDs names hooks that already have an archive row. Archive
// never appends a second row for them.
func WithArchivedIDs(ids map[string]bool) Option {
	return func(l *Lifecycle) {
		for id := range ids {
			l.archived[id] = true
		}
	}
}

// WithExpiresAfter sets the default expiry age for new hooks.
func WithExpiresAfter(n int) Option {
	return func(l *Lifecycle) {
		if n > 0 {
			l.expiresAfter = n
		}
	}
}

// WithIDSource sets the random source for minted hook IDs.
func WithIDSource(newID func() string) Option {
	return func(l *Lifecycle) { l.newID = newID }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Lifecycle) { l.logger = logger }
}

// NewLifecycle creates a lifecycle over hooks read this cycle. Cell writes
// are addressed through idx.
func NewLifecycle(ec *intent.ExecutionContext, idx ledger.Index, hooks []Hook, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		ec:           ec,
		idx:          idx,
		collection:   ledger.HooksCollection,
		expiresAfter: DefaultExpiresAfter,
		newID:        uuid.NewString,
		logger:       slog.Default(),
		byID:         make(map[string]*Hook, len(hooks)),
		archived:     make(map[string]bool),
	}
	for _, h := range hooks {
		if _, dup := l.byID[h.ID]; dup {
			continue
		}
		c := h.Clone()
		l.hooks = append(l.hooks, &c)
		l.byID[c.ID] = &c
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Process ages every unarchived hook, applies severity decay, and checks
// expiration, queueing cell writes for each changed column. It returns the
// hooks that expired on this call.
func (l *Lifecycle) Process(tick Tick) ([]Hook, error) {
	var expired []Hook
	for _, h := range l.hooks {
		if h.Archived {
			continue
		}
		before := h.Clone()

		next := DecayPriority(UpdateAge(*h, tick.Cycle))
		if CheckExpiration(&next) {
			expired = append(expired, next.Clone())
			l.logger.Info("hook expired", "hook_id", next.ID, "age", next.Age, "cycle", tick.Cycle)
		}
		*h = next

		if h.Row == 0 {
			continue
		}
		if err := l.writeChanged(before, *h, "process hook"); err != nil {
			return expired, err
		}
	}
	return expired, nil
}

// Archive archives expired hooks. With an archive collection configured,
// each hook gets one archive row and its Archived flag set; a hook already
// archived is skipped, so repeated calls write nothing new. A hook whose
// archive row exists but whose flag was never stored only gets the flag.
// Without an archive collection this is a no-op and IsExpired remains the
// marker. It returns the number of archive rows queued by this call.
func (l *Lifecycle) Archive(tick Tick, expired []Hook) (int, error) {
	if l.archive == "" {
		return 0, nil
	}

	n := 0
	for _, e := range expired {
		h, ok := l.byID[e.ID]
		if !ok || h.Archived || !h.IsExpired {
			continue
		}

		appended := false
		if !l.archived[h.ID] {
			row := l.archiveIdx.Row(h.ArchiveValues(tick.Cycle))
			if _, err := l.ec.QueueAppend(l.archive, row, "archive hook", "hooks"); err != nil {
				return n, fmt.Errorf("archive %s: %w", h.ID, err)
			}
			l.archived[h.ID] = true
			appended = true
		}

		before := h.Clone()
		h.Archived = true
		if h.Row > 0 {
			if err := l.writeChanged(before, *h, "archive hook"); err != nil {
				return n, err
			}
		}
		if appended {
			n++
			l.logger.Debug("hook archived", "hook_id", h.ID, "cycle", tick.Cycle)
		} else {
			l.logger.Debug("hook archive row exists, flag restored", "hook_id", h.ID, "cycle", tick.Cycle)
		}
	}
	return n, nil
}

// MarkPickedUp records that a consumer picked the hook up. It can happen
// once per hook and does not stop aging, decay or expiration.
func (l *Lifecycle) MarkPickedUp(id string, cycle int) (Hook, error) {
	h, ok := l.byID[id]
	if !ok {
		return Hook{}, fmt.Errorf("pick up %s: %w", id, ErrHookNotFound)
	}
	if h.PickupCycle != nil {
		return Hook{}, fmt.Errorf("pick up %s: %w (cycle %d)", id, ErrAlreadyPickedUp, *h.PickupCycle)
	}
	if h.Row == 0 {
		return Hook{}, fmt.Errorf("pick up %s: %w", id, ErrHookPending)
	}

	before := h.Clone()
	h.PickupCycle = &cycle
	if err := l.writeChanged(before, *h, "pick up hook"); err != nil {
		h.PickupCycle = nil
		return Hook{}, err
	}
	return h.Clone(), nil
}

// Create appends a new hook row.
func (l *Lifecycle) Create(tick Tick, spec Spec) (Hook, error) {
	id := strings.TrimSpace(spec.ID)
	if id == "" {
		id = l.mintID()
	}
	if _, ok := l.byID[id]; ok {
		return Hook{}, fmt.Errorf("create hook %s: %w", id, ErrHookExists)
	}

	expires := spec.ExpiresAfter
	if expires <= 0 {
		expires = l.expiresAfter
	}
	h := Hook{
		ID:           id,
		Type:         spec.Type,
		Summary:      spec.Summary,
		Priority:     spec.Priority,
		Severity:     clampSeverity(spec.Severity),
		CreatedCycle: tick.Cycle,
		ExpiresAfter: expires,
	}

	if _, err := l.ec.QueueAppend(l.collection, l.idx.Row(h.Values()), "create hook", "hooks"); err != nil {
		return Hook{}, fmt.Errorf("create hook %s: %w", id, err)
	}
	l.hooks = append(l.hooks, &h)
	l.byID[id] = &h
	l.logger.Debug("hook created", "hook_id", id, "cycle", tick.Cycle)
	return h.Clone(), nil
}

// Get returns a hook by ID.
func (l *Lifecycle) Get(id string) (Hook, bool) {
	h, ok := l.byID[id]
	if !ok {
		return Hook{}, false
	}
	return h.Clone(), true
}

// Hooks returns every hook in read order, new hooks last.
func (l *Lifecycle) Hooks() []Hook {
	out := make([]Hook, len(l.hooks))
	for i, h := range l.hooks {
		out[i] = h.Clone()
	}
	return out
}

// Active returns the hooks neither expired nor archived.
func (l *Lifecycle) Active() []Hook {
	var out []Hook
	for _, h := range l.hooks {
		if h.Active() {
			out = append(out, h.Clone())
		}
	}
	return out
}

// writeChanged queues one cell write per column whose value differs.
func (l *Lifecycle) writeChanged(before, after Hook, reason string) error {
	old, cur := before.Values(), after.Values()
	for _, name := range ledger.Hooks.Columns {
		if ir.Equal(old[name], cur[name]) {
			continue
		}
		col, ok := l.idx.Col(name)
		if !ok {
			continue
		}
		if _, err := l.ec.QueueCell(l.collection, after.Row, col, cur[name], reason, "hooks"); err != nil {
			return fmt.Errorf("%s %s: %w", reason, after.ID, err)
		}
	}
	return nil
}

func (l *Lifecycle) mintID() string {
	for {
		raw := strings.ToUpper(strings.ReplaceAll(l.newID(), "-", ""))
		if len(raw) > 8 {
			raw = raw[:8]
		}
		id := "HOOK-" + raw
		if _, taken := l.byID[id]; !taken {
			return id
		}
	}
}
