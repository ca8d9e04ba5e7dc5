package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/forge/internal/logging"
	"github.com/aretw0/forge/pkg/domain"
	"github.com/aretw0/forge/pkg/ports"
)

// DeleteResult classifies a single fragment deletion.
type DeleteResult string

const (
	DeleteOK     DeleteResult = "ok"
	DeleteGone   DeleteResult = "gone"
	DeleteFailed DeleteResult = "failed"
)

// Hooks observe tracker activity.
type Hooks struct {
	OnDelete func(level domain.Level, result DeleteResult)
}

// hierarchy is one owner's on-screen state. Its mutex guards every field.
type hierarchy struct {
	mu      sync.Mutex
	levels  [domain.LevelCount][]domain.FragmentRef
	surface string
}

// Tracker maintains the per-owner UI hierarchy.
type Tracker struct {
	mu     sync.RWMutex
	owners map[string]*hierarchy

	deleter ports.FragmentDeleter
	logger  *slog.Logger
	hooks   Hooks
}

// Option configures the Tracker.
type Option func(*Tracker)

// WithLogger configures a logger for the Tracker.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = logger
	}
}

// WithHooks registers observability hooks.
func WithHooks(h Hooks) Option {
	return func(t *Tracker) {
		t.hooks = h
	}
}

// NewTracker creates a tracker that deletes fragments through deleter.
func NewTracker(deleter ports.FragmentDeleter, opts ...Option) *Tracker {
	t := &Tracker{
		owners:  make(map[string]*hierarchy),
		deleter: deleter,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With("component", "lifecycle")
	return t
}

func (t *Tracker) lookup(owner string) *hierarchy {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.owners[owner]
}

// entry returns the owner's hierarchy, creating it lazily.
func (t *Tracker) entry(owner string) *hierarchy {
	if h := t.lookup(owner); h != nil {
		return h
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.owners[owner]
	if !ok {
		h = &hierarchy{}
		t.owners[owner] = h
	}
	return h
}

// Track records that ref currently represents level for owner. It never clears.
func (t *Tracker) Track(owner string, level domain.Level, ref domain.FragmentRef) error {
	if !level.Valid() {
		t.logger.Error("contract violation: track on unknown level", "owner", owner, "level", int(level))
		return fmt.Errorf("%w: %d", domain.ErrInvalidLevel, int(level))
	}

	h := t.entry(owner)
	h.mu.Lock()
	defer h.mu.Unlock()

	h.levels[level] = append(h.levels[level], ref)
	if ref.SurfaceID != "" {
		h.surface = ref.SurfaceID
	}
	return nil
}

// detach removes and returns every fragment at levels >= from.
func (t *Tracker) detach(owner string, from domain.Level) map[domain.Level][]domain.FragmentRef {
	h := t.lookup(owner)
	if h == nil {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[domain.Level][]domain.FragmentRef)
	for lvl := from; lvl <= domain.LevelOutput; lvl++ {
		if len(h.levels[lvl]) > 0 {
			out[lvl] = h.levels[lvl]
			h.levels[lvl] = nil
		}
	}
	return out
}

// ClearFromLevel deletes every fragment tracked at levels >= level.
//
// Fragments are detached from the hierarchy before deletion, so concurrent or
// repeated clears never delete the same fragment twice. Every deletion is
// attempted; failures are logged one by one and joined into the result.
// A fragment the delivery layer reports as already gone counts as deleted.
func (t *Tracker) ClearFromLevel(ctx context.Context, owner string, level domain.Level) error {
	if level <= domain.LevelRoot || level > domain.LevelOutput {
		t.logger.Error("contract violation: clear on invalid level", "owner", owner, "level", int(level))
		return fmt.Errorf("%w: cannot clear from %d", domain.ErrInvalidLevel, int(level))
	}
	return t.remove(ctx, owner, level, t.detach(owner, level))
}

// remove deletes detached fragments level by level.
func (t *Tracker) remove(ctx context.Context, owner string, from domain.Level, detached map[domain.Level][]domain.FragmentRef) error {
	var errs []error
	for lvl := from; lvl <= domain.LevelOutput; lvl++ {
		for _, ref := range detached[lvl] {
			result := DeleteOK
			err := t.deleter.DeleteFragment(ctx, ref)
			switch {
			case err == nil:
			case errors.Is(err, domain.ErrFragmentGone):
				result = DeleteGone
			default:
				result = DeleteFailed
				t.logger.Warn("failed to delete fragment",
					"owner", owner,
					"level", lvl.String(),
					"fragment", ref.ID,
					"surface", ref.SurfaceID,
					"err", err,
				)
				errs = append(errs, fmt.Errorf("delete fragment %s: %w", ref.ID, err))
			}
			if t.hooks.OnDelete != nil {
				t.hooks.OnDelete(lvl, result)
			}
		}
	}
	return errors.Join(errs...)
}

// ClearAll deletes every fragment above the root level.
func (t *Tracker) ClearAll(ctx context.Context, owner string) error {
	return t.ClearFromLevel(ctx, owner, domain.LevelHeader)
}

// swap detaches every fragment at levels >= level and tracks refs at level,
// under one lock so no other render observes the level half replaced.
func (t *Tracker) swap(owner string, level domain.Level, refs []domain.FragmentRef) map[domain.Level][]domain.FragmentRef {
	h := t.entry(owner)
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[domain.Level][]domain.FragmentRef)
	for lvl := level; lvl <= domain.LevelOutput; lvl++ {
		if len(h.levels[lvl]) > 0 {
			out[lvl] = h.levels[lvl]
			h.levels[lvl] = nil
		}
	}
	h.levels[level] = append([]domain.FragmentRef(nil), refs...)
	for _, ref := range refs {
		if ref.SurfaceID != "" {
			h.surface = ref.SurfaceID
		}
	}
	return out
}

// RenderFunc sends fragments and returns references to what was delivered.
type RenderFunc func(ctx context.Context) ([]domain.FragmentRef, error)

// RenderLevel replaces whatever is shown at level and below with the output of render.
//
// render runs first. Only when it succeeds are the old fragments at level and
// below detached, the new ones tracked, and the old ones deleted. A failed
// render therefore leaves both the hierarchy and the screen as they were.
// Deletion failures of replaced fragments are logged and do not fail the render.
func (t *Tracker) RenderLevel(ctx context.Context, owner string, level domain.Level, render RenderFunc) ([]domain.FragmentRef, error) {
	if !level.Valid() || level == domain.LevelRoot {
		t.logger.Error("contract violation: render on invalid level", "owner", owner, "level", int(level))
		return nil, fmt.Errorf("%w: cannot render at %d", domain.ErrInvalidLevel, int(level))
	}

	refs, err := render(ctx)
	if err != nil {
		return nil, err
	}
	_ = t.remove(ctx, owner, level, t.swap(owner, level, refs))
	return refs, nil
}

// Fragments returns what is tracked at level for owner.
func (t *Tracker) Fragments(owner string, level domain.Level) []domain.FragmentRef {
	if !level.Valid() {
		return nil
	}
	h := t.lookup(owner)
	if h == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.FragmentRef(nil), h.levels[level]...)
}

// Snapshot returns a copy of an owner's whole hierarchy, keyed by level.
// Empty levels are omitted.
func (t *Tracker) Snapshot(owner string) map[domain.Level][]domain.FragmentRef {
	out := make(map[domain.Level][]domain.FragmentRef)
	h := t.lookup(owner)
	if h == nil {
		return out
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for lvl, refs := range h.levels {
		if len(refs) > 0 {
			out[domain.Level(lvl)] = append([]domain.FragmentRef(nil), refs...)
		}
	}
	return out
}

// Surface returns the delivery channel last used for owner.
func (t *Tracker) Surface(owner string) string {
	h := t.lookup(owner)
	if h == nil {
		return ""
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.surface
}

// Forget drops an owner's hierarchy without deleting anything,
// e.g. after the surface holding the fragments was deleted.
func (t *Tracker) Forget(owner string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.owners, owner)
}

// DropAllTracking forgets every owner without deleting anything.
// Used at process start, when no live handles to old fragments remain.
func (t *Tracker) DropAllTracking() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.owners = make(map[string]*hierarchy)
}

// Owners returns the number of owners with tracked state.
func (t *Tracker) Owners() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.owners)
}
