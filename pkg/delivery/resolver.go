// Package delivery resolves where an owner's fragments are sent.
//
// The resolver knows nothing about the UI hierarchy: it only answers "which
// surface" for an owner, preferring a private channel when configured and
// falling back to a per-owner ephemeral group channel.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/forge/internal/logging"
	"github.com/aretw0/forge/pkg/domain"
	"github.com/aretw0/forge/pkg/ports"
	"github.com/aretw0/forge/pkg/timer"
	"golang.org/x/sync/singleflight"
)

// Mode selects the preferred delivery path.
type Mode string

const (
	ModePrivate   Mode = "private"
	ModeEphemeral Mode = "ephemeral"
)

// Valid reports whether the mode is known.
func (m Mode) Valid() bool {
	return m == ModePrivate || m == ModeEphemeral
}

// DefaultIdle is the inactivity window after which an ephemeral surface is deleted.
const DefaultIdle = 10 * time.Minute

// DefaultPrivateRetry is how long an owner who refused private messages is
// served on an ephemeral surface before the private path is tried again.
const DefaultPrivateRetry = time.Hour

const purposeSurface = "surface"

// Resolver picks and caches a delivery surface per owner.
type Resolver struct {
	provisioner ports.Provisioner
	timers      *timer.Scheduler
	mode        Mode
	idle        time.Duration
	logger      *slog.Logger
	onDeleted   func(ownerID string, surface domain.Surface)
	retry       time.Duration
	now         func() time.Time

	// group collapses concurrent first-time resolves of one owner into a single provisioning call.
	group singleflight.Group

	mu      sync.Mutex
	cache   map[string]domain.Surface
	refused map[string]time.Time
}

// Option configures the Resolver.
type Option func(*Resolver)

// WithMode sets the preferred delivery path.
func WithMode(m Mode) Option {
	return func(r *Resolver) {
		r.mode = m
	}
}

// WithIdle sets the mid-flow inactivity window for ephemeral surfaces.
func WithIdle(d time.Duration) Option {
	return func(r *Resolver) {
		r.idle = d
	}
}

// WithLogger configures a logger for the Resolver.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithPrivateRetry sets how long a refused private surface is skipped.
func WithPrivateRetry(d time.Duration) Option {
	return func(r *Resolver) {
		r.retry = d
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// OnSurfaceDeleted registers a callback fired after an ephemeral surface is removed.
func OnSurfaceDeleted(fn func(ownerID string, surface domain.Surface)) Option {
	return func(r *Resolver) {
		r.onDeleted = fn
	}
}

// NewResolver creates a resolver. timers schedules surface deletion.
func NewResolver(provisioner ports.Provisioner, timers *timer.Scheduler, opts ...Option) *Resolver {
	r := &Resolver{
		provisioner: provisioner,
		timers:      timers,
		mode:        ModePrivate,
		idle:        DefaultIdle,
		logger:      logging.NewNop(),
		retry:       DefaultPrivateRetry,
		now:         time.Now,
		cache:       make(map[string]domain.Surface),
		refused:     make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "delivery")
	return r
}

// Resolve returns the surface for owner, provisioning one if needed.
// Each call re-arms the ephemeral inactivity timer instead of stacking another.
func (r *Resolver) Resolve(ctx context.Context, ownerID string, origin domain.EventContext) (domain.Surface, error) {
	if s, ok := r.cached(ownerID); ok {
		r.arm(ownerID, s, r.idle)
		return s, nil
	}

	v, err, _ := r.group.Do(ownerID, func() (any, error) {
		if s, ok := r.cached(ownerID); ok {
			return s, nil
		}
		s, err := r.provision(ctx, ownerID, origin)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.cache[ownerID] = s
		r.mu.Unlock()
		r.logger.Debug("surface resolved", "owner", ownerID, "surface", s.ID, "kind", s.Kind)
		return s, nil
	})
	if err != nil {
		return domain.Surface{}, err
	}

	s := v.(domain.Surface)
	r.arm(ownerID, s, r.idle)
	return s, nil
}

// Refused records that the owner's private surface rejects fragments, e.g. a
// user who disabled direct messages after the channel was opened. The cached
// surface is dropped so the next Resolve falls back to an ephemeral surface.
func (r *Resolver) Refused(ownerID string, s domain.Surface) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.Kind == domain.SurfacePrivate {
		r.refused[ownerID] = r.now()
	}
	if cur, ok := r.cache[ownerID]; ok && cur == s {
		delete(r.cache, ownerID)
	}
	r.logger.Info("surface refused delivery", "owner", ownerID, "surface", s.ID, "kind", s.Kind)
}

// privateRefused reports whether the owner refused private delivery recently.
func (r *Resolver) privateRefused(ownerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	at, ok := r.refused[ownerID]
	if !ok {
		return false
	}
	if r.now().Sub(at) >= r.retry {
		delete(r.refused, ownerID)
		return false
	}
	return true
}

func (r *Resolver) provision(ctx context.Context, ownerID string, origin domain.EventContext) (domain.Surface, error) {
	if r.mode == ModePrivate && !r.privateRefused(ownerID) {
		s, err := r.provisioner.OpenPrivateSurface(ctx, ownerID)
		if err == nil {
			return s, nil
		}
		r.logger.Info("private surface unavailable, falling back to ephemeral", "owner", ownerID, "err", err)
	}

	s, err := r.provisioner.EphemeralSurface(ctx, ownerID, origin)
	if err != nil {
		return domain.Surface{}, fmt.Errorf("%w: %v", domain.ErrChannelUnavailable, err)
	}
	return s, nil
}

func (r *Resolver) cached(ownerID string) (domain.Surface, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.cache[ownerID]
	return s, ok
}

// arm schedules (or re-schedules) deletion of an ephemeral surface.
func (r *Resolver) arm(ownerID string, s domain.Surface, d time.Duration) {
	if s.Kind != domain.SurfaceEphemeral || d <= 0 {
		return
	}
	r.timers.Schedule(timer.Key{Owner: ownerID, Purpose: purposeSurface}, d, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		r.drop(ctx, ownerID, s)
	})
}

// Linger re-arms the owner's ephemeral surface with a different grace period,
// e.g. the longer post-completion window.
func (r *Resolver) Linger(ownerID string, d time.Duration) {
	if s, ok := r.cached(ownerID); ok {
		r.arm(ownerID, s, d)
	}
}

// Release deletes the owner's ephemeral surface now.
func (r *Resolver) Release(ctx context.Context, ownerID string) {
	s, ok := r.cached(ownerID)
	if !ok {
		return
	}
	r.timers.Cancel(timer.Key{Owner: ownerID, Purpose: purposeSurface})
	if s.Kind != domain.SurfaceEphemeral {
		r.Invalidate(ownerID)
		return
	}
	r.drop(ctx, ownerID, s)
}

// Invalidate forgets the cached surface without deleting it.
func (r *Resolver) Invalidate(ownerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cache, ownerID)
}

func (r *Resolver) drop(ctx context.Context, ownerID string, s domain.Surface) {
	r.mu.Lock()
	if cur, ok := r.cache[ownerID]; ok && cur == s {
		delete(r.cache, ownerID)
	}
	r.mu.Unlock()

	if err := r.provisioner.DeleteSurface(ctx, s); err != nil {
		r.logger.Warn("failed to delete ephemeral surface", "owner", ownerID, "surface", s.ID, "err", err)
	} else {
		r.logger.Debug("ephemeral surface deleted", "owner", ownerID, "surface", s.ID)
	}
	if r.onDeleted != nil {
		r.onDeleted(ownerID, s)
	}
}

// Mode returns the preferred delivery path.
func (r *Resolver) Mode() Mode {
	return r.mode
}
