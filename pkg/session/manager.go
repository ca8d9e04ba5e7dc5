package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/forge/internal/logging"
	"github.com/aretw0/forge/pkg/domain"
	"github.com/aretw0/forge/pkg/ports"
	"github.com/robfig/cron/v3"
)

const (
	// DefaultTTL is how long a session stays reachable after creation.
	DefaultTTL = 24 * time.Hour

	// DefaultReapInterval is how often expired sessions are pruned.
	DefaultReapInterval = 30 * time.Minute

	// keyCounterWrap bounds the per-process key counter.
	keyCounterWrap = 1 << 20
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Hooks observe session activity.
type Hooks struct {
	OnCreate func(ownerID string)
	OnReap   func(removed int)
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager struct {
	store ports.SessionStore

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	locker ports.DistributedLocker // Optional distributed locker
	logger *slog.Logger

	ttl          time.Duration
	reapInterval time.Duration
	now          func() time.Time
	counter      atomic.Uint64
	hooks        Hooks

	cronMu sync.Mutex
	cron   *cron.Cron
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithTTL sets the session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.ttl = ttl
	}
}

// WithReapInterval sets how often the background reaper runs.
func WithReapInterval(d time.Duration) Option {
	return func(m *Manager) {
		m.reapInterval = d
	}
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithHooks registers observability hooks.
func WithHooks(h Hooks) Option {
	return func(m *Manager) {
		m.hooks = h
	}
}

// NewManager creates a new Session Manager with the given persistence store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:        store,
		locks:        make(map[string]*lockEntry),
		logger:       logging.NewNop(), // Default to no-op
		ttl:          DefaultTTL,
		reapInterval: DefaultReapInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "session")
	return m
}

// newKey builds "<owner>-<millis>-<counter>" in base36.
// The owner prefix namespaces keys; the wrapping counter separates keys minted in the same millisecond.
func (m *Manager) newKey(ownerID string) string {
	seq := m.counter.Add(1) % keyCounterWrap
	return ownerID + "-" +
		strconv.FormatInt(m.now().UnixMilli(), 36) + "-" +
		strconv.FormatUint(seq, 36)
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(key) after unlocking.
func (m *Manager) acquire(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		entry = &lockEntry{}
		m.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[key]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, key)
	}
}

// Create stores a new session for the owner and returns its key.
func (m *Manager) Create(ctx context.Context, ownerID string, payload domain.Payload) (string, error) {
	key := m.newKey(ownerID)
	s := domain.Session{
		Key:       key,
		OwnerID:   ownerID,
		Payload:   payload.Clone(),
		CreatedAt: m.now(),
	}
	if err := m.store.Save(ctx, s); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	if m.hooks.OnCreate != nil {
		m.hooks.OnCreate(ownerID)
	}
	m.logger.Debug("session created", "key", key, "owner", ownerID)
	return key, nil
}

// Lookup returns the whole live session, including its owner.
// Unknown and expired keys both yield domain.ErrSessionNotFound.
func (m *Manager) Lookup(ctx context.Context, key string) (domain.Session, error) {
	s, err := m.store.Load(ctx, key)
	if err != nil {
		return domain.Session{}, err
	}
	if s.Expired(m.now(), m.ttl) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return s, nil
}

// Get returns the payload of a live session.
func (m *Manager) Get(ctx context.Context, key string) (domain.Payload, error) {
	s, err := m.Lookup(ctx, key)
	if err != nil {
		return domain.Payload{}, err
	}
	return s.Payload, nil
}

// Put overwrites the payload of a live session.
func (m *Manager) Put(ctx context.Context, key string, payload domain.Payload) error {
	return m.WithLock(ctx, key, func(ctx context.Context) error {
		if _, err := m.Lookup(ctx, key); err != nil {
			return err
		}
		return m.store.Replace(ctx, key, payload)
	})
}

// Update performs a locked read-modify-write of a live session's payload.
// If fn returns an error nothing is written.
func (m *Manager) Update(ctx context.Context, key string, fn func(*domain.Payload) error) (domain.Payload, error) {
	var out domain.Payload
	err := m.WithLock(ctx, key, func(ctx context.Context) error {
		s, err := m.Lookup(ctx, key)
		if err != nil {
			return err
		}
		p := s.Payload
		if err := fn(&p); err != nil {
			return err
		}
		if err := m.store.Replace(ctx, key, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	return out, err
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, key string) error {
	return m.WithLock(ctx, key, func(ctx context.Context) error {
		return m.store.Delete(ctx, key)
	})
}

// Reap deletes every session older than the TTL.
func (m *Manager) Reap(ctx context.Context) (int, error) {
	if m.ttl <= 0 {
		return 0, nil
	}
	n, err := m.store.Reap(ctx, m.now().Add(-m.ttl))
	if err != nil {
		return 0, fmt.Errorf("failed to reap sessions: %w", err)
	}
	if n > 0 {
		m.logger.Info("reaped expired sessions", "count", n)
	}
	if m.hooks.OnReap != nil {
		m.hooks.OnReap(n)
	}
	return n, nil
}

// Start schedules the periodic reaper. Calling Start twice is a no-op.
func (m *Manager) Start() error {
	m.cronMu.Lock()
	defer m.cronMu.Unlock()

	if m.cron != nil {
		return nil
	}
	if m.reapInterval <= 0 {
		return errors.New("reap interval must be positive")
	}

	c := cron.New()
	_, err := c.AddFunc("@every "+m.reapInterval.String(), func() {
		if _, err := m.Reap(context.Background()); err != nil {
			m.logger.Warn("session reaper failed", "err", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reaper: %w", err)
	}
	c.Start()
	m.cron = c
	m.logger.Debug("session reaper started", "interval", m.reapInterval, "ttl", m.ttl)
	return nil
}

// Stop halts the reaper and waits for a running pass to finish.
func (m *Manager) Stop() {
	m.cronMu.Lock()
	c := m.cron
	m.cron = nil
	m.cronMu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// TTL returns the configured session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// WithLock executes a function while holding the lock for the key.
func (m *Manager) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := m.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(key)
	}()

	// Distributed Locking
	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, key, 30*time.Second)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"key", key,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
