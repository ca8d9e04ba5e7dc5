package forge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/forge/internal/config"
	"github.com/aretw0/forge/internal/logging"
	"github.com/aretw0/forge/pkg/adapters/memory"
	"github.com/aretw0/forge/pkg/adapters/redis"
	"github.com/aretw0/forge/pkg/adapters/sqlite"
	"github.com/aretw0/forge/pkg/catalog"
	"github.com/aretw0/forge/pkg/delivery"
	"github.com/aretw0/forge/pkg/domain"
	"github.com/aretw0/forge/pkg/flow"
	"github.com/aretw0/forge/pkg/lifecycle"
	"github.com/aretw0/forge/pkg/observability"
	"github.com/aretw0/forge/pkg/ports"
	"github.com/aretw0/forge/pkg/session"
	"github.com/aretw0/forge/pkg/timer"
	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"
)

// Version is the release of the bot. Overridden at build time with -ldflags.
var Version = "0.1.0-dev"

// Bot wires the crafting-request flow to its collaborators.
type Bot struct {
	Engine   *flow.Engine
	Sessions *session.Manager
	Tracker  *lifecycle.Tracker
	Resolver *delivery.Resolver
	Timers   *timer.Scheduler
	Catalog  ports.Catalog
	Records  ports.RecordStore
	Metrics  *observability.Metrics

	cfg      *config.Config
	logger   *slog.Logger
	registry prometheus.Registerer
	store    ports.SessionStore
	redis    *backend.Client
	closers  []func() error
}

// Option configures the Bot.
type Option func(*Bot)

// WithLogger sets the structured logger shared by every component.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		b.logger = logger
	}
}

// WithCatalog uses c instead of loading catalog.path.
func WithCatalog(c ports.Catalog) Option {
	return func(b *Bot) {
		b.Catalog = c
	}
}

// WithRecordStore uses s instead of opening the sqlite database at storage.path.
func WithRecordStore(s ports.RecordStore) Option {
	return func(b *Bot) {
		b.Records = s
	}
}

// WithSessionStore uses s instead of the store named by session.store.
func WithSessionStore(s ports.SessionStore) Option {
	return func(b *Bot) {
		b.store = s
	}
}

// WithRegisterer registers metrics on reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(b *Bot) {
		b.registry = reg
	}
}

// New assembles a bot that delivers its UI through provisioner.
func New(cfg *config.Config, provisioner ports.Provisioner, opts ...Option) (*Bot, error) {
	if provisioner == nil {
		return nil, errors.New("forge: a provisioner is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("forge: invalid config: %w", err)
	}

	b := &Bot{
		cfg:      cfg,
		logger:   logging.NewNop(),
		registry: prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(b)
	}

	if err := b.open(); err != nil {
		b.Close()
		return nil, err
	}

	metrics, err := observability.NewMetrics(b.registry)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("forge: registering metrics: %w", err)
	}
	b.Metrics = metrics

	sessionOpts := []session.Option{
		session.WithLogger(b.logger),
		session.WithTTL(cfg.Session.TTL),
		session.WithReapInterval(cfg.Session.ReapInterval),
		session.WithHooks(metrics.SessionHooks()),
	}
	if b.redis != nil && cfg.Session.Redis.Locking {
		sessionOpts = append(sessionOpts, session.WithLocker(redis.NewLocker(b.redis, cfg.Session.Redis.Prefix+"lock:")))
	}
	b.Sessions = session.NewManager(b.store, sessionOpts...)

	b.Timers = timer.NewScheduler()
	b.Tracker = lifecycle.NewTracker(provisioner,
		lifecycle.WithLogger(b.logger),
		lifecycle.WithHooks(metrics.TrackerHooks()),
	)
	b.Resolver = delivery.NewResolver(provisioner, b.Timers,
		delivery.WithMode(delivery.Mode(cfg.Delivery.Mode)),
		delivery.WithIdle(cfg.Delivery.Idle),
		delivery.WithPrivateRetry(cfg.Delivery.PrivateRetry),
		delivery.WithLogger(b.logger),
		delivery.OnSurfaceDeleted(func(owner string, _ domain.Surface) {
			b.Tracker.Forget(owner)
		}),
	)
	b.Engine = flow.NewEngine(flow.Deps{
		Sessions: b.Sessions,
		Tracker:  b.Tracker,
		Resolver: b.Resolver,
		Sender:   provisioner,
		Records:  b.Records,
		Catalog:  b.Catalog,
		Timers:   b.Timers,
	},
		flow.WithLogger(b.logger),
		flow.WithTimeouts(cfg.Flow.MidFlowTimeout, cfg.Flow.PostCompletionTimeout),
		flow.WithDuplicateWindow(cfg.Flow.DuplicateWindow),
		flow.WithHooks(observability.Compose(metrics.FlowHooks(), observability.AuditHooks(b.logger))),
	)
	return b, nil
}

// open resolves the catalog and the stores not injected by options.
func (b *Bot) open() error {
	if b.Catalog == nil {
		c, err := catalog.Load(b.cfg.Catalog.Path)
		if err != nil {
			return fmt.Errorf("forge: loading catalog: %w", err)
		}
		b.Catalog = c
	}

	if b.Records == nil {
		rs, err := sqlite.Open(b.cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("forge: opening record store: %w", err)
		}
		b.Records = rs
		b.closers = append(b.closers, rs.Close)
	}

	if b.store == nil {
		switch b.cfg.Session.Store {
		case "redis":
			rc := b.cfg.Session.Redis
			b.redis = backend.NewClient(&backend.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB})
			b.store = redis.NewFromClient(b.redis,
				redis.WithPrefix(rc.Prefix+"session:"),
				redis.WithTTL(b.cfg.Session.TTL),
			)
			b.closers = append(b.closers, b.redis.Close)
		default:
			b.store = memory.NewSessionStore()
		}
	}
	return nil
}

// Start forgets UI tracked by a previous process and starts the session reaper.
func (b *Bot) Start(ctx context.Context) error {
	if b.redis != nil {
		if err := b.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("forge: redis unreachable: %w", err)
		}
	}
	b.Tracker.DropAllTracking()
	if err := b.Sessions.Start(); err != nil {
		return err
	}
	b.logger.Info("forge started",
		"version", Version,
		"delivery", b.Resolver.Mode(),
		"sessions", b.cfg.Session.Store,
	)
	return nil
}

// Checks returns the health checks of the bot's external dependencies.
func (b *Bot) Checks() map[string]func(context.Context) error {
	checks := make(map[string]func(context.Context) error)
	if b.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return b.redis.Ping(ctx).Err() }
	}
	return checks
}

// Close stops background work and releases stores opened by New.
func (b *Bot) Close() error {
	if b.Sessions != nil {
		b.Sessions.Stop()
	}
	if b.Timers != nil {
		b.Timers.Stop()
	}
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	b.closers = nil
	return errors.Join(errs...)
}
