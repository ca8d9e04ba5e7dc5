// Package http serves the bot's admin endpoints: health, metrics and UI
// tracker diagnostics.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/forge/internal/logging"
	"github.com/aretw0/forge/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Inspector exposes the UI tracker for diagnostics.
type Inspector interface {
	Snapshot(owner string) map[domain.Level][]domain.FragmentRef
	Owners() int
}

// Check reports whether a dependency is healthy.
type Check func(ctx context.Context) error

// Server is the admin HTTP server.
type Server struct {
	addr      string
	version   string
	gatherer  prometheus.Gatherer
	inspector Inspector
	checks    map[string]Check
	logger    *slog.Logger
	srv       *http.Server
}

// Option configures the Server.
type Option func(*Server)

// WithGatherer serves metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithInspector enables the /debug/ui endpoints.
func WithInspector(i Inspector) Option {
	return func(s *Server) {
		s.inspector = i
	}
}

// WithCheck adds a named health check to /healthz.
func WithCheck(name string, check Check) Option {
	return func(s *Server) {
		s.checks[name] = check
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates an admin server listening on addr.
func NewServer(addr string, opts ...Option) *Server {
	s := &Server{
		addr:     addr,
		version:  "dev",
		gatherer: prometheus.DefaultGatherer,
		checks:   make(map[string]Check),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "admin_http")
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	if s.inspector != nil {
		r.Get("/debug/ui", s.GetOwners)
		r.Get("/debug/ui/{owner}", s.GetOwnerUI)
	}
	return r
}

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("admin server listening", "addr", s.addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// GetHealth handles GET /healthz. Any failing check turns the status into 503.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	resp := map[string]string{"status": "ok"}
	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			s.logger.Warn("health check failed", "check", name, "err", err)
			resp[name] = err.Error()
			resp["status"] = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp[name] = "ok"
	}
	s.writeJSON(w, status, resp)
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "forge",
		"version": s.version,
	})
}

// GetOwners handles GET /debug/ui.
func (s *Server) GetOwners(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]int{"owners": s.inspector.Owners()})
}

// GetOwnerUI handles GET /debug/ui/{owner}: the fragments tracked per level.
func (s *Server) GetOwnerUI(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	snap := s.inspector.Snapshot(owner)
	if len(snap) == 0 {
		http.Error(w, "no tracked UI for owner", http.StatusNotFound)
		return
	}
	out := make(map[string][]domain.FragmentRef, len(snap))
	for level, refs := range snap {
		out[level.String()] = refs
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}
