// Package admin serves a small read-only HTTP API for checking on a
// running relay.
package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/soyeahso/shaperelay/internal/config"
	"github.com/soyeahso/shaperelay/internal/domain"
	"github.com/soyeahso/shaperelay/internal/logging"
	"github.com/soyeahso/shaperelay/internal/routing"
)

// PlatformSource reports the status of every registered platform.
type PlatformSource interface {
	Status() []domain.ChannelStatus
}

// ActivationSource lists the active channel ids.
type ActivationSource interface {
	List() []string
}

// StatsSource reports router counters.
type StatsSource interface {
	Stats() routing.Stats
}

// Server is the admin HTTP server.
type Server struct {
	cfg   config.AdminConfig
	shape string
	log   *logging.Logger

	platforms PlatformSource
	active    ActivationSource
	stats     StatsSource

	mu         sync.RWMutex
	startedAt  time.Time
	httpServer *http.Server
	addr       string
}

// Option configures the admin server.
type Option func(*Server)

// WithPlatforms sets the source of platform status.
func WithPlatforms(p PlatformSource) Option {
	return func(s *Server) { s.platforms = p }
}

// WithActivation sets the source of active channel ids.
func WithActivation(a ActivationSource) Option {
	return func(s *Server) { s.active = a }
}

// WithStats sets the source of router counters.
func WithStats(st StatsSource) Option {
	return func(s *Server) { s.stats = st }
}

// New creates an admin server for the given shape.
func New(cfg config.AdminConfig, shape string, log *logging.Logger, opts ...Option) *Server {
	s := &Server{
		cfg:   cfg,
		shape: shape,
		log:   log.Sub("admin"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func listenAddr(cfg config.AdminConfig) string {
	host := cfg.Bind
	if host == "" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, fmt.Sprint(cfg.Port))
}

// Handler returns the routed handler wrapped in middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	return withMiddleware(mux, s.log)
}

// Start listens and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := listenAddr(s.cfg)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	s.mu.Lock()
	s.httpServer = srv
	s.addr = ln.Addr().String()
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("admin server ready")

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down admin server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("admin shutdown")
		}
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

func (s *Server) uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}
