// Package proxy implements AION's reverse proxy: the single public entry
// point that routes requests to backend agent processes by path prefix and
// aggregates their health.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aionlabs/aion/pkg/httpclient"
	"github.com/aionlabs/aion/pkg/observability"
)

// Config configures one proxy server instance.
type Config struct {
	// Port is the public listen port. Ignored when an inherited listener is
	// passed to Start.
	Port int

	// Agents maps agent id to its backend port. The routing table is built
	// once from this mapping and never changes.
	Agents map[string]int

	// ForwardTimeout bounds one forwarded request.
	ForwardTimeout time.Duration

	// HealthTimeout bounds one backend health probe.
	HealthTimeout time.Duration

	// Observability enables metrics and tracing on the proxy.
	Observability observability.Config
}

// Server is the reverse proxy HTTP server.
type Server struct {
	config    Config
	agentURLs map[string]string
	forward   *httpclient.Client
	health    *httpclient.Client
	obs       *observability.Manager
	router    chi.Router
	logger    *slog.Logger
}

// NewServer builds a proxy server with an immutable routing table.
//
// Backends are always same-host plain HTTP: the table maps each agent id to
// http://0.0.0.0:{port}, mirroring the wildcard address agents bind to.
func NewServer(cfg Config) *Server {
	if cfg.ForwardTimeout == 0 {
		cfg.ForwardTimeout = 30 * time.Second
	}
	if cfg.HealthTimeout == 0 {
		cfg.HealthTimeout = 5 * time.Second
	}

	agentURLs := make(map[string]string, len(cfg.Agents))
	for id, port := range cfg.Agents {
		agentURLs[id] = fmt.Sprintf("http://0.0.0.0:%d", port)
	}

	s := &Server{
		config:    cfg,
		agentURLs: agentURLs,
		forward: httpclient.New(
			httpclient.WithTimeout(cfg.ForwardTimeout),
			httpclient.WithRetryStrategy(httpclient.PassthroughStrategy),
		),
		health: httpclient.New(
			httpclient.WithTimeout(cfg.HealthTimeout),
			httpclient.WithRetryStrategy(httpclient.PassthroughStrategy),
		),
		obs:    observability.NewManager(cfg.Observability),
		logger: slog.Default().With("component", "proxy"),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.tracingMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/health/agents", s.handleAgentsHealth)
	if s.config.Observability.Metrics.Enabled {
		r.Get("/metrics", s.handleMetrics)
	}
	r.HandleFunc("/{agent}", s.handleForward)
	r.HandleFunc("/{agent}/*", s.handleForward)
	return r
}

// AgentIDs returns the routing table's agent ids in sorted order.
func (s *Server) AgentIDs() []string {
	ids := make([]string, 0, len(s.agentURLs))
	for id := range s.agentURLs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled. When ln is non-nil the server binds
// to it (the descriptor inherited from the supervisor); otherwise it opens
// its own socket on the configured port. The client pools are closed on
// every exit path.
func (s *Server) Start(ctx context.Context, ln net.Listener) error {
	defer s.forward.CloseIdleConnections()
	defer s.health.CloseIdleConnections()

	if err := s.obs.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.obs.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Observability shutdown failed", "error", err)
		}
	}()

	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
		if err != nil {
			return fmt.Errorf("failed to bind proxy port %d: %w", s.config.Port, err)
		}
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("Reverse proxy listening", "addr", ln.Addr().String(), "agents", len(s.agentURLs))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("proxy shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("proxy serve failed: %w", err)
	}
}
