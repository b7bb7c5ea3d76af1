package agentserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/go-chi/chi/v5"

	"github.com/aionlabs/aion/pkg/config"
)

// Server serves one agent over the A2A protocol.
//
// Routes:
//   - GET  /.well-known/agent-card.json  agent card
//   - POST /                             JSON-RPC
//   - GET  /                             agent card
//   - GET  /health, /health/             liveness
type Server struct {
	agentID string
	config  *config.AgentConfig
	port    int
	card    *a2a.AgentCard
	router  chi.Router
	logger  *slog.Logger
}

// New builds the agent server, resolving the configured runner.
func New(agentID string, cfg *config.AgentConfig, port int) (*Server, error) {
	runnerName := cfg.Runner
	if runnerName == "" {
		runnerName = "echo"
	}
	runner, err := NewRunner(runnerName, agentID, cfg)
	if err != nil {
		return nil, fmt.Errorf("agent %q: %w", agentID, err)
	}

	s := &Server{
		agentID: agentID,
		config:  cfg,
		port:    port,
		card:    buildAgentCard(agentID, cfg, port),
		logger:  slog.Default().With("component", "agent", "agent", agentID),
	}

	requestHandler := a2asrv.NewHandler(NewExecutor(agentID, runner))
	jsonRPCHandler := a2asrv.NewJSONRPCHandler(requestHandler)
	cardHandler := a2asrv.NewStaticAgentCardHandler(s.card)

	r := chi.NewRouter()
	r.Get(a2asrv.WellKnownAgentCardPath, cardHandler.ServeHTTP)
	r.Get("/health", s.handleHealth)
	r.Get("/health/", s.handleHealth)
	r.Post("/", jsonRPCHandler.ServeHTTP)
	r.Get("/", cardHandler.ServeHTTP)
	s.router = r

	return s, nil
}

// Card returns the agent's A2A card.
func (s *Server) Card() *a2a.AgentCard {
	return s.card
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "agent": s.agentID})
}

// Start serves until ctx is cancelled. When ln is non-nil the server binds
// to it; the inherited descriptor from the supervisor arrives this way.
func (s *Server) Start(ctx context.Context, ln net.Listener) error {
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", fmt.Sprintf(":%d", s.port))
		if err != nil {
			return fmt.Errorf("agent %q: failed to bind port %d: %w", s.agentID, s.port, err)
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

	s.logger.Info("Agent server listening", "addr", ln.Addr().String(), "runner", s.config.Runner)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("agent %q: shutdown failed: %w", s.agentID, err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("agent %q: serve failed: %w", s.agentID, err)
	}
}

func buildAgentCard(agentID string, cfg *config.AgentConfig, port int) *a2a.AgentCard {
	displayName := cfg.Name
	if displayName == "" {
		displayName = agentID
	}
	version := cfg.Version
	if version == "" {
		version = "1.0.0"
	}

	return &a2a.AgentCard{
		Name:               displayName,
		Description:        cfg.Description,
		URL:                fmt.Sprintf("http://0.0.0.0:%d", port),
		Version:            version,
		ProtocolVersion:    "1.0",
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
		Skills: []a2a.AgentSkill{{
			ID:          agentID,
			Name:        displayName,
			Description: cfg.Description,
			Tags:        []string{"general", "assistant"},
		}},
		Capabilities: a2a.AgentCapabilities{
			Streaming:              true,
			PushNotifications:      false,
			StateTransitionHistory: false,
		},
		PreferredTransport: a2a.TransportProtocolJSONRPC,
		Provider: &a2a.AgentProvider{
			Org: "AION",
			URL: "https://github.com/aionlabs/aion",
		},
	}
}
