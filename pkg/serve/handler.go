package serve

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aionlabs/aion/pkg/config"
	"github.com/aionlabs/aion/pkg/ports"
	"github.com/aionlabs/aion/pkg/process"
)

// ErrNoAgents is returned when not a single configured agent could be
// started. It is the only startup failure that aborts the run.
var ErrNoAgents = errors.New("no agents could be started")

// Handler is the orchestrator: startup, monitor, shutdown, in that order.
//
// Signal handling lives with the caller: cancel the context passed to Run
// and the monitor loop winds down into the normal shutdown path.
type Handler struct {
	config       *config.Config
	ports        *ports.ReservationManager
	procs        *process.Manager
	agentStartup *AgentStartup
	proxyStartup *ProxyStartup
	monitor      *Monitor
	shutdown     *Shutdown
	onStarted    func(*State)
	logger       *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithOnStarted registers a callback invoked after startup completes and
// before the monitor loop blocks. The welcome banner hangs off this.
func WithOnStarted(fn func(*State)) Option {
	return func(h *Handler) {
		h.onStarted = fn
	}
}

// NewHandler wires the orchestrator. agentSpec and proxySpec build the
// child-process specs; injecting them keeps the orchestration testable with
// arbitrary commands.
func NewHandler(cfg *config.Config, agentSpec AgentSpecFunc, proxySpec ProxySpecFunc, opts ...Option) *Handler {
	pm := ports.NewReservationManager()
	procs := process.NewManager()
	proxyStartup := NewProxyStartup(cfg, pm, procs, proxySpec)

	h := &Handler{
		config:       cfg,
		ports:        pm,
		procs:        procs,
		agentStartup: NewAgentStartup(cfg, pm, procs, agentSpec),
		proxyStartup: proxyStartup,
		monitor:      NewMonitor(procs, proxyStartup, cfg.Supervisor.MonitorInterval),
		shutdown:     NewShutdown(procs, pm, cfg.Supervisor.ShutdownTimeout),
		logger:       slog.Default().With("component", "orchestrator"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes one full supervisor lifecycle and blocks until the system
// winds down: context cancellation or every agent exiting. Shutdown runs on
// every exit path, including the no-agents error.
func (h *Handler) Run(ctx context.Context) (*State, error) {
	state := NewState()

	h.agentStartup.Execute(state)
	if len(state.SuccessfulAgents) == 0 {
		h.logger.Error("No agents started, aborting", "failed", state.FailedAgents)
		h.shutdown.Execute()
		return state, ErrNoAgents
	}
	if len(state.FailedAgents) > 0 {
		h.logger.Warn("Some agents failed to start", "failed", state.FailedAgents)
	}

	h.proxyStartup.Execute(state)

	if h.onStarted != nil {
		h.onStarted(state)
	}

	h.monitor.Run(ctx, state)
	h.shutdown.Execute()
	return state, nil
}
