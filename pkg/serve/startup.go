package serve

import (
	"log/slog"

	"github.com/aionlabs/aion/pkg/config"
	"github.com/aionlabs/aion/pkg/ports"
	"github.com/aionlabs/aion/pkg/process"
)

// AgentStartup reserves ports and spawns one child process per configured
// agent.
type AgentStartup struct {
	config *config.Config
	ports  *ports.ReservationManager
	procs  *process.Manager
	spec   AgentSpecFunc
	logger *slog.Logger
}

// NewAgentStartup creates the agent startup service.
func NewAgentStartup(cfg *config.Config, pm *ports.ReservationManager, procs *process.Manager, spec AgentSpecFunc) *AgentStartup {
	return &AgentStartup{
		config: cfg,
		ports:  pm,
		procs:  procs,
		spec:   spec,
		logger: slog.Default().With("component", "agent_startup"),
	}
}

// Execute starts every configured agent in sorted id order and records the
// outcome in state. One agent's failure never aborts the batch.
//
// For each agent the sequence is: reserve the port in this process, export
// the socket descriptor for inheritance, close this process's handle, then
// spawn. The child is the sole owner of the listening socket from the moment
// it starts; there is no window in which the port could be taken.
func (s *AgentStartup) Execute(state *State) {
	for _, id := range s.config.AgentIDs() {
		agentCfg := s.config.Agents[id]

		var (
			port int
			ok   bool
		)
		if agentCfg.Port != 0 {
			port = agentCfg.Port
			ok = s.ports.Reserve(id, port)
		} else {
			sup := s.config.Supervisor
			port, ok = s.ports.ReserveFromRange(id, sup.AgentPortMin, sup.AgentPortMax)
		}
		if !ok {
			s.logger.Error("Failed to reserve port for agent", "agent", id)
			state.FailedAgents = append(state.FailedAgents, id)
			continue
		}

		socket, err := s.ports.SocketFile(id)
		if err != nil {
			s.logger.Error("Failed to export socket for agent", "agent", id, "error", err)
			s.ports.Release(id)
			state.FailedAgents = append(state.FailedAgents, id)
			continue
		}
		s.ports.ReleaseForBinding(id)

		started := s.procs.Create(id, s.spec(id, agentCfg, port, socket))
		socket.Close()

		if !started {
			s.logger.Error("Failed to start agent process", "agent", id, "port", port)
			state.FailedAgents = append(state.FailedAgents, id)
			continue
		}

		s.logger.Info("Agent started", "agent", id, "port", port)
		state.SuccessfulAgents = append(state.SuccessfulAgents, id)
		state.AgentPorts[id] = port
	}
}

// ProxyStartup reserves a port for the reverse proxy and spawns it.
type ProxyStartup struct {
	config *config.Config
	ports  *ports.ReservationManager
	procs  *process.Manager
	spec   ProxySpecFunc
	logger *slog.Logger
}

// NewProxyStartup creates the proxy startup service.
func NewProxyStartup(cfg *config.Config, pm *ports.ReservationManager, procs *process.Manager, spec ProxySpecFunc) *ProxyStartup {
	return &ProxyStartup{
		config: cfg,
		ports:  pm,
		procs:  procs,
		spec:   spec,
		logger: slog.Default().With("component", "proxy_startup"),
	}
}

// Execute spawns the proxy process, following the same reserve, export,
// release, spawn sequence as agents. Returns false when no proxy is
// configured or any step fails.
//
// On a restart (state.ProxyPort already set) the previous allocation is
// unlocked first so the same port can be re-reserved.
func (s *ProxyStartup) Execute(state *State) bool {
	if s.config.Proxy == nil {
		s.logger.Debug("No proxy configured, skipping")
		return false
	}

	var (
		port int
		ok   bool
	)
	switch {
	case state.ProxyPort != 0:
		s.ports.ReleaseLock(state.ProxyPort)
		port = state.ProxyPort
		ok = s.ports.Reserve(ProxyKey, port)
	case s.config.Proxy.Port != 0:
		port = s.config.Proxy.Port
		ok = s.ports.Reserve(ProxyKey, port)
	default:
		sup := s.config.Supervisor
		port, ok = s.ports.ReserveFromRange(ProxyKey, sup.ProxyPortMin, sup.ProxyPortMax)
	}
	if !ok {
		s.logger.Error("Failed to reserve proxy port")
		return false
	}

	socket, err := s.ports.SocketFile(ProxyKey)
	if err != nil {
		s.logger.Error("Failed to export proxy socket", "error", err)
		s.ports.Release(ProxyKey)
		return false
	}
	s.ports.ReleaseForBinding(ProxyKey)

	started := s.procs.Create(ProxyKey, s.spec(s.config, port, state.AgentPorts, socket))
	socket.Close()

	if !started {
		s.logger.Error("Failed to start proxy process", "port", port)
		return false
	}

	s.logger.Info("Proxy started", "port", port, "agents", len(state.AgentPorts))
	state.ProxyStarted = true
	state.ProxyPort = port
	return true
}
