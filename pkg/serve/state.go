// Package serve orchestrates the AION runtime: it reserves ports, spawns
// agent and proxy child processes, monitors their liveness, and tears the
// system down.
package serve

import (
	"os"

	"github.com/aionlabs/aion/pkg/config"
	"github.com/aionlabs/aion/pkg/process"
)

// ProxyKey is the process and reservation key of the reverse proxy.
const ProxyKey = "proxy"

// State is the outcome of one startup pass. It is produced by the startup
// services and consumed by the monitor loop and the welcome banner.
type State struct {
	SuccessfulAgents []string
	FailedAgents     []string

	// AgentPorts maps each successfully started agent to its bound port.
	AgentPorts map[string]int

	ProxyStarted bool
	ProxyPort    int
}

// NewState returns an empty startup state.
func NewState() *State {
	return &State{AgentPorts: make(map[string]int)}
}

// AgentSpecFunc builds the child-process spec for one agent. The socket is
// the pre-bound listening descriptor the child must serve on; it is placed
// in the spec's inherited files.
type AgentSpecFunc func(agentID string, cfg *config.AgentConfig, port int, socket *os.File) process.Spec

// ProxySpecFunc builds the child-process spec for the reverse proxy.
// agentPorts is the routing table the proxy serves from.
type ProxySpecFunc func(cfg *config.Config, port int, agentPorts map[string]int, socket *os.File) process.Spec
