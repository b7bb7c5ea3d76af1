// Package agentserver is the agent child process: an A2A protocol server
// bound to the listening socket the supervisor hands it.
package agentserver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aionlabs/aion/pkg/config"
)

// Runner produces an agent's reply to one user message. Implementations are
// registered by name and selected per agent via configuration.
type Runner interface {
	Run(ctx context.Context, input string) (string, error)
}

// Factory builds a Runner for one agent.
type Factory func(agentID string, cfg *config.AgentConfig) (Runner, error)

var registry = map[string]Factory{}

// Register makes a runner available under name. Later registrations under
// the same name win, so applications can replace the built-ins.
func Register(name string, factory Factory) {
	registry[name] = factory
}

// NewRunner builds the named runner for an agent.
func NewRunner(name, agentID string, cfg *config.AgentConfig) (Runner, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown runner %q (registered: %s)", name, strings.Join(RunnerNames(), ", "))
	}
	return factory(agentID, cfg)
}

// RunnerNames lists registered runner names in sorted order.
func RunnerNames() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	Register("echo", func(agentID string, cfg *config.AgentConfig) (Runner, error) {
		name := cfg.Name
		if name == "" {
			name = agentID
		}
		return &echoRunner{name: name}, nil
	})
}

// echoRunner replies with the input it was given. It exists so a configured
// system is exercisable end to end without any model behind it.
type echoRunner struct {
	name string
}

func (r *echoRunner) Run(_ context.Context, input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return fmt.Sprintf("Hello from %s.", r.name), nil
	}
	return fmt.Sprintf("%s echoes: %s", r.name, input), nil
}
