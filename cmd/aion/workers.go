package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os/signal"
	"syscall"

	"github.com/aionlabs/aion/pkg/agentserver"
	"github.com/aionlabs/aion/pkg/config"
	"github.com/aionlabs/aion/pkg/config/provider"
	"github.com/aionlabs/aion/pkg/observability"
	"github.com/aionlabs/aion/pkg/ports"
	"github.com/aionlabs/aion/pkg/proxy"
)

// AgentWorkerCmd is the agent child process entry point. The supervisor
// spawns it with the agent's pre-bound listening socket as the first
// inherited descriptor.
type AgentWorkerCmd struct {
	AgentID string `name:"agent-id" required:"" help:"Agent id from the configuration."`
	Port    int    `required:"" help:"Port the inherited socket is bound to."`
}

func (c *AgentWorkerCmd) Run(cli *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	agentCfg, err := loadAgentConfig(ctx, cli.Config, c.AgentID)
	if err != nil {
		return err
	}

	srv, err := agentserver.New(c.AgentID, agentCfg, c.Port)
	if err != nil {
		return err
	}

	return srv.Start(ctx, inheritedListener(c.AgentID))
}

// ProxyWorkerCmd is the proxy child process entry point.
type ProxyWorkerCmd struct {
	Port   int    `required:"" help:"Port the inherited socket is bound to."`
	Agents string `required:"" help:"JSON routing table: agent id to backend port."`
}

func (c *ProxyWorkerCmd) Run(cli *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var agentPorts map[string]int
	if err := json.Unmarshal([]byte(c.Agents), &agentPorts); err != nil {
		return fmt.Errorf("invalid --agents routing table: %w", err)
	}

	proxyCfg := proxy.Config{
		Port:           c.Port,
		Agents:         agentPorts,
		ForwardTimeout: config.DefaultForwardTimeout,
		HealthTimeout:  config.DefaultHealthTimeout,
	}

	if cli.Config != "" {
		cfg, err := loadConfigFile(ctx, cli.Config)
		if err != nil {
			return err
		}
		if cfg.Proxy != nil {
			proxyCfg.ForwardTimeout = cfg.Proxy.ForwardTimeout
			proxyCfg.HealthTimeout = cfg.Proxy.HealthTimeout
			oc := cfg.Proxy.Observability
			proxyCfg.Observability = observability.Config{
				Metrics: observability.MetricsConfig{Enabled: oc.MetricsEnabled},
				Tracing: observability.TracerConfig{
					Enabled:     oc.TracingEnabled,
					Exporter:    oc.TracingExporter,
					Endpoint:    oc.TracingEndpoint,
					ServiceName: oc.ServiceName,
				},
			}
		}
	}

	return proxy.NewServer(proxyCfg).Start(ctx, inheritedListener("proxy"))
}

// inheritedListener rebuilds the listening socket the supervisor handed
// down. A worker started by hand, without an inherited descriptor, falls
// back to binding its configured port itself.
func inheritedListener(name string) net.Listener {
	ln, err := ports.InheritedListener(ports.FirstInheritedFd)
	if err != nil {
		slog.Warn("No inherited socket, binding directly", "worker", name, "error", err)
		return nil
	}
	return ln
}

func loadConfigFile(ctx context.Context, path string) (*config.Config, error) {
	p, err := provider.NewFileProvider(path)
	if err != nil {
		return nil, err
	}
	loader := config.NewLoader(p)
	defer loader.Close()
	return loader.Load(ctx)
}

func loadAgentConfig(ctx context.Context, path, agentID string) (*config.AgentConfig, error) {
	if path == "" {
		cfg := &config.AgentConfig{Name: agentID, Runner: "echo", Version: "1.0.0"}
		return cfg, nil
	}
	cfg, err := loadConfigFile(ctx, path)
	if err != nil {
		return nil, err
	}
	agentCfg, ok := cfg.Agents[agentID]
	if !ok {
		return nil, fmt.Errorf("agent %q not present in %s", agentID, path)
	}
	return agentCfg, nil
}
