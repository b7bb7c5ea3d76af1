package main

import (
	"context"
	"fmt"

	"github.com/aionlabs/aion/pkg/config"
)

// ValidateCmd checks a configuration file without starting anything.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	if cli.Config == "" {
		return fmt.Errorf("--config is required for validate")
	}
	_ = config.LoadDotEnvForConfig(cli.Config)

	cfg, err := loadConfigFile(context.Background(), cli.Config)
	if err != nil {
		return err
	}

	fmt.Printf("Configuration OK: %s\n\n", cli.Config)
	fmt.Printf("Agents (%d):\n", len(cfg.Agents))
	for _, id := range cfg.AgentIDs() {
		agent := cfg.Agents[id]
		port := "auto"
		if agent.Port != 0 {
			port = fmt.Sprintf("%d", agent.Port)
		}
		fmt.Printf("  - %-20s port=%-6s runner=%s\n", id, port, agent.Runner)
	}

	if cfg.Proxy != nil {
		port := "auto"
		if cfg.Proxy.Port != 0 {
			port = fmt.Sprintf("%d", cfg.Proxy.Port)
		}
		fmt.Printf("\nProxy: port=%s forward_timeout=%s health_timeout=%s\n",
			port, cfg.Proxy.ForwardTimeout, cfg.Proxy.HealthTimeout)
	} else {
		fmt.Println("\nProxy: disabled")
	}

	fmt.Printf("\nSupervisor: agent_ports=%d-%d proxy_ports=%d-%d monitor_interval=%s\n",
		cfg.Supervisor.AgentPortMin, cfg.Supervisor.AgentPortMax,
		cfg.Supervisor.ProxyPortMin, cfg.Supervisor.ProxyPortMax,
		cfg.Supervisor.MonitorInterval)
	return nil
}
