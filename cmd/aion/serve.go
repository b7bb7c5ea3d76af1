package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/aionlabs/aion/pkg/config"
	"github.com/aionlabs/aion/pkg/config/provider"
	"github.com/aionlabs/aion/pkg/process"
	"github.com/aionlabs/aion/pkg/serve"
)

// ServeCmd runs the supervisor.
type ServeCmd struct {
	Watch bool `help:"Watch the config file and log when a restart is needed."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cli.Config == "" {
		return fmt.Errorf("--config is required for serve")
	}
	_ = config.LoadDotEnvForConfig(cli.Config)

	p, err := provider.NewFileProvider(cli.Config)
	if err != nil {
		return fmt.Errorf("failed to open config: %w", err)
	}
	loader := config.NewLoader(p, config.WithOnChange(func(*config.Config) {
		slog.Warn("Configuration changed on disk, restart aion to apply")
	}))
	defer loader.Close()

	cfg, err := loader.Load(ctx)
	if err != nil {
		return err
	}
	if len(cfg.Agents) == 0 {
		return fmt.Errorf("no agents configured in %s", cli.Config)
	}

	if c.Watch {
		go func() {
			if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Config watch error", "error", err)
			}
		}()
	}

	handler := serve.NewHandler(cfg,
		agentSpecFunc(cli),
		proxySpecFunc(cli),
		serve.WithOnStarted(func(state *serve.State) {
			printWelcome(cfg, state)
		}),
	)

	state, err := handler.Run(ctx)
	if err != nil {
		return err
	}

	slog.Info("AION stopped",
		"agents_started", len(state.SuccessfulAgents),
		"agents_failed", len(state.FailedAgents),
	)
	return nil
}

// agentSpecFunc builds the re-exec spec for agent workers. The child runs
// this same binary's hidden agent-worker command with the listening socket
// as its first inherited descriptor.
func agentSpecFunc(cli *CLI) serve.AgentSpecFunc {
	return func(agentID string, _ *config.AgentConfig, port int, socket *os.File) process.Spec {
		args := []string{
			"agent-worker",
			"--agent-id", agentID,
			"--port", strconv.Itoa(port),
		}
		args = append(args, workerGlobalArgs(cli)...)
		return process.Spec{
			Name:  "agent:" + agentID,
			Args:  args,
			Files: []*os.File{socket},
		}
	}
}

// proxySpecFunc builds the re-exec spec for the proxy worker. The routing
// table travels as a JSON flag because allocated ports are only known at
// startup time, not in the config file.
func proxySpecFunc(cli *CLI) serve.ProxySpecFunc {
	return func(_ *config.Config, port int, agentPorts map[string]int, socket *os.File) process.Spec {
		table, _ := json.Marshal(agentPorts)
		args := []string{
			"proxy-worker",
			"--port", strconv.Itoa(port),
			"--agents", string(table),
		}
		args = append(args, workerGlobalArgs(cli)...)
		return process.Spec{
			Name:  "proxy",
			Args:  args,
			Files: []*os.File{socket},
		}
	}
}

// workerGlobalArgs propagates the global flags to child processes.
func workerGlobalArgs(cli *CLI) []string {
	var args []string
	if cli.Config != "" {
		args = append(args, "--config", cli.Config)
	}
	if cli.LogLevel != "" {
		args = append(args, "--log-level", cli.LogLevel)
	}
	if cli.LogFile != "" {
		args = append(args, "--log-file", cli.LogFile)
	}
	if cli.LogFormat != "" {
		args = append(args, "--log-format", cli.LogFormat)
	}
	return args
}
