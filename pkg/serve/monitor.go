package serve

import (
	"context"
	"log/slog"
	"time"

	"github.com/aionlabs/aion/pkg/process"
)

// Monitor is the supervisor's liveness loop. It polls the process registry
// on a fixed interval, prunes dead entries, restarts the proxy when it dies
// while agents remain, and returns once every agent is gone.
type Monitor struct {
	procs        *process.Manager
	proxyStartup *ProxyStartup
	interval     time.Duration
	logger       *slog.Logger
}

// NewMonitor creates the monitoring service.
func NewMonitor(procs *process.Manager, proxyStartup *ProxyStartup, interval time.Duration) *Monitor {
	return &Monitor{
		procs:        procs,
		proxyStartup: proxyStartup,
		interval:     interval,
		logger:       slog.Default().With("component", "monitor"),
	}
}

// Run blocks until ctx is cancelled or no successfully started agent is
// alive anymore. Each poll does nothing beyond the liveness scan when the
// system is healthy.
//
// A dead proxy gets one restart attempt per poll while at least one agent
// lives; a failed attempt is logged and the loop keeps going.
func (m *Monitor) Run(ctx context.Context, state *State) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("Monitoring started", "interval", m.interval)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Monitoring stopped", "reason", "context cancelled")
			return
		case <-ticker.C:
		}

		if removed := m.procs.CleanupDead(); removed > 0 {
			m.logger.Info("Removed dead processes", "count", removed)
		}

		alive := m.aliveAgents(state)
		if alive == 0 {
			m.logger.Info("All agents have exited, stopping monitor")
			return
		}

		if state.ProxyStarted && m.procs.Info(ProxyKey) == nil {
			m.logger.Warn("Proxy process died, attempting restart", "port", state.ProxyPort)
			if m.proxyStartup.Execute(state) {
				m.logger.Info("Proxy restarted", "port", state.ProxyPort)
			} else {
				m.logger.Error("Proxy restart failed, will retry next poll")
			}
		}
	}
}

func (m *Monitor) aliveAgents(state *State) int {
	alive := 0
	for _, id := range state.SuccessfulAgents {
		if info := m.procs.Info(id); info != nil && info.Alive() {
			alive++
		}
	}
	return alive
}
