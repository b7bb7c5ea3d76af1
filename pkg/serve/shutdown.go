package serve

import (
	"log/slog"
	"time"

	"github.com/aionlabs/aion/pkg/ports"
	"github.com/aionlabs/aion/pkg/process"
)

// Shutdown tears the system down: every child process is terminated with a
// bounded per-process timeout, then all port reservations are dropped.
type Shutdown struct {
	procs   *process.Manager
	ports   *ports.ReservationManager
	timeout time.Duration
	logger  *slog.Logger
}

// NewShutdown creates the shutdown service.
func NewShutdown(procs *process.Manager, pm *ports.ReservationManager, timeout time.Duration) *Shutdown {
	return &Shutdown{
		procs:   procs,
		ports:   pm,
		timeout: timeout,
		logger:  slog.Default().With("component", "shutdown"),
	}
}

// Execute terminates everything. Returns true iff every process terminated
// cleanly within the timeout; a false is for the caller to log, never to
// escalate.
func (s *Shutdown) Execute() bool {
	s.logger.Info("Shutting down all processes", "timeout", s.timeout)
	ok := s.procs.ShutdownAll(s.timeout)
	s.ports.ReleaseAll()
	if !ok {
		s.logger.Warn("Some processes did not terminate cleanly")
	}
	return ok
}
