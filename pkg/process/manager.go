package process

import (
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// Status is the lifecycle state of a managed process.
type Status string

const (
	StatusRunning    Status = "running"
	StatusStopped    Status = "stopped"
	StatusError      Status = "error"
	StatusTerminated Status = "terminated"
)

// Info tracks one managed process.
type Info struct {
	Key       string
	Spec      Spec
	PID       int
	CreatedAt time.Time
	Status    Status

	cmd  *exec.Cmd
	done chan struct{}
}

// Alive reports whether the process is still running.
func (p *Info) Alive() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// ListEntry is a point-in-time view of a managed process.
type ListEntry struct {
	PID       int
	Status    Status
	CreatedAt time.Time
	Uptime    time.Duration
	Alive     bool
	Target    string
}

// Manager owns a set of child processes indexed by string key.
//
// The registry is mutated only by the supervisor's orchestration path; the
// mutex exists because each child is reaped by its own wait goroutine, not
// because there are concurrent orchestrators.
type Manager struct {
	mu        sync.Mutex
	processes map[string]*Info
}

// NewManager creates an empty process manager.
func NewManager() *Manager {
	return &Manager{processes: make(map[string]*Info)}
}

// Create spawns a new child process for spec and records it under key.
// Returns false without spawning if the key is already present, and false
// if the OS refuses to start the process.
func (m *Manager) Create(key string, spec Spec) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.processes[key]; exists {
		slog.Warn("Process already exists", "key", key)
		return false
	}

	exe, err := spec.executable()
	if err != nil {
		slog.Error("Failed to create process", "key", key, "error", err)
		return false
	}

	cmd := exec.Command(exe, spec.Args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = spec.Files
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	if err := cmd.Start(); err != nil {
		slog.Error("Failed to create process", "key", key, "error", err)
		return false
	}

	info := &Info{
		Key:       key,
		Spec:      spec,
		PID:       cmd.Process.Pid,
		CreatedAt: time.Now(),
		Status:    StatusRunning,
		cmd:       cmd,
		done:      make(chan struct{}),
	}
	m.processes[key] = info

	// Reap the child when it exits; done doubles as the liveness signal.
	go func() {
		if err := cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				slog.Debug("Wait failed for process", "key", key, "error", err)
			}
		}
		close(info.done)
	}()

	slog.Info("Process created", "key", key, "pid", info.PID)
	return true
}

// Terminate stops the process under key: SIGTERM, a bounded wait, then
// SIGKILL with an unconditional wait. An already-dead process counts as
// success. Returns false if the key is unknown or signalling itself fails.
func (m *Manager) Terminate(key string, timeout time.Duration) bool {
	m.mu.Lock()
	info, ok := m.processes[key]
	m.mu.Unlock()

	if !ok {
		slog.Warn("Process not found", "key", key)
		return false
	}
	return m.terminate(info, timeout)
}

func (m *Manager) terminate(info *Info, timeout time.Duration) bool {
	if !info.Alive() {
		slog.Info("Process is already terminated", "key", info.Key)
		info.Status = StatusStopped
		return true
	}

	if err := info.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		slog.Error("Failed to terminate process", "key", info.Key, "error", err)
		info.Status = StatusError
		return false
	}

	select {
	case <-info.done:
	case <-time.After(timeout):
		slog.Warn("Force killing process", "key", info.Key)
		if err := info.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			slog.Error("Failed to kill process", "key", info.Key, "error", err)
			info.Status = StatusError
			return false
		}
		<-info.done
	}

	info.Status = StatusTerminated
	slog.Info("Process terminated", "key", info.Key)
	return true
}

// Remove terminates the process if it is still running and drops the key
// from the registry.
func (m *Manager) Remove(key string) bool {
	m.mu.Lock()
	info, ok := m.processes[key]
	m.mu.Unlock()

	if !ok {
		slog.Warn("Process not found", "key", key)
		return false
	}

	if info.Alive() {
		m.terminate(info, 5*time.Second)
	}

	m.mu.Lock()
	delete(m.processes, key)
	m.mu.Unlock()

	slog.Info("Process removed", "key", key)
	return true
}

// Info returns the tracked process for key, or nil.
func (m *Manager) Info(key string) *Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.processes[key]
}

// List returns a snapshot of every managed process. Status is recomputed
// from liveness: a process that was running and has exited is reported
// stopped (error is reserved for termination failures).
func (m *Manager) List() map[string]ListEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]ListEntry, len(m.processes))
	for key, info := range m.processes {
		alive := info.Alive()
		if alive {
			info.Status = StatusRunning
		} else if info.Status == StatusRunning {
			info.Status = StatusStopped
		}
		out[key] = ListEntry{
			PID:       info.PID,
			Status:    info.Status,
			CreatedAt: info.CreatedAt,
			Uptime:    time.Since(info.CreatedAt),
			Alive:     alive,
			Target:    info.Spec.target(),
		}
	}
	return out
}

// CleanupDead removes every process whose child has exited and returns how
// many were removed.
func (m *Manager) CleanupDead() int {
	m.mu.Lock()
	var dead []string
	for key, info := range m.processes {
		if !info.Alive() {
			dead = append(dead, key)
		}
	}
	m.mu.Unlock()

	for _, key := range dead {
		m.Remove(key)
	}

	if len(dead) > 0 {
		slog.Info("Cleaned up dead processes", "count", len(dead))
	}
	return len(dead)
}

// ShutdownAll terminates every managed process with the given per-process
// timeout and clears the registry. Returns true iff every termination
// succeeded.
func (m *Manager) ShutdownAll(timeout time.Duration) bool {
	m.mu.Lock()
	keys := make([]string, 0, len(m.processes))
	for key := range m.processes {
		keys = append(keys, key)
	}
	m.mu.Unlock()

	success := true
	for _, key := range keys {
		if !m.Terminate(key, timeout) {
			success = false
		}
	}

	m.mu.Lock()
	m.processes = make(map[string]*Info)
	m.mu.Unlock()

	slog.Info("All processes shut down")
	return success
}

// Restart terminates the process under key and recreates it with its
// original spec. Specs carrying inherited files are refused: those
// descriptors were closed right after the original spawn and would reach
// the new child dead.
func (m *Manager) Restart(key string, timeout time.Duration) bool {
	m.mu.Lock()
	info, ok := m.processes[key]
	m.mu.Unlock()

	if !ok {
		slog.Warn("Process not found", "key", key)
		return false
	}

	spec := info.Spec
	if len(spec.Files) > 0 {
		slog.Error("Cannot restart a process that inherited descriptors", "key", key)
		return false
	}

	if !m.terminate(info, timeout) {
		slog.Error("Failed to terminate process for restart", "key", key)
		return false
	}

	m.mu.Lock()
	delete(m.processes, key)
	m.mu.Unlock()

	return m.Create(key, spec)
}
