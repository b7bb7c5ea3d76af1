package ports

import (
	"fmt"
	"log/slog"
	"net"
	"os"
)

type reservation struct {
	port     int
	listener net.Listener // nil once the socket was handed off to a child
}

// ReservationManager reserves and releases TCP ports keyed by service name.
//
// Reserved ports stay locked via their open listening sockets until released.
// The manager is domain-agnostic: callers use string keys ("proxy", agent ids)
// to identify reservations. Construct one per supervisor and pass it down;
// it is not safe for concurrent use and is only mutated by the orchestrator.
type ReservationManager struct {
	reserved    map[string]reservation
	lockedPorts map[int]struct{}
}

// NewReservationManager creates an empty reservation manager.
func NewReservationManager() *ReservationManager {
	return &ReservationManager{
		reserved:    make(map[string]reservation),
		lockedPorts: make(map[int]struct{}),
	}
}

// Reserve binds a listening socket on the given port and records it under
// key. Returns false if the key already has a reservation, the port is
// already locked, or the OS refuses the bind.
func (m *ReservationManager) Reserve(key string, port int) bool {
	if _, exists := m.reserved[key]; exists {
		slog.Warn("Key already has a reserved port", "key", key)
		return false
	}
	if _, locked := m.lockedPorts[port]; locked {
		slog.Error("Port is already reserved", "port", port)
		return false
	}

	actualPort, ln, err := ReservePort(port)
	if err != nil {
		slog.Error("Failed to reserve port", "port", port, "key", key, "error", err)
		return false
	}
	if actualPort != port {
		slog.Error("Reserved port does not match requested port", "requested", port, "actual", actualPort)
		ln.Close()
		return false
	}

	m.reserved[key] = reservation{port: port, listener: ln}
	m.lockedPorts[port] = struct{}{}
	slog.Debug("Reserved port", "port", port, "key", key)
	return true
}

// ReserveFromRange reserves the first free port in the inclusive range,
// scanning in ascending order and skipping ports already locked by this
// manager. Returns ok=false if the key is taken or the range is exhausted.
func (m *ReservationManager) ReserveFromRange(key string, portMin, portMax int) (int, bool) {
	if _, exists := m.reserved[key]; exists {
		slog.Warn("Key already has a reserved port", "key", key)
		return 0, false
	}

	port, ln, ok := FindFreePortReserved(portMin, portMax, m.lockedPorts)
	if !ok {
		slog.Error("No free port available in range", "min", portMin, "max", portMax, "key", key)
		return 0, false
	}

	m.reserved[key] = reservation{port: port, listener: ln}
	m.lockedPorts[port] = struct{}{}
	slog.Debug("Reserved port from range", "port", port, "key", key, "min", portMin, "max", portMax)
	return port, true
}

// Get returns the port allocated to a key. The allocation survives
// ReleaseForBinding: a key whose socket was handed to a child still answers
// with its port until Release or ReleaseLock forgets it.
func (m *ReservationManager) Get(key string) (int, bool) {
	res, ok := m.reserved[key]
	if !ok {
		return 0, false
	}
	return res.port, true
}

// Listener returns the held listener for a key, or nil if the key has no
// reservation or its socket was already released for binding.
func (m *ReservationManager) Listener(key string) net.Listener {
	res, ok := m.reserved[key]
	if !ok {
		return nil
	}
	return res.listener
}

// SocketFile duplicates the reserved listening socket's descriptor for
// inheritance by a child process. The returned file is independent of the
// manager's own handle: it stays valid across ReleaseForBinding, and the
// caller must close it once the child has been spawned.
func (m *ReservationManager) SocketFile(key string) (*os.File, error) {
	res, ok := m.reserved[key]
	if !ok || res.listener == nil {
		return nil, fmt.Errorf("no reserved socket for key %q", key)
	}
	tcpLn, ok := res.listener.(*net.TCPListener)
	if !ok {
		return nil, fmt.Errorf("reservation %q is not a TCP listener", key)
	}
	f, err := tcpLn.File()
	if err != nil {
		return nil, fmt.Errorf("failed to export socket for key %q: %w", key, err)
	}
	return f, nil
}

// IsPortLocked reports whether a port is currently reserved or was released
// for binding and is still claimed.
func (m *ReservationManager) IsPortLocked(port int) bool {
	_, locked := m.lockedPorts[port]
	return locked
}

// HasReservation reports whether a key holds an open listening socket. A
// key whose socket was released for binding keeps its allocation (see Get)
// but no longer has a reservation.
func (m *ReservationManager) HasReservation(key string) bool {
	res, ok := m.reserved[key]
	return ok && res.listener != nil
}

// Release fully forgets a reservation, closing the socket if still open and
// unlocking the port.
func (m *ReservationManager) Release(key string) bool {
	res, ok := m.reserved[key]
	if !ok {
		slog.Warn("No reserved port found for key", "key", key)
		return false
	}

	if res.listener != nil {
		if err := res.listener.Close(); err != nil {
			slog.Warn("Error closing socket", "port", res.port, "error", err)
		}
	}

	delete(m.reserved, key)
	delete(m.lockedPorts, res.port)
	slog.Debug("Released port", "port", res.port, "key", key)
	return true
}

// ReleaseForBinding closes the supervisor's handle on the reserved socket so
// a child that inherited the descriptor becomes its sole owner. The port
// number stays in the locked set to prevent double allocation. Returns the
// port that was released.
//
// Call SocketFile before this, and this immediately before spawning the
// child: the duplicated descriptor keeps the socket alive across the close.
func (m *ReservationManager) ReleaseForBinding(key string) (int, bool) {
	res, ok := m.reserved[key]
	if !ok {
		slog.Warn("No reserved port found for key", "key", key)
		return 0, false
	}

	if res.listener != nil {
		if err := res.listener.Close(); err != nil {
			slog.Warn("Error closing socket", "port", res.port, "error", err)
		}
	}

	// The allocation is kept so Get keeps answering and the key cannot be
	// reused; only the supervisor's socket handle is gone. The port stays in
	// lockedPorts.
	m.reserved[key] = reservation{port: res.port}
	slog.Debug("Released socket for binding, port stays locked", "port", res.port, "key", key)
	return res.port, true
}

// ReleaseLock forgets a port that was released for binding, dropping both
// the lock and the allocation that pointed at it. Used when the child that
// owned the socket has died and the port should become allocatable again.
func (m *ReservationManager) ReleaseLock(port int) bool {
	for key, res := range m.reserved {
		if res.port != port {
			continue
		}
		if res.listener != nil {
			slog.Warn("Port still has an active reservation", "port", port)
			return false
		}
		delete(m.reserved, key)
	}
	if _, locked := m.lockedPorts[port]; !locked {
		return false
	}
	delete(m.lockedPorts, port)
	slog.Debug("Unlocked port", "port", port)
	return true
}

// ReleaseAll releases every reservation.
func (m *ReservationManager) ReleaseAll() {
	for key := range m.reserved {
		m.Release(key)
	}
	slog.Debug("Released all reserved ports")
}

// All returns every tracked allocation by key, including ports whose
// sockets were already handed to children.
func (m *ReservationManager) All() map[string]int {
	out := make(map[string]int, len(m.reserved))
	for key, res := range m.reserved {
		out[key] = res.port
	}
	return out
}

// Count returns the number of tracked allocations.
func (m *ReservationManager) Count() int {
	return len(m.reserved)
}
