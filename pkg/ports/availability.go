// Package ports reserves TCP ports for AION services before the processes
// that will serve on them exist.
//
// A reservation is a bound, listening socket held by the supervisor. Holding
// the socket closes the check-then-bind race: by the time an agent or proxy
// worker starts, its port is already exclusively owned and the listening
// descriptor is handed to the child instead of being re-bound.
package ports

import (
	"fmt"
	"net"
)

// IsAvailable reports whether a TCP port can currently be bound on the
// wildcard address. The probe socket is closed immediately, so the answer
// is only advisory; use Reserve for race-free allocation.
func IsAvailable(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}

// ReservePort binds a listening socket on the given port (0 lets the OS
// choose) and returns the actual port together with the open listener.
// The caller owns the listener and must close it.
func ReservePort(port int) (int, net.Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return 0, nil, err
	}
	return ln.Addr().(*net.TCPAddr).Port, ln, nil
}

func validateRange(portMin, portMax int) error {
	if portMin < 1 || portMin > 65535 {
		return fmt.Errorf("port_min must be between 1 and 65535, got %d", portMin)
	}
	if portMax < 1 || portMax > 65535 {
		return fmt.Errorf("port_max must be between 1 and 65535, got %d", portMax)
	}
	if portMin > portMax {
		return fmt.Errorf("port_min (%d) must be <= port_max (%d)", portMin, portMax)
	}
	return nil
}

// FindFreePortReserved scans the inclusive range in ascending order and
// returns the first port that binds, keeping the socket open. Ports in
// excluded are skipped. Returns ok=false when the range is exhausted.
//
// The ascending scan is deliberate: allocation order is deterministic, so a
// fresh range always yields its lowest free port.
func FindFreePortReserved(portMin, portMax int, excluded map[int]struct{}) (int, net.Listener, bool) {
	if err := validateRange(portMin, portMax); err != nil {
		return 0, nil, false
	}

	for port := portMin; port <= portMax; port++ {
		if _, skip := excluded[port]; skip {
			continue
		}
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err != nil {
			continue
		}
		return port, ln, true
	}
	return 0, nil, false
}

// FindFreePort scans the inclusive range and returns the first available
// port without holding it. Prefer FindFreePortReserved when the port will
// actually be used.
func FindFreePort(portMin, portMax int, excluded map[int]struct{}) (int, bool) {
	port, ln, ok := FindFreePortReserved(portMin, portMax, excluded)
	if !ok {
		return 0, false
	}
	ln.Close()
	return port, true
}
