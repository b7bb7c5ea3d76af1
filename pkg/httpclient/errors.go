package httpclient

import (
	"errors"
	"net"
	"net/url"
	"os"
	"syscall"
)

// IsTimeout reports whether a transport error was a timeout: either the
// client-level deadline or a network-level timeout.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsConnectError reports whether a transport error means the backend was
// not listening: connection refused, reset, or no route.
func IsConnectError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var sysErr *os.SyscallError
	return errors.As(err, &sysErr) && sysErr.Syscall == "connect"
}
