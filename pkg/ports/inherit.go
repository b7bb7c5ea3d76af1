package ports

import (
	"fmt"
	"net"
	"os"
)

// FirstInheritedFd is the descriptor number at which inherited files appear
// in a child spawned by pkg/process: fds 0-2 are stdio, extra files start
// at 3 in the order they were attached.
//
// Descriptor inheritance is POSIX-specific; on platforms without it the
// child falls back to binding the port itself.
const FirstInheritedFd = 3

// InheritedListener reconstructs a listening TCP socket from a descriptor
// inherited from the supervisor. The child serves on this listener instead
// of calling bind, which is what makes the parent-side reservation race-free.
func InheritedListener(fd uintptr) (net.Listener, error) {
	f := os.NewFile(fd, fmt.Sprintf("inherited-listener-%d", fd))
	if f == nil {
		return nil, fmt.Errorf("invalid inherited descriptor %d", fd)
	}
	defer f.Close()

	ln, err := net.FileListener(f)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild listener from fd %d: %w", fd, err)
	}
	return ln, nil
}
