// Package process supervises the OS child processes that make up a running
// AION system: one per agent plus the reverse proxy.
//
// Go cannot fork a function into a child the way multiprocessing does, so a
// managed process is described by a Spec: an argv for the current executable
// (or an explicit command), extra environment, and inherited listening
// sockets. Agent and proxy workers are hidden subcommands of the aion binary
// itself; the manager re-executes it with the right arguments.
package process

import (
	"fmt"
	"os"
)

// Spec describes the command a managed process runs. Specs are retained
// verbatim so a process can be restarted with identical parameters.
type Spec struct {
	// Name is a human-readable target name for listings, e.g. "agent-worker".
	Name string

	// Command is the executable to run. Empty means the current executable,
	// which is how agent and proxy workers are spawned.
	Command string

	// Args is the argv after the executable.
	Args []string

	// Env entries are appended to the parent's environment.
	Env []string

	// Files are inherited open descriptors, visible in the child starting at
	// fd 3 in order. Used to hand reserved listening sockets to workers.
	// The parent still owns these files and closes them after the spawn, so
	// a spec carrying files cannot be respawned later; Manager.Restart
	// refuses such specs, and restarting a socket-bearing worker means
	// re-reserving its port and building a fresh spec.
	Files []*os.File
}

// executable resolves the spec's command, defaulting to the running binary.
func (s Spec) executable() (string, error) {
	if s.Command != "" {
		return s.Command, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to resolve current executable: %w", err)
	}
	return exe, nil
}

// target returns the name reported in listings.
func (s Spec) target() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Command != "" {
		return s.Command
	}
	if len(s.Args) > 0 {
		return s.Args[0]
	}
	return "unknown"
}
