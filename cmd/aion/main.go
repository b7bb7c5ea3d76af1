// Command aion supervises a fleet of A2A agent processes behind a single
// reverse proxy.
//
// Usage:
//
//	aion serve --config aion.yaml
//	aion validate --config aion.yaml
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/aionlabs/aion/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Start the supervisor: agents, proxy, monitor."`
	Validate ValidateCmd `cmd:"" help:"Validate configuration file."`

	// Worker commands are how the supervisor re-executes itself as agent
	// and proxy child processes. Not part of the user-facing surface.
	AgentWorker AgentWorkerCmd `cmd:"" hidden:""`
	ProxyWorker ProxyWorkerCmd `cmd:"" hidden:""`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("aion version %s\n", Version())
	return nil
}

// shouldSkipBanner reports whether the invoked command is informational or a
// worker, neither of which should print the banner.
func shouldSkipBanner(args []string) bool {
	for _, arg := range args[1:] {
		switch arg {
		case "validate", "version", "agent-worker", "proxy-worker":
			return true
		}
	}
	return false
}

func main() {
	if !shouldSkipBanner(os.Args) {
		printBanner()
	}

	_ = config.LoadDotEnv()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("aion"),
		kong.Description("AION - multi-agent supervisor and reverse proxy"),
		kong.UsageOnError(),
	)

	cleanup, err := initLoggerFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
