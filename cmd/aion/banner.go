package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/aionlabs/aion/pkg/config"
	"github.com/aionlabs/aion/pkg/serve"
)

const (
	cyanColor  = "\033[38;2;34;211;238m"
	greenColor = "\033[38;2;16;185;129m"
	redColor   = "\033[38;2;239;68;68m"
	resetColor = "\033[0m"
)

// printBanner prints the ASCII banner when stdout is a terminal.
func printBanner() {
	if fileInfo, err := os.Stdout.Stat(); err != nil || (fileInfo.Mode()&os.ModeCharDevice) == 0 {
		return
	}

	banner := `
 █████╗ ██╗ ██████╗ ███╗   ██╗
██╔══██╗██║██╔═══██╗████╗  ██║
███████║██║██║   ██║██╔██╗ ██║
██╔══██║██║██║   ██║██║╚██╗██║
██║  ██║██║╚██████╔╝██║ ╚████║
╚═╝  ╚═╝╚═╝ ╚═════╝ ╚═╝  ╚═══╝
`
	fmt.Printf("%s%s%s\n", cyanColor, banner, resetColor)
}

// printWelcome summarizes the running system after startup: where the proxy
// listens and how to reach each agent, directly and through the proxy.
func printWelcome(cfg *config.Config, state *serve.State) {
	fmt.Printf("\n%sAION is up.%s\n\n", greenColor, resetColor)

	if state.ProxyStarted {
		fmt.Printf("   Proxy:        http://localhost:%d\n", state.ProxyPort)
		fmt.Printf("   Health:       http://localhost:%d/health\n", state.ProxyPort)
		fmt.Printf("   Agent health: http://localhost:%d/health/agents\n", state.ProxyPort)
	} else if cfg.Proxy != nil {
		fmt.Printf("   %sProxy failed to start%s\n", redColor, resetColor)
	}

	ids := make([]string, len(state.SuccessfulAgents))
	copy(ids, state.SuccessfulAgents)
	sort.Strings(ids)

	fmt.Println("\n   Agents:")
	for _, id := range ids {
		port := state.AgentPorts[id]
		fmt.Printf("     - %s\n", id)
		fmt.Printf("       Card: http://localhost:%d/.well-known/agent-card.json\n", port)
		fmt.Printf("       RPC:  http://localhost:%d/\n", port)
		if state.ProxyStarted {
			fmt.Printf("       Via proxy: http://localhost:%d/%s/\n", state.ProxyPort, id)
		}
	}

	if len(state.FailedAgents) > 0 {
		fmt.Printf("\n   %sFailed agents:%s %v\n", redColor, resetColor, state.FailedAgents)
	}

	fmt.Println("\nPress Ctrl+C to stop")
}
