package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hedworth/pipeagent/internal/agent"
)

var (
	toolsJSON       bool
	toolsConfigPath string
	toolsProfile    string
	toolsTimeout    time.Duration
)

var toolsCmd = &cobra.Command{
	Use:   "tools [-- command args...]",
	Short: "List the tools exposed by an MCP server",
	Long: `Spawn an MCP server, run the initialization handshake, and print the
discovered tool catalog.

The server comes from a configured profile, or ad hoc after --.

Examples:
  pipeagent tools --profile weather
  pipeagent tools -- python -m mcp_server_weather
  pipeagent tools --json -- npx -y @modelcontextprotocol/server-filesystem /tmp`,
	RunE: runTools,
}

func init() {
	toolsCmd.Flags().BoolVar(&toolsJSON, "json", false, "Output as JSON")
	toolsCmd.Flags().StringVarP(&toolsConfigPath, "config", "c", "", "Path to config file")
	toolsCmd.Flags().StringVarP(&toolsProfile, "profile", "p", "", "Profile to spawn")
	toolsCmd.Flags().DurationVar(&toolsTimeout, "timeout", 30*time.Second, "Handshake timeout")

	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	opts, err := sessionOptions(cmd, args, toolsConfigPath, toolsProfile)
	if err != nil {
		return err
	}
	// One-shot command: background chatter is just noise here.
	opts.HeartbeatInterval = -1
	opts.MetricsInterval = -1

	session := agent.New(opts)
	defer session.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), toolsTimeout)
	defer cancel()
	if err := session.Start(ctx); err != nil {
		return err
	}

	tools, err := session.ListTools()
	if err != nil {
		return err
	}

	if toolsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(tools)
	}

	name, version := session.ServerInfo()
	header := color.New(color.Bold)
	header.Printf("%s %s", name, version)
	fmt.Printf(" (protocol %s, %d tools)\n\n", session.ProtocolVersion(), len(tools))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	bold := color.New(color.FgCyan).SprintFunc()
	for _, tool := range tools {
		fmt.Fprintf(w, "%s\t%s\n", bold(tool.Name), tool.Description)
	}
	return w.Flush()
}
