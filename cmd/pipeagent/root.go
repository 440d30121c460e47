package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hedworth/pipeagent/internal/rpc"
)

// Version information (set at build time via ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

var rootDebug bool

var rootCmd = &cobra.Command{
	Use:   "pipeagent",
	Short: "Run and inspect stdio MCP agents",
	Long: `pipeagent owns a single MCP server child process over stdio pipes:
it spawns the server, performs the initialize/tools-list handshake, and
multiplexes concurrent tool calls over the pipe.

Use 'pipeagent tools' to discover a server's tools, 'pipeagent call' to
invoke one, and 'pipeagent monitor' for a live session view.`,
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		rpc.DebugLogging = rootDebug
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Suppress errors from being printed twice
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	rootCmd.PersistentFlags().BoolVar(&rootDebug, "debug", false, "Log raw JSON-RPC frames to stderr")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
