package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/hedworth/pipeagent/internal/agent"
	"github.com/hedworth/pipeagent/internal/events"
	"github.com/hedworth/pipeagent/internal/tui"
)

var (
	monitorConfigPath string
	monitorProfile    string
	monitorTimeout    time.Duration
	monitorDebugLog   bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor [-- command args...]",
	Short: "Run a live terminal view of one MCP session",
	Long: `Spawn an MCP server and watch the session in a terminal UI: state,
tool catalog, heartbeat results, request metrics, and the child's stderr.

The server comes from a configured profile, or ad hoc after --.

Examples:
  pipeagent monitor --profile weather
  pipeagent monitor -- python -m mcp_server_weather`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVarP(&monitorConfigPath, "config", "c", "", "Path to config file")
	monitorCmd.Flags().StringVarP(&monitorProfile, "profile", "p", "", "Profile to spawn")
	monitorCmd.Flags().DurationVar(&monitorTimeout, "timeout", 30*time.Second, "Handshake timeout")
	monitorCmd.Flags().BoolVar(&monitorDebugLog, "debug-log", false, "Write debug logs to /tmp/pipeagent-debug.log")

	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	// The TUI owns the terminal, so logs either go to a file or nowhere.
	if monitorDebugLog {
		logFile, err := os.OpenFile("/tmp/pipeagent-debug.log", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err == nil {
			log.SetOutput(logFile)
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			defer logFile.Close()
		}
	} else {
		log.SetOutput(io.Discard)
	}

	opts, err := sessionOptions(cmd, args, monitorConfigPath, monitorProfile)
	if err != nil {
		return err
	}

	bus := events.NewBus()
	defer bus.Close()
	opts.Bus = bus

	session := agent.New(opts)
	defer session.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), monitorTimeout)
	defer cancel()
	if err := session.Start(ctx); err != nil {
		return err
	}

	model := tui.NewModel(session, bus)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run monitor: %w", err)
	}
	return nil
}
