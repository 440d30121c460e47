package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hedworth/pipeagent/internal/agent"
)

var (
	callArgs       string
	callConfigPath string
	callProfile    string
	callTimeout    time.Duration
)

var callCmd = &cobra.Command{
	Use:   "call [tool] [-- command args...]",
	Short: "Invoke a tool on an MCP server",
	Long: `Spawn an MCP server, run the handshake, and invoke one tool.

When no tool name is given, an interactive picker lists the discovered
tools and prompts for the JSON arguments.

Examples:
  pipeagent call get_weather --args '{"city":"Beijing"}' --profile weather
  pipeagent call read_file --args '{"path":"/etc/hosts"}' -- npx -y @modelcontextprotocol/server-filesystem /
  pipeagent call -- python -m mcp_server_weather`,
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVar(&callArgs, "args", "", "Tool arguments as a JSON object")
	callCmd.Flags().StringVarP(&callConfigPath, "config", "c", "", "Path to config file")
	callCmd.Flags().StringVarP(&callProfile, "profile", "p", "", "Profile to spawn")
	callCmd.Flags().DurationVar(&callTimeout, "timeout", 60*time.Second, "Overall call timeout")

	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	opts, err := sessionOptions(cmd, args, callConfigPath, callProfile)
	if err != nil {
		return err
	}
	opts.HeartbeatInterval = -1
	opts.MetricsInterval = -1

	toolName := ""
	if at := cmd.ArgsLenAtDash(); at > 0 || (at < 0 && len(args) > 0) {
		toolName = args[0]
	}

	session := agent.New(opts)
	defer session.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
	defer cancel()
	if err := session.Start(ctx); err != nil {
		return err
	}

	arguments := callArgs
	if toolName == "" {
		toolName, arguments, err = pickTool(session)
		if err != nil {
			return err
		}
	}

	var rawArgs json.RawMessage
	if arguments != "" {
		if !json.Valid([]byte(arguments)) {
			return fmt.Errorf("--args is not valid JSON: %s", arguments)
		}
		rawArgs = json.RawMessage(arguments)
	}

	result, err := session.CallTool(ctx, toolName, rawArgs)
	if err != nil {
		return err
	}

	if result.IsError {
		color.New(color.FgRed, color.Bold).Fprintln(os.Stderr, "tool reported an error")
	}
	for _, block := range result.Content {
		fmt.Println(renderContent(block))
	}
	if result.IsError {
		os.Exit(1)
	}
	return nil
}

// pickTool prompts for a tool and its arguments using the discovered catalog.
func pickTool(session *agent.Session) (name, arguments string, err error) {
	tools, err := session.ListTools()
	if err != nil {
		return "", "", err
	}
	if len(tools) == 0 {
		return "", "", fmt.Errorf("server exposes no tools")
	}

	options := make([]huh.Option[string], len(tools))
	for i, tool := range tools {
		label := tool.Name
		if tool.Description != "" {
			label = fmt.Sprintf("%s: %s", tool.Name, tool.Description)
		}
		options[i] = huh.NewOption(label, tool.Name)
	}

	arguments = "{}"
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Tool").
				Options(options...).
				Value(&name),
			huh.NewText().
				Title("Arguments (JSON)").
				Value(&arguments).
				Validate(func(s string) error {
					if s != "" && !json.Valid([]byte(s)) {
						return fmt.Errorf("not valid JSON")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return "", "", err
	}
	return name, arguments, nil
}

// renderContent prints a content block: text blocks as their text, anything
// else as raw JSON.
func renderContent(block agent.ContentBlock) string {
	var text struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(block), &text); err == nil && text.Type == "text" {
		return text.Text
	}
	return string(block)
}
