package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hedworth/pipeagent/internal/agent"
	"github.com/hedworth/pipeagent/internal/config"
)

// sessionOptions resolves the target server from either the args after "--"
// (ad hoc: pipeagent tools -- python -m mcp_server_weather) or a configured
// profile (--profile, falling back to the config's default).
func sessionOptions(cmd *cobra.Command, args []string, configPath, profileID string) (agent.Options, error) {
	if at := cmd.ArgsLenAtDash(); at >= 0 && at < len(args) {
		return agent.Options{
			Command: args[at],
			Args:    args[at+1:],
		}, nil
	}

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return agent.Options{}, fmt.Errorf("load config: %w", err)
	}

	profile, ok := cfg.Profile(profileID)
	if !ok {
		if profileID == "" {
			return agent.Options{}, fmt.Errorf("no server given: pass one after -- or set a default profile")
		}
		return agent.Options{}, fmt.Errorf("profile %q not found", profileID)
	}

	return agent.Options{
		Command:           profile.Command,
		Args:              profile.Args,
		Cwd:               profile.Cwd,
		Env:               profile.Env,
		RequestTimeout:    profile.RequestTimeout(),
		HeartbeatInterval: profile.HeartbeatInterval(),
		MetricsInterval:   profile.MetricsInterval(),
	}, nil
}
