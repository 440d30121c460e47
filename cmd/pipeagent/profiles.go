package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hedworth/pipeagent/internal/config"
)

var (
	profilesJSON       bool
	profilesConfigPath string
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List configured server profiles",
	Long: `List the MCP server profiles from the config file.

By default, outputs a human-readable table. Use --json for machine-readable
output.

Examples:
  pipeagent profiles
  pipeagent profiles --json`,
	RunE: runProfiles,
}

func init() {
	profilesCmd.Flags().BoolVar(&profilesJSON, "json", false, "Output as JSON")
	profilesCmd.Flags().StringVarP(&profilesConfigPath, "config", "c", "", "Path to config file (default: ~/.config/pipeagent/config.json)")

	rootCmd.AddCommand(profilesCmd)
}

func runProfiles(cmd *cobra.Command, args []string) error {
	var cfg *config.Config
	var err error
	if profilesConfigPath != "" {
		cfg, err = config.LoadFrom(profilesConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	profiles := cfg.ProfileEntries()
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].ID < profiles[j].ID
	})

	if profilesJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profiles)
	}

	if len(profiles) == 0 {
		fmt.Println("No profiles configured.")
		return nil
	}

	defaultMark := color.New(color.FgGreen).Sprint("*")
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCOMMAND")
	for _, p := range profiles {
		id := p.ID
		if p.ID == cfg.DefaultProfile {
			id += defaultMark
		}
		command := p.Command
		if len(p.Args) > 0 {
			command += " " + strings.Join(p.Args, " ")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", id, p.Name, command)
	}
	return w.Flush()
}
