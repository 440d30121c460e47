// Package mcptest provides test infrastructure for exercising the session
// runtime against a real subprocess peer.
package mcptest

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/hedworth/pipeagent/internal/mcptest/fakeserver"
)

// Environment variables for the re-exec helper pattern.
const (
	helperMarkerEnv = "GO_WANT_HELPER_PROCESS"
	helperConfigEnv = "FAKE_MCP_CFG"
)

// FakeServerConfig is an alias for fakeserver.Config for convenience.
type FakeServerConfig = fakeserver.Config

// Tool is an alias for fakeserver.Tool for convenience.
type Tool = fakeserver.Tool

// JSONRPCError is an alias for fakeserver.JSONRPCError for convenience.
type JSONRPCError = fakeserver.JSONRPCError

// HelperCommand returns the command, args, and extra environment that spawn
// the calling test binary as a fake MCP server subprocess. The test package
// must declare a TestHelperProcess that calls RunHelperProcess.
func HelperCommand(t *testing.T, cfg FakeServerConfig) (command string, args []string, env map[string]string) {
	t.Helper()

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal fake server config: %v", err)
	}

	return os.Args[0], []string{"-test.run=TestHelperProcess", "--"}, map[string]string{
		helperMarkerEnv: "1",
		helperConfigEnv: string(cfgJSON),
	}
}

// RunHelperProcess implements the fake MCP server when the test binary is
// re-executed as a subprocess. Call it from the test package's own
// TestHelperProcess:
//
//	func TestHelperProcess(t *testing.T) {
//	    mcptest.RunHelperProcess(t)
//	}
//
// It is a no-op in a normal test run.
func RunHelperProcess(t *testing.T) {
	if os.Getenv(helperMarkerEnv) != "1" {
		return
	}

	cfgJSON := os.Getenv(helperConfigEnv)
	if cfgJSON == "" {
		os.Exit(2)
	}

	var cfg fakeserver.Config
	if err := json.Unmarshal([]byte(cfgJSON), &cfg); err != nil {
		os.Exit(2)
	}

	if err := fakeserver.Serve(context.Background(), os.Stdin, os.Stdout, cfg); err != nil {
		os.Exit(1)
	}
	os.Exit(0)
}
