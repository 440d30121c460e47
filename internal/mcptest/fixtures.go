package mcptest

import "time"

// Common fake server configurations.

// DefaultConfig returns a minimal working fake server configuration.
func DefaultConfig() FakeServerConfig {
	return FakeServerConfig{
		Tools: []Tool{
			{Name: "read_file", Description: "Read a file from disk"},
			{Name: "write_file", Description: "Write content to a file"},
		},
		EchoToolCalls: true,
	}
}

// EmptyToolsConfig returns a config with no tools.
func EmptyToolsConfig() FakeServerConfig {
	return FakeServerConfig{Tools: []Tool{}}
}

// SlowToolConfig returns a concurrent echoing config where calls to the
// named tool are delayed, useful for out-of-order reply tests.
func SlowToolConfig(tool string, delay time.Duration) FakeServerConfig {
	return FakeServerConfig{
		Tools:         []Tool{{Name: "slow"}, {Name: "fast"}},
		ToolDelays:    map[string]time.Duration{tool: delay},
		EchoToolCalls: true,
		Concurrent:    true,
	}
}
