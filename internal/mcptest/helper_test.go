package mcptest

import "testing"

// TestHelperProcess is the entry point for the fake server subprocess. It
// runs the fake server only when re-executed with the helper marker set.
func TestHelperProcess(t *testing.T) {
	RunHelperProcess(t)
}
