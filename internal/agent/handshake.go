package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// SupportedProtocolVersions lists the MCP protocol revisions this runtime
// speaks, newest first. The handshake offers them in order until the peer
// accepts one.
var SupportedProtocolVersions = []string{
	"2025-11-25",
	"2025-06-18",
	"2025-03-26",
	"2024-11-05",
}

// handshake drives the one-time initialization sequence: initialize (with
// protocol version negotiation), the initialized notification, then
// tools/list to populate the catalog. Any failure is fatal to startup.
func (s *Session) handshake(ctx context.Context) error {
	var lastErr error
	negotiated := false

	for _, version := range SupportedProtocolVersions {
		params := initializeParams{
			ProtocolVersion: version,
			Capabilities:    map[string]any{},
			ClientInfo: clientInfo{
				Name:    s.opts.ClientName,
				Version: s.opts.ClientVersion,
			},
		}

		raw, err := s.mux.Call(ctx, "initialize", params)
		if err != nil {
			if isProtocolVersionError(err) {
				lastErr = err
				continue
			}
			return fmt.Errorf("initialize: %w", err)
		}

		var result initializeResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return fmt.Errorf("initialize: unmarshal result: %w", err)
		}

		s.serverName = result.ServerInfo.Name
		s.serverVersion = result.ServerInfo.Version
		s.protocolVersion = version
		negotiated = true
		break
	}

	if !negotiated {
		if lastErr != nil {
			return fmt.Errorf("all protocol versions rejected: %w", lastErr)
		}
		return fmt.Errorf("initialize: no protocol versions to try")
	}

	if err := s.mux.Notify("notifications/initialized", nil); err != nil {
		return fmt.Errorf("initialized notification: %w", err)
	}

	raw, err := s.mux.Call(ctx, "tools/list", nil)
	if err != nil {
		return fmt.Errorf("tools/list: %w", err)
	}

	var tools toolsListResult
	if err := json.Unmarshal(raw, &tools); err != nil {
		return fmt.Errorf("tools/list: unmarshal result: %w", err)
	}
	s.catalog = tools.Tools

	return nil
}

// isProtocolVersionError checks if an error indicates a version rejection.
func isProtocolVersionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "protocol") && strings.Contains(msg, "version") ||
		strings.Contains(msg, "protocolVersion") ||
		strings.Contains(msg, "unsupported version")
}
