// Package fakeserver provides a scripted fake MCP server for testing the
// stdio session runtime.
package fakeserver

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// Config controls the fake server's behavior. It is JSON-serializable so it
// can be handed to a helper subprocess through the environment.
type Config struct {
	// Tools to return from tools/list.
	Tools []Tool `json:"tools"`

	// Per-method delays before replying. Keep delays short (10-50ms) in
	// tests to avoid a slow suite.
	Delays map[string]time.Duration `json:"delays,omitempty"`

	// Per-tool delays before replying to tools/call, keyed by tool name.
	ToolDelays map[string]time.Duration `json:"toolDelays,omitempty"`

	// Per-method forced JSON-RPC error responses.
	Errors map[string]JSONRPCError `json:"errors,omitempty"`

	// Concurrent handles each request in its own goroutine, so delayed
	// replies arrive out of order relative to request issuance.
	Concurrent bool `json:"concurrent"`

	// Stream-realism quirks applied before each reply.
	SendNotificationBeforeResponse bool `json:"sendNotificationBeforeResponse"`
	SendMismatchedIDFirst          bool `json:"sendMismatchedIDFirst"`
	MalformedFrameFirst            bool `json:"malformedFrameFirst"`

	// ExitAfterRequests stops serving (EOF for the client) after handling
	// this many requests. 0 means never.
	ExitAfterRequests int `json:"exitAfterRequests"`

	// CrashOnMethod exits the process without replying when this method is
	// received. Only meaningful when serving from a subprocess.
	CrashOnMethod string `json:"crashOnMethod,omitempty"`
	CrashExitCode int    `json:"crashExitCode"`

	// EchoToolCalls makes tools/call reply with the tool name and arguments
	// as a single text content block.
	EchoToolCalls bool `json:"echoToolCalls"`

	// ToolHandler overrides tools/call handling. In-process use only.
	ToolHandler ToolHandler `json:"-"`
}

// Tool represents an MCP tool definition.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"inputSchema,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ToolHandler handles a tools/call request. It returns the content blocks,
// the isError flag, and an error that becomes a JSON-RPC error response.
type ToolHandler func(name string, arguments json.RawMessage) ([]ContentBlock, bool, error)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

type rpcNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// InitializeResult is the result of the initialize request.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
	Capabilities    Capabilities `json:"capabilities"`
}

// ServerInfo describes the fake server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities describes server capabilities.
type Capabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ToolsCapability indicates the server supports tools.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ToolsListResult is the result of tools/list.
type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

// ToolCallParams is the params of tools/call.
type ToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolCallResult is the result of tools/call.
type ToolCallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock is one content entry of a tool result.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// writer serializes frame writes; concurrent mode replies from many
// goroutines over one pipe.
type writer struct {
	mu  sync.Mutex
	out io.Writer
}

func (w *writer) writeLine(data []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.out.Write(data)
	w.out.Write([]byte("\n"))
}

func (w *writer) writeRaw(line string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.out, line)
}

// writeQuirks emits the configured stream-realism noise before a reply.
func writeQuirks(w *writer, cfg Config) {
	if cfg.MalformedFrameFirst {
		w.writeRaw("this is not a json-rpc frame")
	}
	if cfg.SendNotificationBeforeResponse {
		data, _ := json.Marshal(rpcNotification{JSONRPC: "2.0", Method: "test/noise"})
		w.writeLine(data)
	}
	if cfg.SendMismatchedIDFirst {
		data, _ := json.Marshal(rpcResponse{JSONRPC: "2.0", ID: json.RawMessage(`99999`), Result: json.RawMessage(`{}`)})
		w.writeLine(data)
	}
}

// writeResult writes a JSON-RPC success response with NDJSON framing.
func writeResult(w *writer, cfg Config, id json.RawMessage, result any) error {
	writeQuirks(w, cfg)

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return err
	}
	data, err := json.Marshal(rpcResponse{JSONRPC: "2.0", ID: id, Result: resultJSON})
	if err != nil {
		return err
	}
	w.writeLine(data)
	return nil
}

// writeError writes a JSON-RPC error response with NDJSON framing.
func writeError(w *writer, cfg Config, id json.RawMessage, rpcErr JSONRPCError) error {
	writeQuirks(w, cfg)

	data, err := json.Marshal(rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcErr})
	if err != nil {
		return err
	}
	w.writeLine(data)
	return nil
}
