// Package rpc provides the JSON-RPC 2.0 message model and NDJSON frame codec
// used to talk to an MCP server over a stdio pipe pair.
package rpc

import (
	"encoding/json"
	"fmt"
)

// Version is the JSON-RPC protocol version stamped on every outgoing message.
const Version = "2.0"

// Request is an outgoing JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Notification is an outgoing JSON-RPC 2.0 notification (no id, no reply).
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Envelope is a decoded inbound frame. The peer may send responses,
// notifications, or (unexpectedly) its own requests; the id/method fields
// distinguish the three.
type Envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// IsResponse reports whether the envelope is a reply to one of our requests.
func (e *Envelope) IsResponse() bool {
	return e.ID != nil && e.Method == ""
}

// IsNotification reports whether the envelope is an unsolicited peer message
// that expects no reply.
func (e *Envelope) IsNotification() bool {
	return e.ID == nil && e.Method != ""
}

// NewRequest builds a request with the protocol version filled in.
func NewRequest(id int64, method string, params any) Request {
	return Request{JSONRPC: Version, ID: id, Method: method, Params: params}
}

// NewNotification builds a notification with the protocol version filled in.
func NewNotification(method string, params any) Notification {
	return Notification{JSONRPC: Version, Method: method, Params: params}
}
