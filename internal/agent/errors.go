package agent

import "errors"

var (
	// ErrNotReady is returned by CallTool and ListTools when the session is
	// not in the Ready state. The transport is never touched.
	ErrNotReady = errors.New("session not ready")

	// ErrSessionClosed fails every pending request when the transport ends,
	// the child exits, or Close is called.
	ErrSessionClosed = errors.New("session closed")

	// ErrTimeout fails a pending request whose reply did not arrive within
	// the configured per-request timeout.
	ErrTimeout = errors.New("request timed out")

	// ErrInitFailed wraps any failure during the initialize/tools-list
	// handshake. The session is unusable afterward.
	ErrInitFailed = errors.New("initialization failed")
)
