package rpc

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
)

// DebugLogging enables verbose payload logging (Send/Recv frames).
var DebugLogging bool

// ErrMalformedFrame indicates a frame that could not be decoded as a JSON-RPC
// message. NDJSON framing resyncs at the next newline, so a malformed frame is
// recoverable: the caller may log it and read the next frame.
var ErrMalformedFrame = errors.New("malformed frame")

// Codec frames JSON-RPC messages over a pipe pair using NDJSON (one JSON
// object per line), the standard framing for MCP stdio transports.
//
// Writes are serialized with a mutex so concurrent senders (foreground calls,
// heartbeat, metrics) never interleave the bytes of two frames. Reads are not
// locked: exactly one reader, the session's response listener, owns ReadNext.
type Codec struct {
	stdin  io.WriteCloser
	stdout io.ReadCloser
	reader *bufio.Reader

	wmu    sync.Mutex
	closed bool
}

// NewCodec creates a codec over a child process's stdin (our write end) and
// stdout (our read end).
func NewCodec(stdin io.WriteCloser, stdout io.ReadCloser) *Codec {
	return &Codec{
		stdin:  stdin,
		stdout: stdout,
		reader: bufio.NewReader(stdout),
	}
}

// WriteMessage serializes one message and hands it to the pipe. It returns
// once the bytes have left the local write buffer; it does not wait for any
// reply. msg must marshal to a single JSON object (Request or Notification).
func (c *Codec) WriteMessage(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.closed {
		return fmt.Errorf("codec closed")
	}

	if DebugLogging {
		log.Printf("rpc send: %s", data)
	}

	if _, err := c.stdin.Write(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	if _, err := c.stdin.Write([]byte("\n")); err != nil {
		return fmt.Errorf("write delimiter: %w", err)
	}
	return nil
}

// ReadNext blocks until the next complete frame is available and decodes it.
// A frame that is not valid JSON or has neither an id nor a method yields
// ErrMalformedFrame; the stream position advances past it, so the next call
// returns the next frame. Any other error (including io.EOF when the child
// exits) is fatal to the stream.
func (c *Codec) ReadNext() (*Envelope, error) {
	for {
		line, err := c.reader.ReadBytes('\n')
		if err != nil {
			return nil, err
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}

		if DebugLogging {
			log.Printf("rpc recv: %s", line)
		}

		var env Envelope
		if err := json.Unmarshal(line, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		if env.ID == nil && env.Method == "" {
			return nil, fmt.Errorf("%w: no id or method", ErrMalformedFrame)
		}
		return &env, nil
	}
}

// Close closes both pipe ends. Closing unblocks a pending ReadNext with an
// error. Safe to call more than once.
func (c *Codec) Close() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if err := c.stdin.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close stdin: %w", err))
	}
	if err := c.stdout.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close stdout: %w", err))
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
