// Package agent implements the client-side runtime for one MCP server child
// process: spawning, framing, request multiplexing, background tasks, and the
// session state machine behind CallTool/ListTools/Close.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hedworth/pipeagent/internal/events"
	"github.com/hedworth/pipeagent/internal/process"
	"github.com/hedworth/pipeagent/internal/rpc"
)

const (
	// DefaultHeartbeatInterval is how often the heartbeat task pings the peer.
	DefaultHeartbeatInterval = 5 * time.Second
	// DefaultMetricsInterval is how often the metrics task publishes a snapshot.
	DefaultMetricsInterval = 10 * time.Second
)

// State is the session lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Options configures a session.
type Options struct {
	Command string
	Args    []string
	Cwd     string
	Env     map[string]string

	// RequestTimeout bounds every request issued through the session,
	// including heartbeats. Zero selects DefaultRequestTimeout.
	RequestTimeout time.Duration
	// HeartbeatInterval between pings; zero selects the default, negative
	// disables the heartbeat task.
	HeartbeatInterval time.Duration
	// MetricsInterval between snapshots; zero selects the default, negative
	// disables the metrics task.
	MetricsInterval time.Duration

	// Bus receives session events (notifications, heartbeats, metrics,
	// state changes, child stderr). Optional.
	Bus *events.Bus

	ClientName    string
	ClientVersion string
}

// Session owns one child MCP server process and everything layered on its
// stdio pipes. Create with New, start with Start, always Close.
type Session struct {
	id   string
	opts Options
	bus  *events.Bus

	proc  *process.Handle
	codec *rpc.Codec
	mux   *Multiplexer

	stateMu sync.Mutex
	state   State

	catalog         []Tool
	serverName      string
	serverVersion   string
	protocolVersion string

	taskCancel context.CancelFunc
	tasks      sync.WaitGroup

	startedAt  time.Time
	hbFailures int64
	hbMu       sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// New creates an unstarted session.
func New(opts Options) *Session {
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.MetricsInterval == 0 {
		opts.MetricsInterval = DefaultMetricsInterval
	}
	if opts.ClientName == "" {
		opts.ClientName = "pipeagent"
	}
	if opts.ClientVersion == "" {
		opts.ClientVersion = "0.1.0"
	}

	bus := opts.Bus
	if bus == nil {
		bus = events.NewBus()
	}

	return &Session{
		id:    uuid.NewString(),
		opts:  opts,
		bus:   bus,
		state: StateUninitialized,
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// Bus returns the session's event bus.
func (s *Session) Bus() *events.Bus { return s.bus }

// ServerInfo returns the peer's reported name and version after the handshake.
func (s *Session) ServerInfo() (name, version string) {
	return s.serverName, s.serverVersion
}

// ProtocolVersion returns the negotiated protocol version.
func (s *Session) ProtocolVersion() string { return s.protocolVersion }

// Start spawns the child, starts the response listener, runs the handshake,
// and, on success, transitions to Ready and starts the heartbeat and metrics
// tasks. Any handshake failure tears the session down and returns an error
// wrapping ErrInitFailed; the session is never left half-usable.
func (s *Session) Start(ctx context.Context) error {
	if !s.transition(StateUninitialized, StateInitializing) {
		return fmt.Errorf("start: session already started (state %s)", s.State())
	}

	log.Printf("session %s: starting %s %v", s.id, s.opts.Command, s.opts.Args)

	proc, err := process.Spawn(process.Spec{
		Command: s.opts.Command,
		Args:    s.opts.Args,
		Cwd:     s.opts.Cwd,
		Env:     s.opts.Env,
	}, func(line string) {
		s.bus.Publish(events.NewStderrLineEvent(s.id, line))
	})
	if err != nil {
		s.setState(StateClosed)
		return fmt.Errorf("spawn %s: %w", s.opts.Command, err)
	}

	s.proc = proc
	s.codec = rpc.NewCodec(proc.Stdin(), proc.Stdout())
	s.mux = NewMultiplexer(s.codec, s.opts.RequestTimeout)
	s.startedAt = time.Now()

	taskCtx, cancel := context.WithCancel(context.Background())
	s.taskCancel = cancel

	s.tasks.Add(1)
	go s.listen()

	if err := s.handshake(ctx); err != nil {
		s.Close()
		return fmt.Errorf("%w: %w", ErrInitFailed, err)
	}

	if !s.transition(StateInitializing, StateReady) {
		// The transport died while the handshake was completing.
		s.Close()
		return fmt.Errorf("%w: %w", ErrInitFailed, ErrSessionClosed)
	}

	log.Printf("session %s: ready, %d tool(s), server %s %s",
		s.id, len(s.catalog), s.serverName, s.serverVersion)

	if s.opts.HeartbeatInterval > 0 {
		s.tasks.Add(1)
		go s.heartbeatLoop(taskCtx)
	}
	if s.opts.MetricsInterval > 0 {
		s.tasks.Add(1)
		go s.metricsLoop(taskCtx)
	}

	return nil
}

// CallTool invokes a tool on the peer. Valid only in Ready; any other state
// fails fast with ErrNotReady and no wire traffic.
func (s *Session) CallTool(ctx context.Context, name string, arguments json.RawMessage) (*ToolResult, error) {
	if st := s.State(); st != StateReady {
		return nil, fmt.Errorf("call tool %s in state %s: %w", name, st, ErrNotReady)
	}

	raw, err := s.mux.Call(ctx, "tools/call", toolCallParams{Name: name, Arguments: arguments})
	if err != nil {
		return nil, fmt.Errorf("tools/call %s: %w", name, err)
	}

	var result ToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("tools/call %s: unmarshal result: %w", name, err)
	}
	return &result, nil
}

// ListTools returns the catalog discovered during the handshake. No wire
// round-trip; the catalog is immutable for the session's lifetime.
func (s *Session) ListTools() ([]Tool, error) {
	if st := s.State(); st != StateReady {
		return nil, fmt.Errorf("list tools in state %s: %w", st, ErrNotReady)
	}
	out := make([]Tool, len(s.catalog))
	copy(out, s.catalog)
	return out, nil
}

// Snapshot builds the current metrics view. Usable from any state.
func (s *Session) Snapshot() events.MetricsSnapshot {
	snap := events.MetricsSnapshot{State: s.State().String()}
	if s.mux != nil {
		snap.RequestsSent, snap.ResponsesMatched, snap.ProtocolAnomalies = s.mux.Stats()
		snap.InFlight = s.mux.InFlight()
	}
	if !s.startedAt.IsZero() {
		snap.Uptime = time.Since(s.startedAt)
	}
	s.hbMu.Lock()
	snap.HeartbeatFailures = s.hbFailures
	s.hbMu.Unlock()
	return snap
}

// Close tears the session down: cancels background tasks, fails all pending
// requests with ErrSessionClosed, terminates the child, and transitions to
// Closed. Idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.State() != StateClosed {
			s.setState(StateClosing)
		}

		if s.taskCancel != nil {
			s.taskCancel()
		}
		if s.mux != nil {
			s.mux.FailAll(ErrSessionClosed)
		}
		if s.codec != nil {
			// Unblocks the listener's pending read.
			s.codec.Close()
		}
		if s.proc != nil {
			s.closeErr = s.proc.Terminate()
		}

		s.tasks.Wait()
		s.setState(StateClosed)
		log.Printf("session %s: closed", s.id)
	})
	return s.closeErr
}

// fatal handles a fatal transport event observed by the listener: the session
// goes straight to Closed from any state except an already-running Close,
// which owns its own transition.
func (s *Session) fatal() {
	s.stateMu.Lock()
	if s.state == StateClosing || s.state == StateClosed {
		s.stateMu.Unlock()
		return
	}
	from := s.state
	s.state = StateClosed
	s.stateMu.Unlock()

	if s.taskCancel != nil {
		s.taskCancel()
	}
	s.bus.Publish(events.NewStateChangedEvent(s.id, from.String(), StateClosed.String()))
}

// transition moves from -> to atomically; reports whether it happened.
func (s *Session) transition(from, to State) bool {
	s.stateMu.Lock()
	if s.state != from {
		s.stateMu.Unlock()
		return false
	}
	s.state = to
	s.stateMu.Unlock()

	s.bus.Publish(events.NewStateChangedEvent(s.id, from.String(), to.String()))
	return true
}

// setState forces the state; no event if unchanged.
func (s *Session) setState(to State) {
	s.stateMu.Lock()
	from := s.state
	if from == to {
		s.stateMu.Unlock()
		return
	}
	s.state = to
	s.stateMu.Unlock()

	s.bus.Publish(events.NewStateChangedEvent(s.id, from.String(), to.String()))
}
