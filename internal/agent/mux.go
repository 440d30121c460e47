package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hedworth/pipeagent/internal/rpc"
)

// DefaultRequestTimeout bounds how long a caller waits for a reply before the
// pending entry is failed with ErrTimeout.
const DefaultRequestTimeout = 30 * time.Second

// outcome is the single-assignment result cell of a pending request,
// fulfilled exactly once by whoever removes the entry from the table.
type outcome struct {
	result json.RawMessage
	err    error
}

// pendingRequest tracks one in-flight request until its reply arrives or the
// entry is failed.
type pendingRequest struct {
	id       int64
	ch       chan outcome // cap 1: fulfilment never blocks the listener
	issuedAt time.Time
}

// Multiplexer correlates concurrent requests with their replies over a single
// pipe. It allocates monotonically increasing ids, keeps the table of pending
// requests, and matches inbound responses by id regardless of arrival order.
//
// The pending table is the only mutable state shared between foreground
// callers and the response listener; all access goes through the mutex here.
type Multiplexer struct {
	codec   *rpc.Codec
	timeout time.Duration

	nextID atomic.Int64

	mu       sync.Mutex
	pending  map[int64]*pendingRequest
	closed   bool
	closeErr error

	sent      atomic.Int64
	matched   atomic.Int64
	anomalies atomic.Int64
}

// NewMultiplexer creates a multiplexer writing through codec. timeout <= 0
// selects DefaultRequestTimeout.
func NewMultiplexer(codec *rpc.Codec, timeout time.Duration) *Multiplexer {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Multiplexer{
		codec:   codec,
		timeout: timeout,
		pending: make(map[int64]*pendingRequest),
	}
}

// Send allocates an id, registers the pending entry, and writes the request
// frame. Registration happens before the write so a reply racing the write's
// return can never miss its entry. The returned pendingRequest's channel
// yields the outcome.
func (m *Multiplexer) Send(method string, params any) (*pendingRequest, error) {
	id := m.nextID.Add(1)
	p := &pendingRequest{
		id:       id,
		ch:       make(chan outcome, 1),
		issuedAt: time.Now(),
	}

	m.mu.Lock()
	if m.closed {
		err := m.closeErr
		m.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	m.pending[id] = p
	m.mu.Unlock()

	if err := m.codec.WriteMessage(rpc.NewRequest(id, method, params)); err != nil {
		m.take(id)
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	m.sent.Add(1)
	return p, nil
}

// Call is Send followed by waiting for the reply. Context cancellation and
// the per-request timeout both remove the pending entry, so an abandoned call
// never leaks table space or receives a late fulfilment.
func (m *Multiplexer) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	p, err := m.Send(method, params)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case out := <-p.ch:
		if out.err != nil {
			return nil, fmt.Errorf("%s: %w", method, out.err)
		}
		return out.result, nil
	case <-ctx.Done():
		m.take(p.id)
		return nil, fmt.Errorf("%s: %w", method, ctx.Err())
	case <-timer.C:
		m.take(p.id)
		return nil, fmt.Errorf("%s after %v: %w", method, m.timeout, ErrTimeout)
	}
}

// Notify writes a notification frame; no pending entry, no reply.
func (m *Multiplexer) Notify(method string, params any) error {
	m.mu.Lock()
	if m.closed {
		err := m.closeErr
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", method, err)
	}
	m.mu.Unlock()

	return m.codec.WriteMessage(rpc.NewNotification(method, params))
}

// Resolve delivers a successful reply to the matching pending caller.
// Invoked only by the response listener. An unknown id is a protocol anomaly:
// logged, counted, and dropped without affecting the session.
func (m *Multiplexer) Resolve(id int64, result json.RawMessage) {
	p := m.take(id)
	if p == nil {
		m.anomalies.Add(1)
		log.Printf("protocol anomaly: response for unknown id %d dropped", id)
		return
	}
	m.matched.Add(1)
	p.ch <- outcome{result: result}
}

// Fail delivers an error reply to the matching pending caller. Same anomaly
// policy as Resolve.
func (m *Multiplexer) Fail(id int64, err error) {
	p := m.take(id)
	if p == nil {
		m.anomalies.Add(1)
		log.Printf("protocol anomaly: error for unknown id %d dropped: %v", id, err)
		return
	}
	m.matched.Add(1)
	p.ch <- outcome{err: err}
}

// FailAll fails every pending request with reason, clears the table, and
// rejects all future sends with the same reason. Used at teardown and on
// fatal transport errors; no pending caller is ever left waiting.
func (m *Multiplexer) FailAll(reason error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.closeErr = reason
	drained := make([]*pendingRequest, 0, len(m.pending))
	for _, p := range m.pending {
		drained = append(drained, p)
	}
	m.pending = make(map[int64]*pendingRequest)
	m.mu.Unlock()

	for _, p := range drained {
		p.ch <- outcome{err: reason}
	}
}

// InFlight returns the number of currently pending requests.
func (m *Multiplexer) InFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// Stats returns cumulative counters for metrics emission.
func (m *Multiplexer) Stats() (sent, matched, anomalies int64) {
	return m.sent.Load(), m.matched.Load(), m.anomalies.Load()
}

// take removes and returns the pending entry for id, or nil if absent.
// Removal under the lock guarantees each entry is fulfilled at most once.
func (m *Multiplexer) take(id int64) *pendingRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.pending[id]
	delete(m.pending, id)
	return p
}
