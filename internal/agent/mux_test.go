package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/hedworth/pipeagent/internal/rpc"
)

// newTestMux builds a multiplexer over in-memory pipes with the peer side
// drained, so tests can drive Resolve/Fail/FailAll directly the way the
// response listener does.
func newTestMux(t *testing.T, timeout time.Duration) *Multiplexer {
	t.Helper()

	peerReader, ourWriter := io.Pipe()
	ourReader, peerWriter := io.Pipe()

	go io.Copy(io.Discard, peerReader)

	codec := rpc.NewCodec(ourWriter, ourReader)
	t.Cleanup(func() {
		codec.Close()
		peerReader.Close()
		peerWriter.Close()
	})

	return NewMultiplexer(codec, timeout)
}

func TestMultiplexer_MonotonicIDs(t *testing.T) {
	m := newTestMux(t, time.Second)

	p1, err := m.Send("tools/call", nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	p2, err := m.Send("tools/call", nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if p1.id >= p2.id {
		t.Errorf("ids not monotonically increasing: %d then %d", p1.id, p2.id)
	}
	if m.InFlight() != 2 {
		t.Errorf("expected 2 in flight, got %d", m.InFlight())
	}
}

func TestMultiplexer_OutOfOrderResolution(t *testing.T) {
	m := newTestMux(t, time.Second)

	p1, _ := m.Send("tools/call", nil)
	p2, _ := m.Send("tools/call", nil)

	// Resolve in reverse order of issuance.
	m.Resolve(p2.id, json.RawMessage(`"second"`))
	m.Resolve(p1.id, json.RawMessage(`"first"`))

	if out := <-p1.ch; string(out.result) != `"first"` {
		t.Errorf("caller 1 got %s", out.result)
	}
	if out := <-p2.ch; string(out.result) != `"second"` {
		t.Errorf("caller 2 got %s", out.result)
	}
	if m.InFlight() != 0 {
		t.Errorf("expected empty table, got %d in flight", m.InFlight())
	}
}

func TestMultiplexer_PermutedConcurrentCalls(t *testing.T) {
	m := newTestMux(t, 5*time.Second)

	const n = 16

	type res struct {
		id     int64
		result json.RawMessage
		err    error
	}
	results := make(chan res, n)

	var pending []*pendingRequest
	for i := 0; i < n; i++ {
		p, err := m.Send("tools/call", nil)
		if err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
		pending = append(pending, p)
		go func(p *pendingRequest) {
			out := <-p.ch
			results <- res{id: p.id, result: out.result, err: out.err}
		}(p)
	}

	// Fulfil in a scrambled order: evens descending, then odds ascending.
	for i := n - 2; i >= 0; i -= 2 {
		m.Resolve(pending[i].id, json.RawMessage(fmt.Sprintf("%d", pending[i].id)))
	}
	for i := 1; i < n; i += 2 {
		m.Resolve(pending[i].id, json.RawMessage(fmt.Sprintf("%d", pending[i].id)))
	}

	for i := 0; i < n; i++ {
		select {
		case r := <-results:
			if r.err != nil {
				t.Errorf("id %d failed: %v", r.id, r.err)
			}
			if string(r.result) != fmt.Sprintf("%d", r.id) {
				t.Errorf("id %d got payload %s", r.id, r.result)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("caller never resolved")
		}
	}
}

func TestMultiplexer_UnknownIDIsAnomalyNotFatal(t *testing.T) {
	m := newTestMux(t, time.Second)

	m.Resolve(999, json.RawMessage(`{}`))
	m.Fail(998, errors.New("boom"))

	if _, _, anomalies := m.Stats(); anomalies != 2 {
		t.Errorf("expected 2 anomalies, got %d", anomalies)
	}

	// The multiplexer still works.
	p, err := m.Send("ping", nil)
	if err != nil {
		t.Fatalf("Send after anomalies: %v", err)
	}
	m.Resolve(p.id, json.RawMessage(`{}`))
	if out := <-p.ch; out.err != nil {
		t.Errorf("call after anomalies failed: %v", out.err)
	}
}

func TestMultiplexer_ResolveIsExactlyOnce(t *testing.T) {
	m := newTestMux(t, time.Second)

	p, _ := m.Send("tools/call", nil)
	m.Resolve(p.id, json.RawMessage(`{}`))
	// A duplicate reply for the same id is an anomaly, not a second fulfilment.
	m.Resolve(p.id, json.RawMessage(`{}`))

	<-p.ch
	select {
	case <-p.ch:
		t.Error("pending request fulfilled twice")
	default:
	}

	if _, _, anomalies := m.Stats(); anomalies != 1 {
		t.Errorf("expected 1 anomaly, got %d", anomalies)
	}
}

func TestMultiplexer_FailAllWakesEveryCaller(t *testing.T) {
	m := newTestMux(t, 10*time.Second)

	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() {
			_, err := m.Call(context.Background(), "tools/call", nil)
			errs <- err
		}()
	}

	// Wait until all three are registered.
	deadline := time.Now().Add(2 * time.Second)
	for m.InFlight() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	m.FailAll(ErrSessionClosed)

	for i := 0; i < 3; i++ {
		select {
		case err := <-errs:
			if !errors.Is(err, ErrSessionClosed) {
				t.Errorf("expected ErrSessionClosed, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("pending caller left hanging after FailAll")
		}
	}

	// Sends after FailAll are rejected with the same reason.
	if _, err := m.Send("ping", nil); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed on Send after FailAll, got %v", err)
	}
	if err := m.Notify("notifications/initialized", nil); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed on Notify after FailAll, got %v", err)
	}
}

func TestMultiplexer_CallTimeout(t *testing.T) {
	m := newTestMux(t, 30*time.Millisecond)

	start := time.Now()
	_, err := m.Call(context.Background(), "tools/call", nil)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took too long: %v", elapsed)
	}

	// The abandoned entry is gone; a late reply is a logged anomaly.
	if m.InFlight() != 0 {
		t.Errorf("expected empty table after timeout, got %d", m.InFlight())
	}
	m.Resolve(1, json.RawMessage(`{}`))
	if _, _, anomalies := m.Stats(); anomalies != 1 {
		t.Errorf("expected late reply to count as anomaly, got %d", anomalies)
	}
}

func TestMultiplexer_CallContextCancel(t *testing.T) {
	m := newTestMux(t, 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.Call(ctx, "tools/call", nil)
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for m.InFlight() < 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller left hanging")
	}

	if m.InFlight() != 0 {
		t.Errorf("expected empty table after cancel, got %d", m.InFlight())
	}
}

func TestMultiplexer_ConcurrentSendResolveRace(t *testing.T) {
	m := newTestMux(t, 5*time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := m.Send("tools/call", nil)
			if err != nil {
				t.Errorf("Send: %v", err)
				return
			}
			// Resolve from another goroutine, racing the registration path.
			go m.Resolve(p.id, json.RawMessage(`{}`))
			if out := <-p.ch; out.err != nil {
				t.Errorf("id %d: %v", p.id, out.err)
			}
		}()
	}
	wg.Wait()

	if _, _, anomalies := m.Stats(); anomalies != 0 {
		t.Errorf("expected no anomalies, got %d", anomalies)
	}
}
