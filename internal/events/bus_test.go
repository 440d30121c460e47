package events

import (
	"sync"
	"testing"
	"time"
)

func TestBus_PublishReachesSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	got := make(chan Event, 1)
	bus.Subscribe(func(e Event) { got <- e })

	bus.Publish(NewStateChangedEvent("s1", "initializing", "ready"))

	select {
	case e := <-got:
		if e.Type != TypeStateChanged {
			t.Errorf("expected state-changed, got %v", e.Type)
		}
		if e.FromState != "initializing" || e.ToState != "ready" {
			t.Errorf("unexpected transition: %s -> %s", e.FromState, e.ToState)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var mu sync.Mutex
	count := 0
	unsub := bus.Subscribe(func(Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	delivered := make(chan struct{}, 1)
	bus.Subscribe(func(Event) {
		select {
		case delivered <- struct{}{}:
		default:
		}
	})

	bus.Publish(NewStderrLineEvent("s1", "one"))
	<-delivered

	unsub()
	bus.Publish(NewStderrLineEvent("s1", "two"))
	<-delivered

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("expected 1 delivery before unsubscribe, got %d", count)
	}
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	// No subscribers draining; overflow the buffer and make sure Publish
	// returns anyway.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			bus.Publish(NewStderrLineEvent("s1", "line"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked")
	}
}

func TestBus_MultipleSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	a := make(chan Event, 1)
	b := make(chan Event, 1)
	bus.Subscribe(func(e Event) { a <- e })
	bus.Subscribe(func(e Event) { b <- e })

	bus.Publish(NewHeartbeatEvent("s1", HeartbeatResult{OK: true, Latency: time.Millisecond}))

	for name, ch := range map[string]chan Event{"a": a, "b": b} {
		select {
		case e := <-ch:
			if e.Heartbeat == nil || !e.Heartbeat.OK {
				t.Errorf("subscriber %s: unexpected event %+v", name, e)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("subscriber %s never received event", name)
		}
	}
}
