package events

import "sync"

// Handler is a function that handles events.
type Handler func(Event)

// Bus is a goroutine-safe fan-out for session events. Publishing never blocks
// the session's hot paths: events go through a buffered channel and are
// dropped if the buffer is full.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler

	ch   chan Event
	done chan struct{}
	once sync.Once
}

// NewBus creates a new event bus and starts its dispatch loop.
func NewBus() *Bus {
	b := &Bus{
		handlers: make(map[int]Handler),
		ch:       make(chan Event, 128),
		done:     make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Bus) run() {
	for {
		select {
		case ev := <-b.ch:
			b.dispatch(ev)
		case <-b.done:
			return
		}
	}
}

func (b *Bus) dispatch(ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Subscribe registers a handler and returns an unsubscribe function.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// Publish enqueues an event for all subscribers. Non-blocking: if the bus
// buffer is full the event is dropped.
func (b *Bus) Publish(ev Event) {
	select {
	case b.ch <- ev:
	default:
	}
}

// Close shuts down the dispatch loop. Safe to call more than once.
func (b *Bus) Close() {
	b.once.Do(func() { close(b.done) })
}
