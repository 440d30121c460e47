package agent

import (
	"errors"
	"fmt"
	"log"

	"github.com/hedworth/pipeagent/internal/events"
	"github.com/hedworth/pipeagent/internal/rpc"
)

// listen is the single always-running reader of the inbound stream. It is the
// only goroutine permitted to call ReadNext. Responses go to the multiplexer,
// notifications to the event bus; EOF or any other stream error is the fatal
// signal that fails all pending requests and closes the session.
//
// Fulfilment channels are buffered, so a slow foreground caller can never
// block this loop.
func (s *Session) listen() {
	defer s.tasks.Done()

	for {
		env, err := s.codec.ReadNext()
		if err != nil {
			if errors.Is(err, rpc.ErrMalformedFrame) {
				// NDJSON resyncs at the next newline; skip the bad frame.
				log.Printf("session %s: %v, skipping frame", s.id, err)
				continue
			}
			reason := fmt.Errorf("connection closed: %w", ErrSessionClosed)
			log.Printf("session %s: listener stopping: %v", s.id, err)
			s.mux.FailAll(reason)
			s.fatal()
			return
		}

		switch {
		case env.IsResponse():
			if env.Error != nil {
				s.mux.Fail(*env.ID, env.Error)
			} else {
				s.mux.Resolve(*env.ID, env.Result)
			}

		case env.IsNotification():
			s.bus.Publish(events.NewNotificationEvent(s.id, env.Method, env.Params))

		default:
			// A request from the peer. Not part of the protocol surface we
			// speak; ignore it rather than answering.
			log.Printf("session %s: ignoring peer request %q (id %d)", s.id, env.Method, *env.ID)
		}
	}
}
