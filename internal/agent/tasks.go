package agent

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/hedworth/pipeagent/internal/events"
)

// heartbeatLoop pings the peer at a fixed interval through the same
// multiplexer path as foreground calls. A failed exchange is logged,
// published, and retried on the next tick; it never fails foreground calls.
// Only the listener's EOF path tears the session down.
func (s *Session) heartbeatLoop(ctx context.Context) {
	defer s.tasks.Done()

	ticker := time.NewTicker(s.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		start := time.Now()
		_, err := s.mux.Call(ctx, "ping", nil)
		latency := time.Since(start)

		if err != nil {
			if errors.Is(err, ErrSessionClosed) || errors.Is(err, context.Canceled) {
				return
			}
			s.hbMu.Lock()
			s.hbFailures++
			s.hbMu.Unlock()
			log.Printf("session %s: heartbeat failed: %v", s.id, err)
			s.bus.Publish(events.NewHeartbeatEvent(s.id, events.HeartbeatResult{
				Latency: latency,
				Error:   err.Error(),
			}))
			continue
		}

		s.bus.Publish(events.NewHeartbeatEvent(s.id, events.HeartbeatResult{
			OK:      true,
			Latency: latency,
		}))
	}
}

// metricsLoop publishes a counters snapshot at a fixed interval. Publishing
// is local; it cannot fail the transport.
func (s *Session) metricsLoop(ctx context.Context) {
	defer s.tasks.Done()

	ticker := time.NewTicker(s.opts.MetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.bus.Publish(events.NewMetricsEvent(s.id, s.Snapshot()))
	}
}
