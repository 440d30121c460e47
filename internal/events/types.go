// Package events provides the event stream published by an agent session.
// The bus is the pluggable sink for peer notifications, heartbeat results,
// metrics snapshots, state transitions, and child stderr output.
package events

import (
	"encoding/json"
	"time"
)

// Type identifies the kind of event.
type Type int

const (
	TypeStateChanged Type = iota
	TypeNotification
	TypeHeartbeat
	TypeMetrics
	TypeStderrLine
)

func (t Type) String() string {
	switch t {
	case TypeStateChanged:
		return "state-changed"
	case TypeNotification:
		return "notification"
	case TypeHeartbeat:
		return "heartbeat"
	case TypeMetrics:
		return "metrics"
	case TypeStderrLine:
		return "stderr-line"
	default:
		return "unknown"
	}
}

// Notification is an unsolicited message pushed by the peer.
type Notification struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// HeartbeatResult reports the outcome of one heartbeat exchange.
type HeartbeatResult struct {
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// MetricsSnapshot is a periodic view of session counters.
type MetricsSnapshot struct {
	Uptime            time.Duration `json:"uptime"`
	RequestsSent      int64         `json:"requestsSent"`
	ResponsesMatched  int64         `json:"responsesMatched"`
	ProtocolAnomalies int64         `json:"protocolAnomalies"`
	HeartbeatFailures int64         `json:"heartbeatFailures"`
	InFlight          int           `json:"inFlight"`
	State             string        `json:"state"`
}

// Event is a single entry on the session's event stream. Exactly one of the
// payload pointers is set, selected by Type.
type Event struct {
	Type      Type
	SessionID string
	Timestamp time.Time

	FromState string // TypeStateChanged
	ToState   string // TypeStateChanged

	Notification *Notification    // TypeNotification
	Heartbeat    *HeartbeatResult // TypeHeartbeat
	Metrics      *MetricsSnapshot // TypeMetrics

	Line string // TypeStderrLine
}

// NewStateChangedEvent records a session state transition.
func NewStateChangedEvent(sessionID, from, to string) Event {
	return Event{
		Type:      TypeStateChanged,
		SessionID: sessionID,
		Timestamp: time.Now(),
		FromState: from,
		ToState:   to,
	}
}

// NewNotificationEvent records an unsolicited peer message.
func NewNotificationEvent(sessionID, method string, params json.RawMessage) Event {
	return Event{
		Type:         TypeNotification,
		SessionID:    sessionID,
		Timestamp:    time.Now(),
		Notification: &Notification{Method: method, Params: params},
	}
}

// NewHeartbeatEvent records one heartbeat outcome.
func NewHeartbeatEvent(sessionID string, result HeartbeatResult) Event {
	return Event{
		Type:      TypeHeartbeat,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Heartbeat: &result,
	}
}

// NewMetricsEvent records a periodic metrics snapshot.
func NewMetricsEvent(sessionID string, snap MetricsSnapshot) Event {
	return Event{
		Type:      TypeMetrics,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Metrics:   &snap,
	}
}

// NewStderrLineEvent records one line of the child's stderr.
func NewStderrLineEvent(sessionID, line string) Event {
	return Event{
		Type:      TypeStderrLine,
		SessionID: sessionID,
		Timestamp: time.Now(),
		Line:      line,
	}
}
