package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hedworth/pipeagent/internal/agent"
	"github.com/hedworth/pipeagent/internal/events"
)

// newTestModel creates a Model over an unstarted session. Tests drive state by
// feeding events directly, no child process involved.
func newTestModel(t *testing.T) Model {
	t.Helper()

	bus := events.NewBus()
	t.Cleanup(bus.Close)

	session := agent.New(agent.Options{
		Command: "true",
		Bus:     bus,
	})
	return NewModel(session, bus)
}

// updateModel calls Update and type-asserts the returned model.
func updateModel(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	newModel, cmd := m.Update(msg)
	out, ok := newModel.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", newModel)
	}
	return out, cmd
}

func TestModel_QuitKeys(t *testing.T) {
	for _, msg := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
		{Type: tea.KeyCtrlC},
	} {
		m := newTestModel(t)
		_, cmd := updateModel(t, m, msg)
		if cmd == nil {
			t.Fatalf("key %v: expected a command", msg)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("key %v: expected QuitMsg, got %T", msg, cmd())
		}
	}
}

func TestModel_ToggleLogPanel(t *testing.T) {
	m := newTestModel(t)
	m, _ = updateModel(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})

	if m.logPanel.IsVisible() {
		t.Fatal("log panel should start hidden")
	}

	m, _ = updateModel(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'l'}})
	if !m.logPanel.IsVisible() {
		t.Error("expected log panel visible after 'l'")
	}

	m, _ = updateModel(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'l'}})
	if m.logPanel.IsVisible() {
		t.Error("expected log panel hidden after second 'l'")
	}
}

func TestModel_FollowToggleOnlyWhenVisible(t *testing.T) {
	m := newTestModel(t)
	m, _ = updateModel(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})

	// Hidden panel ignores 'f'
	m, _ = updateModel(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'f'}})
	if !m.logPanel.IsFollowing() {
		t.Error("follow should stay on while panel is hidden")
	}

	m, _ = updateModel(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'l'}})
	m, _ = updateModel(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'f'}})
	if m.logPanel.IsFollowing() {
		t.Error("expected follow off after 'f' with panel visible")
	}
}

func TestModel_StateChangedEvent(t *testing.T) {
	m := newTestModel(t)

	m, _ = updateModel(t, m, events.NewStateChangedEvent("s1", "uninitialized", "initializing"))
	if m.state != "initializing" {
		t.Errorf("state = %q, want initializing", m.state)
	}

	m, _ = updateModel(t, m, events.NewStateChangedEvent("s1", "initializing", "ready"))
	if m.state != "ready" {
		t.Errorf("state = %q, want ready", m.state)
	}
}

func TestModel_HeartbeatAndMetricsEvents(t *testing.T) {
	m := newTestModel(t)

	m, _ = updateModel(t, m, events.NewHeartbeatEvent("s1", events.HeartbeatResult{
		OK:      true,
		Latency: 3 * time.Millisecond,
	}))
	if m.lastHeartbeat == nil || !m.lastHeartbeat.OK {
		t.Fatal("expected a successful heartbeat recorded")
	}

	m, _ = updateModel(t, m, events.NewMetricsEvent("s1", events.MetricsSnapshot{
		RequestsSent:     7,
		ResponsesMatched: 7,
		State:            "ready",
	}))
	if m.metrics == nil || m.metrics.RequestsSent != 7 {
		t.Fatal("expected metrics snapshot recorded")
	}
}

func TestModel_StderrEventsFeedLogPanel(t *testing.T) {
	m := newTestModel(t)
	m, _ = updateModel(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})

	m, _ = updateModel(t, m, events.NewStderrLineEvent("s1", "warming up"))
	m, _ = updateModel(t, m, events.NewStderrLineEvent("s1", "listening"))

	if got := m.logPanel.Len(); got != 2 {
		t.Errorf("log panel has %d entries, want 2", got)
	}
}

func TestModel_NotificationCount(t *testing.T) {
	m := newTestModel(t)

	m, _ = updateModel(t, m, events.NewNotificationEvent("s1", "notifications/progress", nil))
	m, _ = updateModel(t, m, events.NewNotificationEvent("s1", "notifications/progress", nil))

	if m.notifications != 2 {
		t.Errorf("notifications = %d, want 2", m.notifications)
	}
}

func TestModel_ViewRendersWithoutSize(t *testing.T) {
	m := newTestModel(t)
	if got := m.View(); got != "Loading..." {
		t.Errorf("View before WindowSizeMsg = %q", got)
	}
}

func TestModel_ViewRendersPanels(t *testing.T) {
	m := newTestModel(t)
	m, _ = updateModel(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})
	m, _ = updateModel(t, m, events.NewStateChangedEvent("s1", "uninitialized", "initializing"))

	view := m.View()
	if view == "" {
		t.Fatal("expected non-empty view")
	}
}
