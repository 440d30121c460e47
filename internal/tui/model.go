// Package tui implements the live session monitor.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hedworth/pipeagent/internal/agent"
	"github.com/hedworth/pipeagent/internal/events"
	"github.com/hedworth/pipeagent/internal/tui/theme"
)

// Model is the root Bubble Tea model for the session monitor. It renders one
// running session from events published on its bus.
type Model struct {
	// Dependencies
	session *agent.Session
	bus     *events.Bus

	// UI state
	theme  theme.Theme
	keys   KeyBindings
	width  int
	height int

	spinner  spinner.Model
	logPanel LogPanelModel

	// Session state tracking, fed from the event stream
	state         string
	tools         []agent.Tool
	lastHeartbeat *events.HeartbeatResult
	heartbeatAt   time.Time
	metrics       *events.MetricsSnapshot
	notifications int

	// Event channel for Bubble Tea integration
	eventCh chan events.Event
}

// NewModel creates a monitor model for a started session.
func NewModel(session *agent.Session, bus *events.Bus) Model {
	th := theme.New()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = th.Primary

	m := Model{
		session:  session,
		bus:      bus,
		theme:    th,
		keys:     NewKeyBindings(),
		spinner:  sp,
		logPanel: NewLogPanel(th),
		state:    session.State().String(),
		eventCh:  make(chan events.Event, 100),
	}

	if tools, err := session.ListTools(); err == nil {
		m.tools = tools
	}

	// Subscribe to events
	bus.Subscribe(func(e events.Event) {
		select {
		case m.eventCh <- e:
		default:
			// Channel full, drop event
		}
	})

	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent())
}

// waitForEvent returns a command that waits for the next event.
func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return <-m.eventCh
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.CtrlC), key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.ToggleLogs):
			m.logPanel.SetVisible(!m.logPanel.IsVisible())
			m.updateLayout()
			return m, nil

		case key.Matches(msg, m.keys.FollowLogs):
			if m.logPanel.IsVisible() {
				m.logPanel.ToggleFollow()
			}
			return m, nil
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case events.Event:
		m.handleEvent(msg)
		cmds = append(cmds, m.waitForEvent())
	}

	if m.logPanel.IsVisible() {
		var cmd tea.Cmd
		m.logPanel, cmd = m.logPanel.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleEvent(e events.Event) {
	switch e.Type {
	case events.TypeStateChanged:
		m.state = e.ToState
		if m.state == agent.StateReady.String() {
			if tools, err := m.session.ListTools(); err == nil {
				m.tools = tools
			}
		}

	case events.TypeHeartbeat:
		m.lastHeartbeat = e.Heartbeat
		m.heartbeatAt = e.Timestamp

	case events.TypeMetrics:
		m.metrics = e.Metrics

	case events.TypeNotification:
		m.notifications++

	case events.TypeStderrLine:
		m.logPanel.Append(e.Line)
	}
}

func (m *Model) updateLayout() {
	logHeight := 0
	if m.logPanel.IsVisible() {
		logHeight = 10
	}

	contentWidth := m.width - 4
	if contentWidth < 10 {
		contentWidth = 10
	}

	if m.logPanel.IsVisible() {
		m.logPanel.SetSize(contentWidth, logHeight)
	}
}

// View implements tea.Model.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderSessionPane())
	sections = append(sections, m.renderToolsPane())

	if m.logPanel.IsVisible() {
		sections = append(sections, m.logPanel.View())
	}

	sections = append(sections, m.renderStatusBar())

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)
	return m.theme.App.Render(content)
}

func (m Model) renderHeader() string {
	title := m.theme.Title.Render("pipeagent monitor")
	pill := m.theme.StatePill(m.state)
	if m.state == agent.StateInitializing.String() {
		pill = m.spinner.View() + " " + pill
	}

	padding := m.width - lipgloss.Width(title) - lipgloss.Width(pill) - 4
	if padding < 1 {
		padding = 1
	}

	return title + strings.Repeat(" ", padding) + pill
}

func (m Model) renderSessionPane() string {
	serverName, serverVersion := m.session.ServerInfo()

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", m.theme.Muted.Render("session"), m.session.ID())
	if serverName != "" {
		fmt.Fprintf(&b, "%s %s %s (%s)\n",
			m.theme.Muted.Render("server "), serverName, serverVersion,
			m.session.ProtocolVersion())
	}

	hb := m.theme.Faint.Render("no heartbeat yet")
	if m.lastHeartbeat != nil {
		if m.lastHeartbeat.OK {
			hb = fmt.Sprintf("%s %s ago (%s)",
				m.theme.HeartbeatIcon(true),
				time.Since(m.heartbeatAt).Round(time.Second),
				m.lastHeartbeat.Latency.Round(time.Millisecond))
		} else {
			hb = fmt.Sprintf("%s %s", m.theme.HeartbeatIcon(false), m.lastHeartbeat.Error)
		}
	}
	fmt.Fprintf(&b, "%s %s", m.theme.Muted.Render("ping   "), hb)

	if m.metrics != nil {
		fmt.Fprintf(&b, "\n%s up %s, %d sent, %d matched, %d in flight",
			m.theme.Muted.Render("stats  "),
			m.metrics.Uptime.Round(time.Second),
			m.metrics.RequestsSent,
			m.metrics.ResponsesMatched,
			m.metrics.InFlight)
		if m.metrics.ProtocolAnomalies > 0 || m.metrics.HeartbeatFailures > 0 {
			fmt.Fprintf(&b, "\n%s %s",
				m.theme.Muted.Render("       "),
				m.theme.Warn.Render(fmt.Sprintf("%d anomalies, %d heartbeat failures",
					m.metrics.ProtocolAnomalies, m.metrics.HeartbeatFailures)))
		}
	}
	if m.notifications > 0 {
		fmt.Fprintf(&b, "\n%s %d received", m.theme.Muted.Render("notify "), m.notifications)
	}

	return m.theme.RenderPane("Session", b.String(), m.width-4, false)
}

func (m Model) renderToolsPane() string {
	if len(m.tools) == 0 {
		return m.theme.RenderPane("Tools", m.theme.Faint.Render("No tools advertised."), m.width-4, false)
	}

	var b strings.Builder
	for i, tool := range m.tools {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.theme.Primary.Render(tool.Name))
		if tool.Description != "" {
			b.WriteString("  ")
			b.WriteString(m.theme.Muted.Render(tool.Description))
		}
	}

	title := fmt.Sprintf("Tools (%d)", len(m.tools))
	return m.theme.RenderPane(title, b.String(), m.width-4, false)
}

func (m Model) renderStatusBar() string {
	left := m.state
	if m.metrics != nil {
		left = fmt.Sprintf("%s | up %s", m.state, m.metrics.Uptime.Round(time.Second))
	}

	keys := "l:logs  f:follow  q:quit"

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(keys) - 4
	if padding < 1 {
		padding = 1
	}

	return m.theme.StatusBar.Render(left + strings.Repeat(" ", padding) + keys)
}
