package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/hedworth/pipeagent/internal/tui/theme"
)

// logEntry is a single captured stderr line.
type logEntry struct {
	Line      string
	Timestamp time.Time
}

const maxLogEntries = 1000

// LogPanelModel displays the child's stderr output.
type LogPanelModel struct {
	theme    theme.Theme
	viewport viewport.Model
	entries  []logEntry
	follow   bool
	visible  bool
	width    int
	height   int
}

// NewLogPanel creates a new log panel.
func NewLogPanel(th theme.Theme) LogPanelModel {
	vp := viewport.New(0, 0)
	return LogPanelModel{
		theme:    th,
		viewport: vp,
		entries:  make([]logEntry, 0, maxLogEntries),
		follow:   true,
	}
}

// SetSize sets the dimensions.
func (m *LogPanelModel) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width - 4
	m.viewport.Height = height - 3
	if m.viewport.Width < 10 {
		m.viewport.Width = 10
	}
	if m.viewport.Height < 1 {
		m.viewport.Height = 1
	}
	m.updateContent()
}

// SetVisible sets whether the panel is visible.
func (m *LogPanelModel) SetVisible(visible bool) {
	m.visible = visible
}

// IsVisible returns whether the panel is visible.
func (m LogPanelModel) IsVisible() bool {
	return m.visible
}

// ToggleFollow toggles follow mode.
func (m *LogPanelModel) ToggleFollow() {
	m.follow = !m.follow
	if m.follow {
		m.viewport.GotoBottom()
	}
}

// IsFollowing returns whether follow mode is active.
func (m LogPanelModel) IsFollowing() bool {
	return m.follow
}

// Append adds a log line.
func (m *LogPanelModel) Append(line string) {
	m.entries = append(m.entries, logEntry{Line: line, Timestamp: time.Now()})
	if len(m.entries) > maxLogEntries {
		m.entries = m.entries[len(m.entries)-maxLogEntries:]
	}

	m.updateContent()

	if m.follow {
		m.viewport.GotoBottom()
	}
}

// Len returns the number of captured lines.
func (m LogPanelModel) Len() int {
	return len(m.entries)
}

func (m *LogPanelModel) updateContent() {
	if len(m.entries) == 0 {
		m.viewport.SetContent(m.theme.Faint.Render("No output yet..."))
		return
	}

	var content strings.Builder
	for i, entry := range m.entries {
		if i > 0 {
			content.WriteString("\n")
		}

		ts := entry.Timestamp.Format("15:04:05")
		content.WriteString(m.theme.Faint.Render(ts))
		content.WriteString(" ")

		// Colorize lines that look like errors or warnings
		line := entry.Line
		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") || strings.Contains(lower, "err:") {
			content.WriteString(m.theme.Danger.Render(line))
		} else if strings.Contains(lower, "warn") {
			content.WriteString(m.theme.Warn.Render(line))
		} else {
			content.WriteString(m.theme.Base.Render(line))
		}
	}

	m.viewport.SetContent(content.String())
}

// Update implements the component update.
func (m LogPanelModel) Update(msg tea.Msg) (LogPanelModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the panel.
func (m LogPanelModel) View() string {
	if !m.visible {
		return ""
	}

	title := "stderr"
	if m.follow {
		title += " " + m.theme.Success.Render("[f]ollow")
	} else {
		title += " " + m.theme.Faint.Render("[f]ollow")
	}

	return m.theme.RenderPane(title, m.viewport.View(), m.width, false)
}
