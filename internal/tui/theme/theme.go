// Package theme provides the visual theme for the TUI.
package theme

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme holds all the styles used in the TUI.
type Theme struct {
	// Text styles
	Base  lipgloss.Style
	Muted lipgloss.Style
	Faint lipgloss.Style
	Title lipgloss.Style

	// Accent colors
	Primary lipgloss.Style
	Success lipgloss.Style
	Warn    lipgloss.Style
	Danger  lipgloss.Style

	// Layout chrome
	App lipgloss.Style

	// Status bar
	StatusBar lipgloss.Style
}

// New creates the default theme (orange accent).
func New() Theme {
	primary := lipgloss.AdaptiveColor{Light: "#EA580C", Dark: "#FB923C"} // Orange
	success := lipgloss.AdaptiveColor{Light: "#0F7B0F", Dark: "#9ECE6A"}
	warn := lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	danger := lipgloss.AdaptiveColor{Light: "#B00020", Dark: "#F7768E"}
	muted := lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A9B1D6"}
	faint := lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#565F89"}

	return Theme{
		Base:  lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#111827", Dark: "#C0CAF5"}),
		Muted: lipgloss.NewStyle().Foreground(muted),
		Faint: lipgloss.NewStyle().Foreground(faint),
		Title: lipgloss.NewStyle().Bold(true),

		Primary: lipgloss.NewStyle().Foreground(primary),
		Success: lipgloss.NewStyle().Foreground(success),
		Warn:    lipgloss.NewStyle().Foreground(warn),
		Danger:  lipgloss.NewStyle().Foreground(danger),

		App: lipgloss.NewStyle().Padding(0, 1),

		StatusBar: lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(muted),
	}
}

// StatePill renders a session state pill with background color.
func (t Theme) StatePill(state string) string {
	pill := lipgloss.NewStyle().Padding(0, 1).Bold(true)
	switch state {
	case "ready":
		return pill.Background(lipgloss.Color("#14532D")).
			Foreground(lipgloss.Color("#DCFCE7")).Render("● READY")
	case "uninitialized", "initializing":
		return pill.Background(lipgloss.Color("#713F12")).
			Foreground(lipgloss.Color("#FEF3C7")).Render("◐ INIT")
	case "closing":
		return pill.Background(lipgloss.Color("#713F12")).
			Foreground(lipgloss.Color("#FEF3C7")).Render("◐ CLOSING")
	case "closed":
		return pill.Background(lipgloss.Color("#7F1D1D")).
			Foreground(lipgloss.Color("#FEE2E2")).Render("✖ CLOSED")
	default:
		return pill.Background(lipgloss.Color("#374151")).
			Foreground(lipgloss.Color("#E5E7EB")).Render("○ " + state)
	}
}

// HeartbeatIcon returns the icon for the last heartbeat outcome.
func (t Theme) HeartbeatIcon(ok bool) string {
	if ok {
		return t.Success.Render("●")
	}
	return t.Danger.Render("✖")
}

// RenderPane renders content in a pane with btop-style header (title embedded in border).
// Example output:
//
//	╭─┤ Tools ├────────────────────────────────╮
//	│ content here                             │
//	╰──────────────────────────────────────────╯
func (t Theme) RenderPane(title, content string, width int, focused bool) string {
	// Guard against very small widths that would cause panics
	if width < 10 {
		width = 10
	}

	borderColor := lipgloss.AdaptiveColor{Light: "#D0D7DE", Dark: "#3B4261"}
	if focused {
		borderColor = lipgloss.AdaptiveColor{Light: "#EA580C", Dark: "#FB923C"}
	}

	borderStyle := lipgloss.NewStyle().Foreground(borderColor)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(borderColor)

	// Calculate widths (account for box drawing characters and padding)
	contentWidth := width - 4 // 2 for borders, 2 for padding
	if contentWidth < 1 {
		contentWidth = 1
	}

	// Build header: ╭─┤ Title ├───...───╮
	titleText := titleStyle.Render(title)
	titleWidth := lipgloss.Width(titleText)
	restWidth := width - titleWidth - 7
	if restWidth < 0 {
		restWidth = 0
	}

	header := borderStyle.Render("╭─┤ ") + titleText + borderStyle.Render(" ├"+strings.Repeat("─", restWidth)+"╮")

	// Build content with side borders
	lines := strings.Split(content, "\n")
	var body strings.Builder
	for _, line := range lines {
		lineWidth := lipgloss.Width(line)
		padding := contentWidth - lineWidth
		if padding < 0 {
			padding = 0
		}
		body.WriteString(borderStyle.Render("│ "))
		body.WriteString(line)
		body.WriteString(strings.Repeat(" ", padding))
		body.WriteString(borderStyle.Render(" │"))
		body.WriteString("\n")
	}

	// Build footer: ╰───...───╯
	footerWidth := width - 2
	if footerWidth < 0 {
		footerWidth = 0
	}
	footer := borderStyle.Render("╰" + strings.Repeat("─", footerWidth) + "╯")

	return header + "\n" + body.String() + footer
}
