package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyBindings holds the monitor's keybindings.
type KeyBindings struct {
	Quit  key.Binding
	CtrlC key.Binding

	// Log panel
	ToggleLogs key.Binding
	FollowLogs key.Binding

	// Scrolling (forwarded to the log viewport)
	Up   key.Binding
	Down key.Binding
}

// NewKeyBindings creates the default keybindings.
func NewKeyBindings() KeyBindings {
	return KeyBindings{
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		CtrlC: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "force quit"),
		),
		ToggleLogs: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "logs"),
		),
		FollowLogs: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "follow"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
	}
}
