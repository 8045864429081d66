package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/iammorganparry/timeline/internal/timeline"
)

// KeyMap defines the key bindings for the game
type KeyMap struct {
	// Navigation
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding

	// Actions
	Enter   key.Binding
	Era     key.Binding
	Reset   key.Binding
	Export  key.Binding
	Archive key.Binding
	Help    key.Binding
	Quit    key.Binding
	// Interrupt quits from any screen, including while typing a year.
	Interrupt key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Era: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "AD/BC"),
		),
		Reset: key.NewBinding(
			key.WithKeys("r", "ctrl+r"),
			key.WithHelp("r", "new game"),
		),
		Export: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "export PDF"),
		),
		Archive: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "save chronicle"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more keys"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc"),
			key.WithHelp("q", "quit"),
		),
		Interrupt: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the status bar
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Enter, k.Era, k.Up, k.Down, k.Reset, k.Export, k.Archive, k.Help, k.Quit}
}

// FullHelp returns the bindings shown when help is expanded
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Enter, k.Era, k.Reset},
		{k.Export, k.Archive, k.Help, k.Quit},
	}
}

// screen describes what the player can do right now.
type screen struct {
	phase      timeline.Phase
	busy       bool
	failed     bool
	canExport  bool
	canArchive bool
}

// forScreen returns a copy of the key map with bindings that do nothing on
// the current screen disabled, so help only lists live keys. Matching still
// uses the full map.
func (k KeyMap) forScreen(sc screen) KeyMap {
	if sc.phase == timeline.PhaseSelectingYear {
		for _, b := range []*key.Binding{&k.Up, &k.Down, &k.PageUp, &k.PageDown, &k.Export, &k.Archive, &k.Help} {
			b.SetEnabled(false)
		}
		k.Enter.SetHelp("enter", "submit")
		k.Reset.SetHelp("ctrl+r", "new game")
		k.Quit.SetHelp("esc", "quit")
		if sc.busy || sc.failed {
			k.Enter.SetEnabled(false)
			k.Era.SetEnabled(false)
		}
		return k
	}

	k.Era.SetEnabled(false)
	if sc.busy || sc.failed || sc.phase == timeline.PhaseGameOver {
		k.Up.SetEnabled(false)
		k.Down.SetEnabled(false)
		k.Enter.SetEnabled(false)
	}
	k.Export.SetEnabled(sc.canExport)
	k.Archive.SetEnabled(sc.canArchive)
	return k
}
