// Package keymap defines keybindings for the TUI.
package keymap

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines all keybindings for the TUI.
type KeyMap struct {
	Quit key.Binding
	Help key.Binding

	// Back returns to the previous view.
	Back key.Binding

	// Search submits the query.
	Search key.Binding

	Up   key.Binding
	Down key.Binding

	// Open shows the chunk behind the selected sentence.
	Open key.Binding

	// NewSearch focuses the query input from the results.
	NewSearch key.Binding

	// PrevChunk and NextChunk walk the chunks of one artifact.
	PrevChunk key.Binding
	NextChunk key.Binding
}

// DefaultKeyMap returns the default keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Search: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "search"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open chunk"),
		),
		NewSearch: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "new search"),
		),
		PrevChunk: key.NewBinding(
			key.WithKeys("["),
			key.WithHelp("[", "previous chunk"),
		),
		NextChunk: key.NewBinding(
			key.WithKeys("]"),
			key.WithHelp("]", "next chunk"),
		),
	}
}

// ShortHelp returns the bindings shown when nothing is selected.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Search, k.Quit, k.Help}
}

// ResultsHelp returns the bindings shown over a result list.
func (k *KeyMap) ResultsHelp() []key.Binding {
	return []key.Binding{k.NewSearch, k.Up, k.Open, k.Back}
}

// DetailHelp returns the bindings shown in the chunk view.
func (k *KeyMap) DetailHelp() []key.Binding {
	return []key.Binding{k.Up, k.PrevChunk, k.NextChunk, k.Back}
}

// FullHelp returns the full list of keybindings for the help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Open},
		{k.Search, k.NewSearch, k.Back},
		{k.PrevChunk, k.NextChunk},
		{k.Help, k.Quit},
	}
}

// Matches checks if a key string matches a binding.
func Matches(keyStr string, binding key.Binding) bool {
	for _, k := range binding.Keys() {
		if k == keyStr {
			return true
		}
	}
	return false
}
