// Package status provides status bar components for the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/cliniq/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/cliniq/internal/adapters/driving/tui/styles"
)

// State represents the current application state for display.
type State string

const (
	StateReady      State = "ready"
	StateRetrieving State = "retrieving"
	StateError      State = "error"
	StateResults    State = "results"
	StateDetail     State = "detail"
)

// Bar displays application status and keybinding hints.
type Bar struct {
	styles      *styles.Styles
	keymap      *keymap.KeyMap
	state       State
	message     string
	resultCount int
	omitted     int
	width       int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &Bar{
		styles: s,
		keymap: km,
		state:  StateReady,
		width:  80,
	}
}

// Init initialises the status bar.
func (s *Bar) Init() tea.Cmd {
	return nil
}

// Update is a no-op; the bar is driven through its setters.
func (s *Bar) Update(msg tea.Msg) (*Bar, tea.Cmd) {
	return s, nil
}

// View renders the status bar.
func (s *Bar) View() string {
	left := s.renderLeft()
	right := s.renderRight()

	// The style's horizontal padding takes two cells of the width.
	padding := s.width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}

	return s.styles.StatusBar.Width(s.width).Render(
		left + strings.Repeat(" ", padding) + right,
	)
}

func (s *Bar) renderLeft() string {
	switch s.state {
	case StateRetrieving:
		return s.styles.Muted.Render("Retrieving...")
	case StateError:
		if s.message != "" {
			return s.styles.Error.Render(fmt.Sprintf("Error: %s", s.message))
		}
		return s.styles.Error.Render("Error")
	case StateDetail:
		if s.message != "" {
			return s.styles.Normal.Render(s.message)
		}
		return s.styles.Normal.Render("Chunk")
	case StateReady, StateResults:
	}

	if s.message != "" {
		return s.styles.Normal.Render(s.message)
	}
	if s.resultCount == 0 {
		return s.styles.Muted.Render("Ready")
	}

	text := s.styles.Normal.Render(fmt.Sprintf("%d sentence(s)", s.resultCount))
	if s.omitted > 0 {
		text += " " + s.styles.Warning.Render(fmt.Sprintf("partial: %d chunk(s) omitted", s.omitted))
	}
	return text
}

func (s *Bar) renderRight() string {
	var bindings []key.Binding
	switch {
	case s.state == StateDetail:
		bindings = s.keymap.DetailHelp()
	case s.state == StateResults && s.resultCount > 0:
		bindings = s.keymap.ResultsHelp()
	default:
		bindings = s.keymap.ShortHelp()
	}

	hints := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return s.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetState sets the current state.
func (s *Bar) SetState(state State) {
	s.state = state
}

// State returns the current state.
func (s *Bar) State() State {
	return s.state
}

// SetMessage sets a custom message.
func (s *Bar) SetMessage(message string) {
	s.message = message
}

// Message returns the current message.
func (s *Bar) Message() string {
	return s.message
}

// SetResultCount sets the number of ranked sentences.
func (s *Bar) SetResultCount(count int) {
	s.resultCount = count
}

// ResultCount returns the number of ranked sentences.
func (s *Bar) ResultCount() int {
	return s.resultCount
}

// SetOmitted records how many candidate chunks a partial result left out.
func (s *Bar) SetOmitted(n int) {
	s.omitted = n
}

// Omitted returns the omitted chunk count.
func (s *Bar) Omitted() int {
	return s.omitted
}

// SetWidth sets the status bar width.
func (s *Bar) SetWidth(width int) {
	s.width = width
}

// Width returns the current width.
func (s *Bar) Width() int {
	return s.width
}

// Clear resets the status bar to its default state.
func (s *Bar) Clear() {
	s.state = StateReady
	s.message = ""
	s.resultCount = 0
	s.omitted = 0
}
