// Package input provides text input components for the TUI.
package input

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/cliniq/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/cliniq/internal/core/domain"
)

// QueryInput wraps a bubbles textinput for record queries. Besides free
// text it accepts scope tokens: patient:, artifact:, type:, from: and to:.
type QueryInput struct {
	textinput textinput.Model
	styles    *styles.Styles
	width     int
}

// NewQueryInput creates a new query input component.
func NewQueryInput(s *styles.Styles) *QueryInput {
	if s == nil {
		s = styles.DefaultStyles()
	}

	ti := textinput.New()
	ti.Placeholder = "metformin dose patient:p-001 from:2024-01-01"
	ti.Focus()
	ti.CharLimit = 512
	ti.Width = 50

	return &QueryInput{
		textinput: ti,
		styles:    s,
		width:     50,
	}
}

// Init initialises the query input.
func (q *QueryInput) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles input messages.
func (q *QueryInput) Update(msg tea.Msg) (*QueryInput, tea.Cmd) {
	var cmd tea.Cmd
	q.textinput, cmd = q.textinput.Update(msg)
	return q, cmd
}

// View renders the query input.
func (q *QueryInput) View() string {
	label := q.styles.Title.Render("Query: ")
	field := q.styles.InputField.Render(q.textinput.View())
	//nolint:misspell // lipgloss.Center is the correct constant from the library
	return lipgloss.JoinHorizontal(lipgloss.Center, label, field)
}

// Value returns the raw input value.
func (q *QueryInput) Value() string {
	return q.textinput.Value()
}

// SetValue sets the input value.
func (q *QueryInput) SetValue(value string) {
	q.textinput.SetValue(value)
}

// Parse splits the current value into query text and a chunk filter.
func (q *QueryInput) Parse() (string, domain.ChunkFilter, error) {
	return ParseQuery(q.Value())
}

// ParseQuery separates scope tokens from free text. Unknown key:value
// tokens stay part of the text, so "bp:120/80" is searched as written.
func ParseQuery(raw string) (string, domain.ChunkFilter, error) {
	var (
		filter domain.ChunkFilter
		words  []string
	)

	for _, field := range strings.Fields(raw) {
		key, value, ok := strings.Cut(field, ":")
		if !ok || value == "" {
			words = append(words, field)
			continue
		}

		switch strings.ToLower(key) {
		case "patient":
			filter.PatientID = value
		case "artifact":
			filter.ArtifactID = value
		case "type":
			filter.ArtifactType = value
		case "from":
			day, err := domain.ParseDay(value)
			if err != nil {
				return "", domain.ChunkFilter{}, err
			}
			filter.DateFrom = day
		case "to":
			day, err := domain.ParseDay(value)
			if err != nil {
				return "", domain.ChunkFilter{}, err
			}
			filter.DateTo = day
		default:
			words = append(words, field)
		}
	}

	return strings.Join(words, " "), filter, nil
}

// Focus sets focus on the input.
func (q *QueryInput) Focus() tea.Cmd {
	return q.textinput.Focus()
}

// Blur removes focus from the input.
func (q *QueryInput) Blur() {
	q.textinput.Blur()
}

// Focused returns whether the input is focused.
func (q *QueryInput) Focused() bool {
	return q.textinput.Focused()
}

// SetWidth sets the width of the input.
func (q *QueryInput) SetWidth(width int) {
	q.width = width
	// Account for label and padding
	inputWidth := width - 10
	if inputWidth < 20 {
		inputWidth = 20
	}
	q.textinput.Width = inputWidth
}

// Width returns the current width.
func (q *QueryInput) Width() int {
	return q.width
}

// Reset clears the input.
func (q *QueryInput) Reset() {
	q.textinput.Reset()
}
