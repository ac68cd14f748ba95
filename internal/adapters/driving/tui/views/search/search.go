// Package search provides the main retrieval view for the TUI.
package search

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/cliniq/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/cliniq/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/cliniq/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/cliniq/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/cliniq/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/cliniq/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driving"
)

// View represents the retrieval view with query input, sentence list and
// status bar.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.QueryInput
	list      *list.SentenceList
	statusbar *status.Bar

	retrieval driving.RetrievalService
	ctx       context.Context

	// chunkK and sentenceK are passed through to the retrieval service;
	// zero selects its configured defaults.
	chunkK    int
	sentenceK int

	result     *domain.RetrievalResult
	width      int
	height     int
	ready      bool
	err        error
	focusInput bool // true = typing a query, false = navigating results
}

// NewView creates a new retrieval view.
func NewView(s *styles.Styles, km *keymap.KeyMap, retrieval driving.RetrievalService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:     s,
		keymap:     km,
		input:      input.NewQueryInput(s),
		list:       list.NewSentenceList(s),
		statusbar:  status.NewBar(s, km),
		retrieval:  retrieval,
		ctx:        context.Background(),
		width:      80,
		height:     24,
		focusInput: true,
	}
}

// WithContext sets the context for retrieval calls.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// WithLimits sets the candidate chunk and ranked sentence counts.
func (v *View) WithLimits(chunkK, sentenceK int) *View {
	v.chunkK = chunkK
	v.sentenceK = sentenceK
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the retrieval view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.RetrievalCompleted:
		v.handleRetrievalCompleted(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.setError(msg.Err)
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		if v.focusInput && !v.list.IsEmpty() {
			v.focusInput = false
			v.input.Blur()
			return v, nil
		}
		return v, func() tea.Msg { return messages.Quit{} }
	}

	if v.focusInput {
		if msg.Type == tea.KeyEnter {
			return v, v.submit()
		}
		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}

	switch msg.String() {
	case "enter":
		sentence := v.list.SelectedSentence()
		if sentence == nil {
			return v, nil
		}
		req := messages.ChunkRequested{ChunkID: sentence.ChunkID, SentenceID: sentence.SentenceID}
		return v, func() tea.Msg { return req }
	case "n", "/":
		v.focusInput = true
		v.input.SetValue("")
		return v, v.input.Focus()
	case "?":
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewHelp} }
	case "q":
		return v, func() tea.Msg { return messages.Quit{} }
	}

	v.list, _ = v.list.Update(msg)
	return v, nil
}

// submit parses the input and starts a retrieval.
func (v *View) submit() tea.Cmd {
	text, filter, err := v.input.Parse()
	if err != nil {
		v.setError(err)
		return nil
	}
	if text == "" {
		return nil
	}

	v.err = nil
	v.statusbar.SetState(status.StateRetrieving)
	v.statusbar.SetMessage("")
	return v.retrieve(text, filter)
}

// retrieve runs a two-pass retrieval off the update loop.
func (v *View) retrieve(query string, filter domain.ChunkFilter) tea.Cmd {
	return func() tea.Msg {
		if v.retrieval == nil {
			return messages.ErrorOccurred{Err: ErrNoRetrievalService}
		}
		result, err := v.retrieval.RetrieveText(v.ctx, query, filter, v.chunkK, v.sentenceK)
		return messages.RetrievalCompleted{Query: query, Result: result, Err: err}
	}
}

func (v *View) handleRetrievalCompleted(msg messages.RetrievalCompleted) {
	if msg.Err != nil {
		v.setError(msg.Err)
		return
	}

	v.err = nil
	v.result = msg.Result
	v.list.SetSentences(msg.Result.Sentences)
	v.statusbar.SetState(status.StateResults)
	v.statusbar.SetMessage("")
	v.statusbar.SetResultCount(len(msg.Result.Sentences))
	v.statusbar.SetOmitted(len(msg.Result.Omitted))

	if !v.list.IsEmpty() {
		v.focusInput = false
		v.input.Blur()
	}
}

func (v *View) setError(err error) {
	v.err = err
	v.statusbar.SetState(status.StateError)
	v.statusbar.SetMessage(err.Error())
}

// View renders the retrieval view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 10)
	sections = append(sections, v.styles.Title.Render("cliniq"), "", v.input.View(), "")

	if v.err != nil {
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()), "")
	}

	if v.result != nil && v.result.Partial {
		sections = append(sections, v.styles.Warning.Render(fmt.Sprintf(
			"Partial result: %d candidate chunk(s) omitted", len(v.result.Omitted))), "")
	}

	sections = append(sections, v.list.View(), "", v.statusbar.View())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	v.input.SetWidth(width)
	v.list.SetDimensions(width, height-10) // header, input and status
	v.statusbar.SetWidth(width)
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}

// Query returns the raw query input.
func (v *View) Query() string {
	return v.input.Value()
}

// SetQuery sets the query input.
func (v *View) SetQuery(query string) {
	v.input.SetValue(query)
}

// Result returns the last retrieval result.
func (v *View) Result() *domain.RetrievalResult {
	return v.result
}

// Sentences returns the ranked sentences on display.
func (v *View) Sentences() []domain.RetrievedSentence {
	return v.list.Sentences()
}

// SelectedIndex returns the index of the selected sentence.
func (v *View) SelectedIndex() int {
	return v.list.Selected()
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// InputFocused returns whether the input has focus.
func (v *View) InputFocused() bool {
	return v.focusInput
}

// Reset returns the view to an empty query.
func (v *View) Reset() {
	v.focusInput = true
	v.input.Focus()
	v.input.SetValue("")
	v.list.SetSentences(nil)
	v.result = nil
	v.err = nil
	v.statusbar.Clear()
}
