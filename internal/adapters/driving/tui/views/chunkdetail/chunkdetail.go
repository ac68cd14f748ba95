// Package chunkdetail provides the chunk view of the TUI: one chunk with
// its provenance, its citable sentences, and links to its neighbours.
package chunkdetail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/cliniq/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/cliniq/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/cliniq/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driving"
)

// ErrNoChunkService indicates that no chunk service was provided.
var ErrNoChunkService = errors.New("chunk service is required")

// View is the chunk detail view.
type View struct {
	styles *styles.Styles
	chunks driving.ChunkService
	ctx    context.Context

	details      *driving.ChunkDetails
	highlight    string
	scrollOffset int
	width        int
	height       int
	ready        bool
	err          error
}

// NewView creates a new chunk detail view.
func NewView(s *styles.Styles, chunks driving.ChunkService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &View{
		styles: s,
		chunks: chunks,
		ctx:    context.Background(),
		width:  80,
		height: 24,
	}
}

// WithContext sets the context used for chunk lookups.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Load returns a command that fetches a chunk's details.
func (v *View) Load(chunkID, sentenceID string) tea.Cmd {
	return func() tea.Msg {
		if v.chunks == nil {
			return messages.ChunkDetailsLoaded{ChunkID: chunkID, Err: ErrNoChunkService}
		}
		details, err := v.chunks.GetDetails(v.ctx, chunkID)
		return messages.ChunkDetailsLoaded{
			ChunkID:    chunkID,
			SentenceID: sentenceID,
			Details:    details,
			Err:        err,
		}
	}
}

// SetDetails sets the chunk to display. highlight is the ID of a sentence
// to mark, or empty.
func (v *View) SetDetails(details *driving.ChunkDetails, highlight string) {
	v.details = details
	v.highlight = highlight
	v.scrollOffset = 0
	v.err = nil
}

// SetError sets an error to display.
func (v *View) SetError(err error) {
	v.err = err
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return nil
}

// Update handles messages for the chunk detail view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.ChunkDetailsLoaded:
		if msg.Err != nil {
			v.err = msg.Err
			return v, nil
		}
		v.SetDetails(msg.Details, msg.SentenceID)
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		return v, nil
	}

	return v, nil
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if v.scrollOffset > 0 {
			v.scrollOffset--
		}
	case "down", "j":
		if v.scrollOffset < v.maxScrollOffset() {
			v.scrollOffset++
		}
	case "[":
		if v.details != nil && v.details.PreviousID != "" {
			return v, v.Load(v.details.PreviousID, "")
		}
	case "]":
		if v.details != nil && v.details.NextID != "" {
			return v, v.Load(v.details.NextID, "")
		}
	case "esc":
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewSearch}
		}
	}

	return v, nil
}

// visibleLines returns the number of content lines that fit.
func (v *View) visibleLines() int {
	// Title, separator, blank lines and help footer.
	available := v.height - 6
	if available < 1 {
		available = 1
	}
	return available
}

func (v *View) maxScrollOffset() int {
	maxOffset := len(v.buildContent()) - v.visibleLines()
	if maxOffset < 0 {
		maxOffset = 0
	}
	return maxOffset
}

// buildContent builds the rendered content lines.
func (v *View) buildContent() []string {
	if v.details == nil {
		return nil
	}
	c := &v.details.Chunk

	lines := []string{
		v.formatField("Chunk", c.ID),
		v.formatField("Artifact", fmt.Sprintf("%s (%s)", c.ArtifactID, c.ArtifactType)),
		v.formatField("Patient", c.PatientID),
		v.formatField("Offsets", fmt.Sprintf("[%d,%d)", c.Offsets.Start, c.Offsets.End)),
		v.formatField("Position", fmt.Sprintf("%d of %d", c.Position+1, v.details.SiblingCount)),
	}
	if !c.OccurredAt.IsZero() {
		lines = append(lines, v.formatField("Occurred", c.OccurredAt.UTC().Format("2006-01-02 15:04")))
	}
	if c.Author != "" {
		lines = append(lines, v.formatField("Author", c.Author))
	}
	if len(c.Entities) > 0 {
		entities := make([]string, len(c.Entities))
		for i, e := range c.Entities {
			entities[i] = e.Type + ":" + e.Text
		}
		lines = append(lines, v.formatField("Entities", strings.Join(entities, ", ")))
	}

	lines = append(lines, "", "Sentences:")
	for i := range v.details.Sentences {
		s := &v.details.Sentences[i]
		marker := "  "
		if s.ID == v.highlight {
			marker = "* "
		}
		lines = append(lines, fmt.Sprintf("%s[%d,%d) %s", marker,
			s.AbsoluteOffsets.Start, s.AbsoluteOffsets.End,
			list.Truncate(strings.Join(strings.Fields(s.Text), " "), maxInt(v.width-16, 20))))
	}

	return lines
}

func (v *View) formatField(label, value string) string {
	return fmt.Sprintf("%-10s %s", label+":", value)
}

// View renders the chunk detail view.
func (v *View) View() string {
	var b strings.Builder

	b.WriteString(v.styles.Title.Render("Chunk"))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", minInt(v.width-4, 60)))
	b.WriteString("\n\n")

	if v.err != nil {
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Error: %s", v.err.Error())))
		b.WriteString("\n\n")
		b.WriteString(v.renderHelp())
		return b.String()
	}

	if v.details == nil {
		b.WriteString(v.styles.Muted.Render("No chunk selected"))
		b.WriteString("\n\n")
		b.WriteString(v.renderHelp())
		return b.String()
	}

	lines := v.buildContent()
	visible := v.visibleLines()
	for i := v.scrollOffset; i < len(lines) && i < v.scrollOffset+visible; i++ {
		b.WriteString(v.renderLine(lines[i]))
		b.WriteString("\n")
	}

	if len(lines) > visible {
		b.WriteString("\n")
		b.WriteString(v.styles.Muted.Render(fmt.Sprintf("  [Line %d-%d of %d]",
			v.scrollOffset+1,
			minInt(v.scrollOffset+visible, len(lines)),
			len(lines))))
	}

	b.WriteString("\n\n")
	b.WriteString(v.renderHelp())

	return b.String()
}

func (v *View) renderLine(line string) string {
	switch {
	case line == "Sentences:":
		return v.styles.Subtitle.Render(line)
	case strings.HasPrefix(line, "* "):
		return v.styles.Selected.Render(line)
	case strings.HasPrefix(line, "  "):
		offsets, text, _ := strings.Cut(strings.TrimPrefix(line, "  "), " ")
		return "  " + v.styles.Provenance.Render(offsets) + " " + v.styles.Normal.Render(text)
	}

	if label, value, ok := strings.Cut(line, ":"); ok {
		return v.styles.Subtitle.Render(label+":") + v.styles.Normal.Render(value)
	}
	return v.styles.Normal.Render(line)
}

func (v *View) renderHelp() string {
	var hints []string
	hints = append(hints, "[↑/↓] scroll")
	if v.details != nil && v.details.PreviousID != "" {
		hints = append(hints, "[[] previous")
	}
	if v.details != nil && v.details.NextID != "" {
		hints = append(hints, "[]] next")
	}
	hints = append(hints, "[esc] back")
	return v.styles.Help.Render(strings.Join(hints, "  "))
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
}

// Details returns the chunk on display.
func (v *View) Details() *driving.ChunkDetails {
	return v.details
}

// Highlight returns the ID of the highlighted sentence.
func (v *View) Highlight() string {
	return v.highlight
}

// Err returns the last error.
func (v *View) Err() error {
	return v.err
}

// StatusLine summarises the chunk for the status bar.
func (v *View) StatusLine() string {
	if v.details == nil {
		return ""
	}
	c := &v.details.Chunk
	return fmt.Sprintf("%s chunk %d of %d (%s)", c.ArtifactID, c.Position+1, v.details.SiblingCount,
		c.OccurredAt.UTC().Format(domain.DayLayout))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
