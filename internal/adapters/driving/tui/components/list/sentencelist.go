// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/cliniq/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/cliniq/internal/core/domain"
)

// SentenceList displays ranked sentences with their provenance.
type SentenceList struct {
	sentences []domain.RetrievedSentence
	selected  int
	styles    *styles.Styles
	width     int
	height    int
}

// NewSentenceList creates a new sentence list component.
func NewSentenceList(s *styles.Styles) *SentenceList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &SentenceList{
		styles: s,
		width:  80,
		height: 10,
	}
}

// Init initialises the list.
func (l *SentenceList) Init() tea.Cmd {
	return nil
}

// Update handles list navigation messages.
func (l *SentenceList) Update(msg tea.Msg) (*SentenceList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			l.MoveUp()
		case "down", "j":
			l.MoveDown()
		}
	}
	return l, nil
}

// View renders the list.
func (l *SentenceList) View() string {
	if len(l.sentences) == 0 {
		return l.styles.Muted.Render("No matching sentences")
	}

	lines := make([]string, 0, len(l.sentences)*2+2)
	lines = append(lines, l.styles.Subtitle.Render(fmt.Sprintf("Sentences (%d)", len(l.sentences))), "")

	// Each sentence takes two lines.
	visibleCount := (l.height - 2) / 2
	if visibleCount < 1 {
		visibleCount = 1
	}

	start := 0
	if l.selected >= visibleCount {
		start = l.selected - visibleCount + 1
	}
	end := start + visibleCount
	if end > len(l.sentences) {
		end = len(l.sentences)
	}

	for i := start; i < end; i++ {
		lines = append(lines, l.renderSentence(i, &l.sentences[i]))
	}

	return strings.Join(lines, "\n")
}

func (l *SentenceList) renderSentence(index int, s *domain.RetrievedSentence) string {
	indicator := "  "
	if index == l.selected {
		indicator = "> "
	}

	maxTextLen := l.width - 12
	if maxTextLen < 20 {
		maxTextLen = 20
	}
	text := Truncate(strings.Join(strings.Fields(s.Text), " "), maxTextLen)
	score := fmt.Sprintf("%.3f", s.Score)

	var textLine string
	if index == l.selected {
		textLine = l.styles.Selected.Render(fmt.Sprintf("%s%-*s  %s", indicator, maxTextLen, text, score))
	} else {
		textLine = l.styles.Normal.Render(fmt.Sprintf("%s%-*s  ", indicator, maxTextLen, text)) +
			l.styles.ScoreStyle(s.Score).Render(score)
	}

	return textLine + "\n" + l.styles.Provenance.Render("    "+Provenance(s))
}

// Provenance formats where a sentence came from.
func Provenance(s *domain.RetrievedSentence) string {
	day := ""
	if !s.Metadata.OccurredAt.IsZero() {
		day = s.Metadata.OccurredAt.UTC().Format(domain.DayLayout)
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s [%d,%d) %s %s",
		s.ArtifactID, s.Metadata.ArtifactType,
		s.AbsoluteOffsets.Start, s.AbsoluteOffsets.End,
		s.Metadata.PatientID, day))
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}

// SetSentences replaces the list contents and resets the selection.
func (l *SentenceList) SetSentences(sentences []domain.RetrievedSentence) {
	l.sentences = sentences
	l.selected = 0
}

// Sentences returns the current sentences.
func (l *SentenceList) Sentences() []domain.RetrievedSentence {
	return l.sentences
}

// Selected returns the index of the selected sentence.
func (l *SentenceList) Selected() int {
	return l.selected
}

// SetSelected sets the selected index.
func (l *SentenceList) SetSelected(index int) {
	if index >= 0 && index < len(l.sentences) {
		l.selected = index
	}
}

// SelectedSentence returns the selected sentence, or nil if none.
func (l *SentenceList) SelectedSentence() *domain.RetrievedSentence {
	if l.selected < 0 || l.selected >= len(l.sentences) {
		return nil
	}
	return &l.sentences[l.selected]
}

// MoveUp moves selection up.
func (l *SentenceList) MoveUp() {
	if l.selected > 0 {
		l.selected--
	}
}

// MoveDown moves selection down.
func (l *SentenceList) MoveDown() {
	if l.selected < len(l.sentences)-1 {
		l.selected++
	}
}

// SetDimensions sets the component dimensions.
func (l *SentenceList) SetDimensions(width, height int) {
	l.width = width
	l.height = height
}

// Count returns the number of sentences.
func (l *SentenceList) Count() int {
	return len(l.sentences)
}

// IsEmpty returns whether the list is empty.
func (l *SentenceList) IsEmpty() bool {
	return len(l.sentences) == 0
}
