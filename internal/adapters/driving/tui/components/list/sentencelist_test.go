package list

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cliniq/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/cliniq/internal/core/domain"
)

func sampleSentences() []domain.RetrievedSentence {
	meta := domain.SentenceMetadata{
		PatientID:    "p1",
		ArtifactType: "progress_note",
		OccurredAt:   time.Date(2024, 5, 2, 14, 0, 0, 0, time.UTC),
	}
	return []domain.RetrievedSentence{
		{SentenceID: "c1#s0", ChunkID: "c1", ArtifactID: "note-1", Score: 0.91,
			Text: "Metformin 500mg twice daily.", AbsoluteOffsets: domain.Offsets{Start: 19, End: 47}, Metadata: meta},
		{SentenceID: "c1#s1", ChunkID: "c1", ArtifactID: "note-1", Score: 0.52,
			Text: "Recheck A1c in three months.", AbsoluteOffsets: domain.Offsets{Start: 48, End: 76}, Metadata: meta},
		{SentenceID: "c2#s0", ChunkID: "c2", ArtifactID: "note-2", Score: 0.12,
			Text: "Blood pressure stable.", AbsoluteOffsets: domain.Offsets{Start: 0, End: 22}},
	}
}

func TestNewSentenceList(t *testing.T) {
	l := NewSentenceList(styles.DefaultStyles())

	require.NotNil(t, l)
	assert.Equal(t, 0, l.Selected())
	assert.True(t, l.IsEmpty())
	assert.Nil(t, l.Init())
}

func TestNewSentenceList_NilStyles(t *testing.T) {
	assert.NotNil(t, NewSentenceList(nil).styles)
}

func TestSentenceList_SetSentencesResetsSelection(t *testing.T) {
	l := NewSentenceList(nil)
	l.SetSentences(sampleSentences())
	l.SetSelected(2)

	l.SetSentences(sampleSentences()[:2])

	assert.Equal(t, 2, l.Count())
	assert.Equal(t, 0, l.Selected())
}

func TestSentenceList_Navigation(t *testing.T) {
	l := NewSentenceList(nil)
	l.SetSentences(sampleSentences())

	l.MoveUp()
	assert.Equal(t, 0, l.Selected(), "stays at top")

	l.Update(tea.KeyMsg{Type: tea.KeyDown})
	l.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	assert.Equal(t, 2, l.Selected())

	l.MoveDown()
	assert.Equal(t, 2, l.Selected(), "stays at bottom")

	l.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'k'}})
	assert.Equal(t, 1, l.Selected())
	assert.Equal(t, "c1#s1", l.SelectedSentence().SentenceID)
}

func TestSentenceList_SetSelected_OutOfRange(t *testing.T) {
	l := NewSentenceList(nil)
	l.SetSentences(sampleSentences())

	l.SetSelected(5)
	assert.Equal(t, 0, l.Selected())
	l.SetSelected(-1)
	assert.Equal(t, 0, l.Selected())
}

func TestSentenceList_SelectedSentence_Empty(t *testing.T) {
	assert.Nil(t, NewSentenceList(nil).SelectedSentence())
}

func TestSentenceList_View(t *testing.T) {
	l := NewSentenceList(nil)
	assert.Contains(t, l.View(), "No matching sentences")

	l.SetSentences(sampleSentences())
	l.SetDimensions(100, 20)
	view := l.View()

	assert.Contains(t, view, "Sentences (3)")
	assert.Contains(t, view, "Metformin 500mg twice daily.")
	assert.Contains(t, view, "0.910")
	assert.Contains(t, view, "note-1 progress_note [19,47) p1 2024-05-02")
}

func TestSentenceList_View_ScrollsToSelection(t *testing.T) {
	l := NewSentenceList(nil)
	l.SetSentences(sampleSentences())
	l.SetDimensions(80, 4)

	l.SetSelected(2)
	view := l.View()

	assert.Contains(t, view, "Blood pressure stable.")
	assert.NotContains(t, view, "Metformin")
}

func TestProvenance(t *testing.T) {
	s := sampleSentences()

	assert.Equal(t, "note-1 progress_note [48,76) p1 2024-05-02", Provenance(&s[1]))
	assert.Equal(t, "note-2  [0,22)", Provenance(&s[2]))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcdefg...", Truncate("abcdefghijklmnop", 10))
	assert.Equal(t, "ab", Truncate("abcdef", 2))
	assert.Equal(t, "µµµ...", Truncate("µµµµµµµµ", 6))
}
