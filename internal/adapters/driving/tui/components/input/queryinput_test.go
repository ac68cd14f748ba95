package input

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cliniq/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/cliniq/internal/core/domain"
)

func TestNewQueryInput(t *testing.T) {
	q := NewQueryInput(styles.DefaultStyles())

	require.NotNil(t, q)
	assert.Equal(t, "", q.Value())
	assert.True(t, q.Focused())
	assert.Equal(t, 50, q.Width())
}

func TestNewQueryInput_NilStyles(t *testing.T) {
	q := NewQueryInput(nil)

	require.NotNil(t, q)
	assert.NotNil(t, q.styles)
}

func TestQueryInput_Init(t *testing.T) {
	assert.NotNil(t, NewQueryInput(nil).Init())
}

func TestQueryInput_Update_Typing(t *testing.T) {
	q := NewQueryInput(nil)

	for _, r := range "labs" {
		q.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	assert.Equal(t, "labs", q.Value())

	q.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, "lab", q.Value())
}

func TestQueryInput_View(t *testing.T) {
	assert.Contains(t, NewQueryInput(nil).View(), "Query")
}

func TestQueryInput_FocusAndBlur(t *testing.T) {
	q := NewQueryInput(nil)

	q.Blur()
	assert.False(t, q.Focused())

	assert.NotNil(t, q.Focus())
	assert.True(t, q.Focused())
}

func TestQueryInput_SetWidth(t *testing.T) {
	q := NewQueryInput(nil)

	q.SetWidth(100)
	assert.Equal(t, 100, q.Width())
	assert.Equal(t, 90, q.textinput.Width)

	q.SetWidth(10)
	assert.Equal(t, 20, q.textinput.Width)
}

func TestQueryInput_Reset(t *testing.T) {
	q := NewQueryInput(nil)
	q.SetValue("some text")

	q.Reset()

	assert.Equal(t, "", q.Value())
}

func TestParseQuery(t *testing.T) {
	jan1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mar31 := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		raw        string
		wantText   string
		wantFilter domain.ChunkFilter
	}{
		{name: "plain text", raw: "  metformin   dose ", wantText: "metformin dose"},
		{
			name:       "patient scope",
			raw:        "metformin patient:p-001",
			wantText:   "metformin",
			wantFilter: domain.ChunkFilter{PatientID: "p-001"},
		},
		{
			name:     "all scopes",
			raw:      "Type:discharge_summary labs artifact:note-9 from:2024-01-01 to:2024-03-31",
			wantText: "labs",
			wantFilter: domain.ChunkFilter{
				ArtifactType: "discharge_summary",
				ArtifactID:   "note-9",
				DateFrom:     &jan1,
				DateTo:       &mar31,
			},
		},
		{name: "unknown key stays text", raw: "bp:120/80 trend", wantText: "bp:120/80 trend"},
		{name: "empty value stays text", raw: "patient: x", wantText: "patient: x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, filter, err := ParseQuery(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, text)
			assert.Equal(t, tt.wantFilter, filter)
		})
	}
}

func TestParseQuery_BadDay(t *testing.T) {
	_, _, err := ParseQuery("labs from:yesterday")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQueryInput_Parse(t *testing.T) {
	q := NewQueryInput(nil)
	q.SetValue("insulin patient:p2")

	text, filter, err := q.Parse()
	require.NoError(t, err)
	assert.Equal(t, "insulin", text)
	assert.Equal(t, "p2", filter.PatientID)
}
