package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRawNote_Fields(t *testing.T) {
	raw := RawNote{
		URI:      "notes/discharge.pdf",
		MIMEType: "application/pdf",
		Content:  []byte("%PDF-1.4"),
	}

	assert.Equal(t, "notes/discharge.pdf", raw.URI)
	assert.Equal(t, "application/pdf", raw.MIMEType)
	assert.Equal(t, []byte("%PDF-1.4"), raw.Content)
}

func TestRawNote_ZeroValue(t *testing.T) {
	var raw RawNote

	assert.Empty(t, raw.URI)
	assert.Empty(t, raw.MIMEType)
	assert.Nil(t, raw.Content)
}

func TestRawNote_Name(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"notes/discharge_summary.pdf", "discharge summary"},
		{"/tmp/follow-up.md", "follow up"},
		{"README", "README"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			raw := RawNote{URI: tt.uri}
			assert.Equal(t, tt.want, raw.Name())
		})
	}
}
