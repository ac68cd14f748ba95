package plaintext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cliniq/internal/core/domain"
)

func TestNew(t *testing.T) {
	normaliser := New()
	require.NotNil(t, normaliser)
	assert.IsType(t, &Normaliser{}, normaliser)
}

func TestSupportedMIMETypes(t *testing.T) {
	mimeTypes := New().SupportedMIMETypes()

	require.NotEmpty(t, mimeTypes)
	assert.Contains(t, mimeTypes, "text/plain")
	assert.Contains(t, mimeTypes, "text/csv")
}

func TestPriority(t *testing.T) {
	assert.Equal(t, 5, New().Priority())
}

func TestNormalise_Success(t *testing.T) {
	raw := &domain.RawNote{
		URI:      "/notes/progress_note.txt",
		MIMEType: "text/plain",
		Content:  []byte("Patient seen today.\nBP 120/80."),
	}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "Patient seen today.\nBP 120/80.", result.Text)
	assert.Equal(t, "progress note", result.Title)
	assert.Equal(t, "text", result.Format)
}

func TestNormalise_NilInput(t *testing.T) {
	result, err := New().Normalise(context.Background(), nil)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, result)
}

func TestNormalise_InvalidUTF8(t *testing.T) {
	raw := &domain.RawNote{URI: "bad.txt", Content: []byte{0xff, 0xfe, 0x00}}

	_, err := New().Normalise(context.Background(), raw)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNormalise_EmptyContent(t *testing.T) {
	result, err := New().Normalise(context.Background(), &domain.RawNote{URI: "empty.txt"})

	require.NoError(t, err)
	assert.Empty(t, result.Text)
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{"plain", []byte("a\nb"), "a\nb"},
		{"crlf", []byte("a\r\nb\r\n"), "a\nb\n"},
		{"lone cr", []byte("a\rb"), "a\nb"},
		{"bom", append([]byte{0xef, 0xbb, 0xbf}, "BP 120/80"...), "BP 120/80"},
		{"unicode", []byte("Temp 38.5°C"), "Temp 38.5°C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeText(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
