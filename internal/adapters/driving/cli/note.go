package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driven"
	"github.com/custodia-labs/cliniq/internal/normalisers"
)

// noteNormalisers extracts the text of raw note files. Tests may replace it.
var noteNormalisers driven.NormaliserRegistry = normalisers.NewDefaultRegistry()

// noteMeta holds the artifact metadata given on the command line for raw
// note files, which carry none of their own.
type noteMeta struct {
	id         string
	patientID  string
	kind       string
	occurredAt string
	author     string
}

var rawNote noteMeta

// acceptsNotes reports whether raw note files are ingested. They need at
// least a patient to be attributed to.
func acceptsNotes() bool {
	return rawNote.patientID != ""
}

// isIngestible reports whether path is an artifact document, or a raw note
// when raw notes are accepted.
func isIngestible(path string) bool {
	return isDocument(path) || (acceptsNotes() && normalisers.IsNoteFile(path))
}

// parseOccurred accepts an RFC 3339 timestamp or a YYYY-MM-DD day.
func parseOccurred(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	day, err := domain.ParseDay(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: --occurred must be RFC 3339 or YYYY-MM-DD", domain.ErrInvalidInput)
	}
	return *day, nil
}

// readNote extracts the text of a raw note file and builds an artifact
// from it and the command line metadata. Without --id the artifact is named
// after the file; without --occurred the file's modification time is used.
func readNote(ctx context.Context, path string) (*domain.Artifact, error) {
	if !acceptsNotes() {
		return nil, fmt.Errorf("%s: %w: --patient is required for raw notes", path, domain.ErrInvalidInput)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	raw := &domain.RawNote{
		URI:      path,
		MIMEType: normalisers.DetectMIMEType(path, content),
		Content:  content,
	}
	result, err := noteNormalisers.Normalise(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	occurred := info.ModTime().UTC()
	if rawNote.occurredAt != "" {
		if occurred, err = parseOccurred(rawNote.occurredAt); err != nil {
			return nil, err
		}
	}

	base := filepath.Base(path)
	id := rawNote.id
	if id == "" {
		id = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return &domain.Artifact{
		ID:         id,
		Type:       rawNote.kind,
		PatientID:  rawNote.patientID,
		OccurredAt: occurred,
		Author:     rawNote.author,
		Text:       result.Text,
		Source:     base,
		Meta: map[string]any{
			"title":     result.Title,
			"format":    result.Format,
			"mime_type": raw.MIMEType,
		},
	}, nil
}
