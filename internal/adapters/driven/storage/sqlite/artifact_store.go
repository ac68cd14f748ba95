package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driven"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// artifactStore implements driven.ArtifactStore.
type artifactStore struct {
	store *Store
}

var _ driven.ArtifactStore = (*artifactStore)(nil)

// Save persists a new artifact. Artifacts are immutable, so saving an
// existing ID returns domain.ErrAlreadyExists.
func (s *artifactStore) Save(ctx context.Context, artifact *domain.Artifact) error {
	if artifact == nil || artifact.ID == "" {
		return domain.ErrInvalidInput
	}

	metaJSON, err := json.Marshal(artifact.Meta)
	if err != nil {
		return fmt.Errorf("marshalling meta: %w", err)
	}
	entitiesJSON, err := json.Marshal(artifact.Entities)
	if err != nil {
		return fmt.Errorf("marshalling entities: %w", err)
	}

	res, err := s.store.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, type, patient_id, occurred_at, author, text, source, meta, entities, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, artifact.ID, artifact.Type, artifact.PatientID, formatTime(artifact.OccurredAt),
		artifact.Author, artifact.Text, artifact.Source, string(metaJSON), string(entitiesJSON),
		formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("saving artifact: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("saving artifact: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("artifact %s: %w", artifact.ID, domain.ErrAlreadyExists)
	}
	return nil
}

// Get retrieves an artifact by ID.
func (s *artifactStore) Get(ctx context.Context, id string) (*domain.Artifact, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, type, patient_id, occurred_at, author, text, source, meta, entities
		FROM artifacts WHERE id = ?
	`, id)

	artifact, err := scanArtifact(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return artifact, err
}

// List returns artifacts ordered by occurrence, newest first.
// An empty patientID lists every artifact.
func (s *artifactStore) List(ctx context.Context, patientID string) ([]domain.Artifact, error) {
	query := `
		SELECT id, type, patient_id, occurred_at, author, text, source, meta, entities
		FROM artifacts`
	var args []any
	if patientID != "" {
		query += ` WHERE patient_id = ?`
		args = append(args, patientID)
	}
	query += ` ORDER BY occurred_at DESC, id`

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []domain.Artifact //nolint:prealloc // size unknown from query
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, *artifact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating artifacts: %w", err)
	}

	return artifacts, nil
}

// Delete removes an artifact. Deleting an unknown ID is not an error.
func (s *artifactStore) Delete(ctx context.Context, id string) error {
	if _, err := s.store.db.ExecContext(ctx, `DELETE FROM artifacts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting artifact: %w", err)
	}
	return nil
}

// DeleteByPatient removes all artifacts of a patient and returns the count.
func (s *artifactStore) DeleteByPatient(ctx context.Context, patientID string) (int, error) {
	res, err := s.store.db.ExecContext(ctx, `DELETE FROM artifacts WHERE patient_id = ?`, patientID)
	if err != nil {
		return 0, fmt.Errorf("deleting patient artifacts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting patient artifacts: %w", err)
	}
	return int(n), nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (*domain.Artifact, error) {
	var a domain.Artifact
	var occurredAt, metaJSON, entitiesJSON string

	if err := row.Scan(&a.ID, &a.Type, &a.PatientID, &occurredAt, &a.Author,
		&a.Text, &a.Source, &metaJSON, &entitiesJSON); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning artifact: %w", err)
	}

	t, err := time.Parse(timeLayout, occurredAt)
	if err != nil {
		return nil, fmt.Errorf("parsing occurred_at: %w", err)
	}
	a.OccurredAt = t

	if metaJSON != "" && metaJSON != jsonNull {
		if err := json.Unmarshal([]byte(metaJSON), &a.Meta); err != nil {
			return nil, fmt.Errorf("unmarshalling meta: %w", err)
		}
	}
	if entitiesJSON != "" && entitiesJSON != jsonNull {
		if err := json.Unmarshal([]byte(entitiesJSON), &a.Entities); err != nil {
			return nil, fmt.Errorf("unmarshalling entities: %w", err)
		}
	}

	return &a, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
