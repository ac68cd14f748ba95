package driven

import (
	"context"

	"github.com/custodia-labs/cliniq/internal/core/domain"
)

// ArtifactStore persists ingested artifacts.
// Backed by SQLite; the chunk index itself is rebuilt from it at startup.
type ArtifactStore interface {
	// Save stores an artifact. Saving an existing ID returns domain.ErrAlreadyExists.
	Save(ctx context.Context, artifact *domain.Artifact) error

	// Get retrieves an artifact by ID.
	Get(ctx context.Context, id string) (*domain.Artifact, error)

	// List returns all artifacts, optionally restricted to one patient.
	List(ctx context.Context, patientID string) ([]domain.Artifact, error)

	// Delete removes an artifact.
	Delete(ctx context.Context, id string) error

	// DeleteByPatient removes all artifacts for a patient and returns the count.
	DeleteByPatient(ctx context.Context, patientID string) (int, error)
}
