package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/cliniq/internal/core/domain"
)

// IngestReport summarises the ingestion of one artifact.
type IngestReport struct {
	ArtifactID string             `json:"artifact_id"`
	Chunks     int                `json:"chunks"`
	Indexed    int                `json:"indexed"`
	Store      domain.StoreResult `json:"store"`
}

// IngestService turns artifacts into indexed chunks.
type IngestService interface {
	// Ingest chunks, embeds and stores one artifact.
	Ingest(ctx context.Context, artifact *domain.Artifact) (*IngestReport, error)

	// Remove deletes an artifact and all of its chunks. Returns the chunk count.
	Remove(ctx context.Context, artifactID string) (int, error)

	// RemovePatient deletes all artifacts and chunks of a patient.
	RemovePatient(ctx context.Context, patientID string) (int, error)

	// Rehydrate re-ingests every persisted artifact.
	Rehydrate(ctx context.Context) (int, error)

	// Expire removes every persisted artifact that occurred before the
	// cutoff. Returns the artifact count.
	Expire(ctx context.Context, before time.Time) (int, error)
}
