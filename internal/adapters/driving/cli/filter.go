package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/cliniq/internal/core/domain"
)

// filterFlags are the chunk filter flags shared by query, ask and chunks list.
type filterFlags struct {
	patientID    string
	artifactID   string
	artifactType string
	entityType   string
	entityText   string
	dateFrom     string
	dateTo       string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.patientID, "patient", "", "restrict to one patient")
	cmd.Flags().StringVar(&f.artifactID, "artifact", "", "restrict to one artifact")
	cmd.Flags().StringVar(&f.artifactType, "type", "", "restrict to one artifact type")
	cmd.Flags().StringVar(&f.entityType, "entity-type", "", "require an entity of this type")
	cmd.Flags().StringVar(&f.entityText, "entity", "", "require an entity containing this text")
	cmd.Flags().StringVar(&f.dateFrom, "from", "", "first day to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.dateTo, "to", "", "last day to include (YYYY-MM-DD)")
}

func (f *filterFlags) toDomain() (domain.ChunkFilter, error) {
	from, err := domain.ParseDay(f.dateFrom)
	if err != nil {
		return domain.ChunkFilter{}, err
	}
	to, err := domain.ParseDay(f.dateTo)
	if err != nil {
		return domain.ChunkFilter{}, err
	}
	return domain.ChunkFilter{
		PatientID:    f.patientID,
		ArtifactID:   f.artifactID,
		ArtifactType: f.artifactType,
		EntityType:   f.entityType,
		EntityText:   f.entityText,
		DateFrom:     from,
		DateTo:       to,
	}, nil
}
