package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/cliniq/internal/adapters/driven/ai"
	"github.com/custodia-labs/cliniq/internal/adapters/driven/config/file"
	"github.com/custodia-labs/cliniq/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/cliniq/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/services"
	"github.com/custodia-labs/cliniq/internal/logger"
	"github.com/custodia-labs/cliniq/internal/postprocessors"
	"github.com/custodia-labs/cliniq/internal/postprocessors/sentences"
)

// closers release resources opened by the composition root, in reverse order.
var closers []func()

// initSettings opens the config file and creates the settings service.
func initSettings() error {
	if settingsService != nil {
		return nil
	}

	store, err := file.NewConfigStore(configPath)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	settingsService = services.NewSettingsService(store, ai.NewConfigValidator())
	return nil
}

// requireCore builds the retrieval stack on first use. Chunks live in
// memory, so every persisted artifact is re-ingested before the command runs.
func requireCore(ctx context.Context) error {
	if retrievalService != nil {
		return nil
	}
	if err := initSettings(); err != nil {
		return err
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	if err := logger.SetFormat(settings.Log.Format); err != nil {
		return err
	}

	cfg := settingsService.ChunkerConfig()
	registry := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(registry)
	chunker, err := registry.Build(postprocessors.DefaultChunker, cfg)
	if err != nil {
		return fmt.Errorf("building chunker: %w", err)
	}
	segmenter := sentences.NewSegmenter(postprocessors.NewDetector(cfg))

	chunks := memory.NewChunkStore()
	index := memory.NewVectorIndex(nil)
	cache := memory.NewSentenceEmbeddingCache()
	chunks.Subscribe(index)
	chunks.Subscribe(cache)
	chunks.Subscribe(segmenter)

	db, err := sqlite.NewStore(settings.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening artifact store: %w", err)
	}
	closers = append(closers, func() { db.Close() })
	logger.Debug("artifact store: %s", db.Path())

	aiServices, err := ai.Init(&settings.Embedding, &settings.LLM, false)
	if err != nil {
		return fmt.Errorf("initialising AI services: %w", err)
	}
	closers = append(closers, aiServices.Close)
	for _, w := range aiServices.Warnings {
		logger.Warn("%s", w)
	}

	prompts, err := file.NewPromptStore("")
	if err != nil {
		return fmt.Errorf("opening prompts: %w", err)
	}

	citationValidator = services.NewCitationValidator(services.WithStrictMode(settings.Validation.Strict))
	retrieval := services.NewRetrievalService(chunks, index, segmenter, cache, aiServices.EmbeddingService,
		services.WithRetrievalSettings(settings.Retrieval))
	ingest := services.NewIngestService(chunker, chunks, index, aiServices.EmbeddingService, db.ArtifactStore())

	ingestService = ingest
	retrievalService = retrieval
	chunkService = services.NewChunkService(chunks, segmenter, db.ArtifactStore())
	answerService = services.NewAnswerService(retrieval, aiServices.LLMService, prompts,
		citationValidator, services.NewConfidenceScorer(),
		services.WithAnswerRetrieval(settings.Retrieval.ChunkK, settings.Retrieval.SentenceK))

	n, err := ingest.Rehydrate(ctx)
	if err != nil {
		return fmt.Errorf("loading artifacts: %w", err)
	}
	logger.Debug("rehydrated %d artifact(s)", n)

	scheduler = newMaintenanceScheduler(db, ingest, settings.Maintenance)
	return nil
}

// newMaintenanceScheduler registers artifact retention and database
// compaction. Retention stays disabled until a retention period is set.
func newMaintenanceScheduler(
	db *sqlite.Store, ingest *services.IngestService, cfg domain.MaintenanceSettings,
) *services.Scheduler {
	s := services.NewScheduler(db.SchedulerStore())

	s.Register(domain.TaskIDRetention, "Artifact retention",
		domain.TaskConfig{Enabled: cfg.Retention > 0, Interval: cfg.Interval},
		func(ctx context.Context) (int, error) {
			if cfg.Retention <= 0 {
				return 0, fmt.Errorf("%w: maintenance.retention is not set", domain.ErrInvalidInput)
			}
			return ingest.Expire(ctx, time.Now().Add(-cfg.Retention))
		})

	s.Register(domain.TaskIDCompact, "Database compaction",
		domain.TaskConfig{Enabled: true, Interval: cfg.CompactInterval},
		func(ctx context.Context) (int, error) {
			return 0, db.Vacuum(ctx)
		})

	return s
}

func closeServices() {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	closers = nil
}
