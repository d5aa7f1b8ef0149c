// Package app builds the shared dependencies used by the binaries from a
// loaded Config.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/money-mirror/internal/config"
	"github.com/dvloznov/money-mirror/internal/enrichment"
	"github.com/dvloznov/money-mirror/internal/gcs"
	"github.com/dvloznov/money-mirror/internal/gcsuploader"
	infraBQ "github.com/dvloznov/money-mirror/internal/infra/bigquery"
	"github.com/dvloznov/money-mirror/internal/infra/memory"
	"github.com/dvloznov/money-mirror/internal/infra/sqlite"
	"github.com/dvloznov/money-mirror/internal/pipeline"
	"github.com/dvloznov/money-mirror/internal/store"
	"github.com/dvloznov/money-mirror/internal/taxonomy"
)

// TaxonomyTTL is how long the active taxonomy is served from memory.
const TaxonomyTTL = 10 * time.Minute

// OpenRepository connects to the configured store backend.
func OpenRepository(ctx context.Context, cfg *config.Config) (store.Repository, error) {
	switch cfg.StoreBackend {
	case config.BackendBigQuery:
		repo, err := infraBQ.NewBigQueryRepository(ctx, cfg.ProjectID, cfg.Dataset, cfg.Location)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.BackendSQLite:
		repo, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case config.BackendMemory:
		return memory.NewStore(), nil
	}
	return nil, fmt.Errorf("OpenRepository: unknown backend %q", cfg.StoreBackend)
}

// FileStore is a StorageService that may hold a client to release.
type FileStore interface {
	gcs.StorageService
	Close() error
}

type localFiles struct {
	*gcsuploader.LocalStorageService
}

func (localFiles) Close() error { return nil }

// OpenFileStore returns the GCS file store, or the local filesystem when
// local is set.
func OpenFileStore(ctx context.Context, cfg *config.Config, local bool) (FileStore, error) {
	if local {
		return localFiles{gcsuploader.NewLocalStorageService("")}, nil
	}
	files, err := gcsuploader.NewGCSStorageService(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Services is the wired processing stack.
type Services struct {
	Repo         store.Repository
	Files        FileStore
	Taxonomy     *taxonomy.Provider
	Enricher     *enrichment.Service
	Orchestrator *pipeline.Orchestrator
}

// Close releases the store and file store clients.
func (s *Services) Close() error {
	var firstErr error
	if s.Files != nil {
		firstErr = s.Files.Close()
	}
	if err := s.Repo.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// NewServices wires the orchestrator over repo. The Gemini client is only
// created here, so commands that never classify should not call it.
func NewServices(ctx context.Context, cfg *config.Config, repo store.Repository, files FileStore) (*Services, error) {
	if err := cfg.RequireClassifier(); err != nil {
		return nil, err
	}

	provider := taxonomy.NewProvider(repo, TaxonomyTTL)
	classifier, err := enrichment.NewGeminiClassifier(ctx, enrichment.GeminiConfig{
		APIKey:      cfg.GeminiAPIKey,
		Model:       cfg.GeminiModel,
		UseVertexAI: cfg.UseVertexAI,
		Project:     cfg.ProjectID,
		Location:    cfg.VertexLocation,
	}, provider)
	if err != nil {
		return nil, err
	}

	enricher := enrichment.NewService(classifier, repo, provider, enrichment.Options{
		BatchSize:         cfg.ClassifyBatchSize,
		Timeout:           cfg.ClassifyTimeout,
		RequestsPerSecond: cfg.ClassifyRPS,
	})
	return &Services{
		Repo:         repo,
		Files:        files,
		Taxonomy:     provider,
		Enricher:     enricher,
		Orchestrator: pipeline.NewOrchestrator(files, repo, enricher),
	}, nil
}
