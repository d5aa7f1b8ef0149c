package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/money-mirror/internal/enrichment"
	"github.com/dvloznov/money-mirror/internal/gcs"
	"github.com/dvloznov/money-mirror/internal/logger"
	"github.com/dvloznov/money-mirror/internal/store"
)

// DefaultFetchConcurrency bounds concurrent file downloads per request.
const DefaultFetchConcurrency = 4

// Orchestrator runs the ingestion pipeline. Runs are independent; raw
// appends take no cross-request lock.
type Orchestrator struct {
	files    gcs.StorageService
	repo     store.Repository
	enricher *enrichment.Service

	fetchConcurrency int
	now              func() time.Time
}

// NewOrchestrator wires the pipeline dependencies.
func NewOrchestrator(files gcs.StorageService, repo store.Repository, enricher *enrichment.Service) *Orchestrator {
	return &Orchestrator{
		files:            files,
		repo:             repo,
		enricher:         enricher,
		fetchConcurrency: DefaultFetchConcurrency,
		now:              time.Now,
	}
}

// Run ingests req's files, classifies new descriptions and rebuilds the
// dashboard. The returned Result is non-nil whenever the request was valid,
// even if a later step failed.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	log := logger.FromContext(ctx).With().
		Str("institution", string(req.Institution)).
		Int("files", len(req.FilePaths)).
		Bool("force_reprocess", req.ForceReprocess).
		Logger()
	ctx = logger.WithContext(ctx, log)

	start := o.now()
	state := &PipelineState{Request: req, Result: &Result{}}

	p := NewPipeline(
		&FilterFilesStep{Files: o.files, Raw: o.repo, Concurrency: o.fetchConcurrency},
		&ParseAndLoadStep{Raw: o.repo},
		&StandardizeStep{Raw: o.repo, Now: o.now},
		&FindUncategorizedStep{Enricher: o.enricher},
		&ClassifyStep{Enricher: o.enricher},
		&EnrichStep{Cache: o.repo},
		&MaterializeStep{Dashboard: o.repo},
	)
	err := p.Execute(ctx, state)
	state.Result.ProcessingTimeSeconds = o.now().Sub(start).Seconds()

	if err != nil {
		log.Error().Err(err).Msg("Processing run failed")
		return state.Result, err
	}
	log.Info().
		Int("files_processed", state.Result.FilesProcessed).
		Int("files_skipped", state.Result.FilesSkipped).
		Int("files_failed", state.Result.FilesFailed).
		Int("rows_inserted", state.Result.RowsInserted).
		Int("new_categories", state.Result.NewCategories).
		Int("failed_batches", state.Result.FailedBatches).
		Float64("processing_time_seconds", state.Result.ProcessingTimeSeconds).
		Msg("Processing run complete")
	return state.Result, nil
}

// Rebuild recomputes the dashboard from stored raw rows and the cache
// without loading files or calling the model.
func (o *Orchestrator) Rebuild(ctx context.Context) (*Result, error) {
	start := o.now()
	state := &PipelineState{Result: &Result{}}

	p := NewPipeline(
		&StandardizeStep{Raw: o.repo, Now: o.now},
		&EnrichStep{Cache: o.repo},
		&MaterializeStep{Dashboard: o.repo},
	)
	err := p.Execute(ctx, state)
	state.Result.ProcessingTimeSeconds = o.now().Sub(start).Seconds()
	return state.Result, err
}

// DeleteFile removes a file's raw rows by content hash and rebuilds the
// dashboard without them.
func (o *Orchestrator) DeleteFile(ctx context.Context, fileHash string) (int64, error) {
	n, err := o.repo.DeleteFile(ctx, fileHash)
	if err != nil {
		return 0, fmt.Errorf("DeleteFile: %w", err)
	}
	log := logger.FromContext(ctx)
	log.Info().Str("file_hash", fileHash).Int64("rows_deleted", n).Msg("Deleted file rows")

	if _, err := o.Rebuild(ctx); err != nil {
		return n, fmt.Errorf("DeleteFile: rebuild: %w", err)
	}
	return n, nil
}
