package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/dvloznov/money-mirror/internal/enrichment"
	"github.com/dvloznov/money-mirror/internal/gcs"
	"github.com/dvloznov/money-mirror/internal/hasher"
	"github.com/dvloznov/money-mirror/internal/logger"
	"github.com/dvloznov/money-mirror/internal/parsers"
	"github.com/dvloznov/money-mirror/internal/store"
	"github.com/dvloznov/money-mirror/internal/transform"
	"golang.org/x/sync/errgroup"
)

// PipelineStep represents a single step of a processing run.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Request Request
	Result  *Result

	Files []*statementFile

	// Targeted holds the normalized descriptions parsed from this request's
	// files. Force reprocess reclassifies only these.
	Targeted map[string]bool

	Canonical     []domain.CanonicalTransaction
	Uncategorized []string
	Enriched      []domain.EnrichedTransaction
}

// Step 1: FilterFilesStep fetches every file and marks the ones whose
// content hash is already loaded.
type FilterFilesStep struct {
	Files       gcs.StorageService
	Raw         store.RawRepository
	Concurrency int
}

func (s *FilterFilesStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	files := make([]*statementFile, len(state.Request.FilePaths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.Concurrency, 1))
	for i, p := range state.Request.FilePaths {
		g.Go(func() error {
			f := &statementFile{Path: p, Name: s.Files.FileName(p)}
			files[i] = f

			content, err := s.Files.Fetch(gctx, p)
			if err != nil {
				f.Err = err
				return nil
			}
			f.Content = content
			f.Hash = hasher.FileHash(content)

			if state.Request.ForceReprocess {
				return nil
			}
			done, err := s.Raw.FileProcessed(gctx, f.Hash)
			if err != nil {
				return fmt.Errorf("FilterFiles: %s: %w", p, err)
			}
			f.Skip = done
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, f := range files {
		switch {
		case f.Err != nil:
			state.Result.FilesFailed++
			state.Result.warn("fetch %s: %v", f.Path, f.Err)
			log.Warn().Err(f.Err).Str("file", f.Path).Msg("Failed to fetch file")
		case f.Skip:
			state.Result.FilesSkipped++
			log.Info().Str("file", f.Path).Str("file_hash", f.Hash).Msg("File already processed, skipping")
		}
	}
	state.Files = files
	return nil
}

// Step 2: ParseAndLoadStep parses each pending file and appends the rows
// that are not stored yet. A parse error only fails that file.
type ParseAndLoadStep struct {
	Raw store.RawRepository
}

func (s *ParseAndLoadStep) Execute(ctx context.Context, state *PipelineState) error {
	log := logger.FromContext(ctx)
	inst := state.Request.Institution

	for _, f := range state.Files {
		if f.Err != nil || f.Skip {
			continue
		}

		rows, err := parsers.Parse(inst, f.Name, f.Content)
		if err != nil {
			var parseErr *domain.ParseError
			if !errors.As(err, &parseErr) {
				return fmt.Errorf("ParseAndLoad: %s: %w", f.Path, err)
			}
			f.Err = err
			state.Result.FilesFailed++
			state.Result.warn("%v", err)
			log.Warn().Err(err).Str("file", f.Path).Msg("Failed to parse file")
			continue
		}

		if state.Targeted == nil {
			state.Targeted = make(map[string]bool)
		}
		for _, r := range rows {
			state.Targeted[hasher.NormalizeDescription(r.Description)] = true
		}

		if !state.Request.ForceReprocess {
			rows, err = s.dropStored(ctx, inst, rows)
			if err != nil {
				return fmt.Errorf("ParseAndLoad: %s: %w", f.Path, err)
			}
		}

		n, err := s.Raw.AppendRaw(ctx, inst, rows)
		if err != nil {
			return fmt.Errorf("ParseAndLoad: %s: %w", f.Path, err)
		}
		state.Result.FilesProcessed++
		state.Result.RowsInserted += n
		log.Info().Str("file", f.Path).Int("rows_inserted", n).Msg("File loaded")
	}
	return nil
}

func (s *ParseAndLoadStep) dropStored(ctx context.Context, inst domain.Institution, rows []domain.RawRow) ([]domain.RawRow, error) {
	if len(rows) == 0 {
		return rows, nil
	}
	hashes := make([]string, len(rows))
	for i, r := range rows {
		hashes[i] = r.RowHash
	}
	existing, err := s.Raw.ExistingRowHashes(ctx, inst, hashes)
	if err != nil {
		return nil, err
	}

	fresh := make([]domain.RawRow, 0, len(rows))
	for _, r := range rows {
		if !existing[r.RowHash] {
			fresh = append(fresh, r)
		}
	}
	return fresh, nil
}

// Step 3: StandardizeStep rebuilds the canonical set from every institution's
// deduplicated raw rows.
type StandardizeStep struct {
	Raw store.RawRepository
	Now func() time.Time
}

func (s *StandardizeStep) Execute(ctx context.Context, state *PipelineState) error {
	processedAt := s.Now().UTC()

	var sets [][]domain.CanonicalTransaction
	for _, inst := range domain.Institutions() {
		raw, err := s.Raw.ListRaw(ctx, inst)
		if err != nil {
			return fmt.Errorf("Standardize: %w", err)
		}
		txs, err := transform.Standardize(inst, transform.Dedup(raw), processedAt)
		if err != nil {
			return err
		}
		sets = append(sets, txs)
	}
	state.Canonical = transform.Union(sets...)
	log := logger.FromContext(ctx)
	log.Debug().Int("transactions", len(state.Canonical)).Msg("Standardized transactions")
	return nil
}

// Step 4: FindUncategorizedStep collects descriptions missing from the cache,
// plus the request's own descriptions when forced.
type FindUncategorizedStep struct {
	Enricher *enrichment.Service
}

func (s *FindUncategorizedStep) Execute(ctx context.Context, state *PipelineState) error {
	var forced map[string]bool
	if state.Request.ForceReprocess {
		forced = state.Targeted
	}
	descs, err := s.Enricher.FindUncategorized(ctx, state.Canonical, forced)
	if err != nil {
		return err
	}
	state.Uncategorized = descs
	return nil
}

// Step 5: ClassifyStep sends uncategorized descriptions to the model.
type ClassifyStep struct {
	Enricher *enrichment.Service
}

func (s *ClassifyStep) Execute(ctx context.Context, state *PipelineState) error {
	if len(state.Uncategorized) == 0 {
		return nil
	}
	res, err := s.Enricher.ClassifyAndCache(ctx, state.Uncategorized)
	if res != nil {
		state.Result.NewCategories += res.NewCategories
		state.Result.FailedBatches += len(res.FailedBatches)
		for _, be := range res.FailedBatches {
			state.Result.warn("%v", be)
		}
		state.Result.Warnings = append(state.Result.Warnings, res.Warnings...)
	}
	return err
}

// Step 6: EnrichStep left-joins the canonical set to the cache.
type EnrichStep struct {
	Cache store.CategoryCacheRepository
}

func (s *EnrichStep) Execute(ctx context.Context, state *PipelineState) error {
	entries, err := s.Cache.ListCacheEntries(ctx)
	if err != nil {
		return fmt.Errorf("Enrich: %w", err)
	}
	state.Enriched = transform.Enrich(state.Canonical, transform.LatestEntries(entries))
	return nil
}

// Step 7: MaterializeStep replaces the dashboard snapshot.
type MaterializeStep struct {
	Dashboard store.DashboardRepository
}

func (s *MaterializeStep) Execute(ctx context.Context, state *PipelineState) error {
	records := transform.Materialize(state.Enriched)
	if err := s.Dashboard.ReplaceDashboard(ctx, records); err != nil {
		return fmt.Errorf("Materialize: %w", err)
	}
	state.Result.DashboardRows = len(records)
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}
