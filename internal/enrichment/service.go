package enrichment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/dvloznov/money-mirror/internal/hasher"
	"github.com/dvloznov/money-mirror/internal/logger"
	"github.com/dvloznov/money-mirror/internal/store"
	"github.com/dvloznov/money-mirror/internal/taxonomy"
	"github.com/dvloznov/money-mirror/internal/transform"
	"golang.org/x/time/rate"
)

const (
	DefaultBatchSize = 20
	DefaultTimeout   = 60 * time.Second
)

// ValidatorSource supplies the taxonomy used to check model answers.
type ValidatorSource interface {
	Validator(ctx context.Context) (*taxonomy.Validator, error)
}

// Options tunes batching and pacing. Zero values pick the defaults;
// RequestsPerSecond <= 0 disables pacing.
type Options struct {
	BatchSize         int
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Service runs cache-first classification.
type Service struct {
	classifier Classifier
	cache      store.CategoryCacheRepository
	taxonomy   ValidatorSource
	batchSize  int
	timeout    time.Duration
	limiter    *rate.Limiter
	now        func() time.Time
}

// NewService creates a Service.
func NewService(classifier Classifier, cache store.CategoryCacheRepository, taxonomy ValidatorSource, opts Options) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Service{
		classifier: classifier,
		cache:      cache,
		taxonomy:   taxonomy,
		batchSize:  opts.BatchSize,
		timeout:    opts.Timeout,
		limiter:    rate.NewLimiter(limit, 1),
		now:        time.Now,
	}
}

// FindUncategorized returns the sorted distinct normalized descriptions of
// txs that have no cache entry. Keys in forced are returned even when cached.
func (s *Service) FindUncategorized(ctx context.Context, txs []domain.CanonicalTransaction, forced map[string]bool) ([]string, error) {
	seen := make(map[string]bool)
	var keys []string
	for _, d := range transform.DistinctDescriptions(txs) {
		key := hasher.NormalizeDescription(d)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return keys, nil
	}

	entries, err := s.cache.ListCacheEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindUncategorized: %w", err)
	}
	cached := transform.LatestEntries(entries)

	var missing []string
	for _, key := range keys {
		if _, ok := cached[key]; !ok || forced[key] {
			missing = append(missing, key)
		}
	}
	return missing, nil
}

// ClassifyResult summarizes one ClassifyAndCache call.
type ClassifyResult struct {
	Batches       int
	NewCategories int
	FailedBatches []*domain.ClassificationBatchError
	Warnings      []string
}

// ClassifyAndCache classifies descriptions in batches and appends every
// valid answer to the cache. A failed batch is recorded and skipped; its
// descriptions stay uncached. Only store failures abort the call.
func (s *Service) ClassifyAndCache(ctx context.Context, descriptions []string) (*ClassifyResult, error) {
	res := &ClassifyResult{}
	if len(descriptions) == 0 {
		return res, nil
	}
	log := logger.FromContext(ctx)

	validator, err := s.taxonomy.Validator(ctx)
	if err != nil {
		return nil, fmt.Errorf("ClassifyAndCache: loading taxonomy: %w", err)
	}

	batches := splitBatches(descriptions, s.batchSize)
	res.Batches = len(batches)

	for i, batch := range batches {
		num := i + 1
		if err := s.limiter.Wait(ctx); err != nil {
			return res, fmt.Errorf("ClassifyAndCache: waiting for rate limiter: %w", err)
		}

		results, err := s.classifyBatch(ctx, batch)
		if err != nil {
			batchErr := &domain.ClassificationBatchError{Batch: num, Descriptions: batch, Err: err}
			res.FailedBatches = append(res.FailedBatches, batchErr)
			log.Warn().Err(err).Int("batch", num).Int("descriptions", len(batch)).Msg("Classification batch failed")
			continue
		}

		entries, warnings := s.toCacheEntries(batch, results, validator)
		res.Warnings = append(res.Warnings, warnings...)
		for _, w := range warnings {
			log.Warn().Int("batch", num).Msg(w)
		}
		if len(entries) == 0 {
			continue
		}

		if err := s.cache.AppendCacheEntries(ctx, entries); err != nil {
			return res, fmt.Errorf("ClassifyAndCache: batch %d: %w", num, err)
		}
		res.NewCategories += len(entries)
		log.Info().Int("batch", num).Int("cached", len(entries)).Msg("Classification batch cached")
	}

	return res, nil
}

func (s *Service) classifyBatch(ctx context.Context, batch []string) ([]domain.Classification, error) {
	bctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.classifier.Classify(bctx, batch)
}

// toCacheEntries keeps answers that belong to the batch, name a general
// category and carry a confidence in [0, 1]. Pairs found in the taxonomy take
// its spelling; other pairs are cached as answered, with a warning, so the
// description is not sent again. Dropped answers become warnings.
func (s *Service) toCacheEntries(batch []string, results []domain.Classification, validator *taxonomy.Validator) ([]domain.CategoryCacheEntry, []string) {
	byKey := make(map[string]domain.Classification, len(results))
	for _, r := range results {
		key := hasher.NormalizeDescription(r.Description)
		if _, dup := byKey[key]; !dup {
			byKey[key] = r
		}
	}

	now := s.now().UTC()
	model := s.classifier.ModelVersion()

	var (
		entries  []domain.CategoryCacheEntry
		warnings []string
	)
	for _, desc := range batch {
		key := hasher.NormalizeDescription(desc)
		r, ok := byKey[key]
		if !ok {
			warnings = append(warnings, fmt.Sprintf("no classification returned for %q", desc))
			continue
		}
		if r.ConfidenceScore < 0 || r.ConfidenceScore > 1 {
			warnings = append(warnings, fmt.Sprintf("confidence %.3f out of range for %q", r.ConfidenceScore, desc))
			continue
		}
		general, detailed, err := validator.Canonicalize(r.GeneralCategory, r.DetailedCategory)
		if err != nil {
			general, detailed = strings.TrimSpace(r.GeneralCategory), strings.TrimSpace(r.DetailedCategory)
			if general == "" {
				warnings = append(warnings, fmt.Sprintf("no general category returned for %q", desc))
				continue
			}
			if detailed == "" {
				detailed = domain.UncategorizedLabel
			}
			warnings = append(warnings, fmt.Sprintf("caching %q outside the active taxonomy: %v", desc, err))
		}
		entries = append(entries, domain.CategoryCacheEntry{
			DescriptionKey:      key,
			OriginalDescription: desc,
			GeneralCategory:     general,
			DetailedCategory:    detailed,
			ConfidenceScore:     r.ConfidenceScore,
			ModelVersion:        model,
			CreatedAt:           now,
			UpdatedAt:           now,
		})
	}
	return entries, warnings
}

func splitBatches(items []string, size int) [][]string {
	var batches [][]string
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}
