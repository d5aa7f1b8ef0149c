package transform

import (
	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/dvloznov/money-mirror/internal/hasher"
)

// LatestEntries reduces an append-only cache to one entry per key, keeping
// the newest UpdatedAt (last writer wins).
func LatestEntries(entries []domain.CategoryCacheEntry) map[string]domain.CategoryCacheEntry {
	latest := make(map[string]domain.CategoryCacheEntry, len(entries))
	for _, e := range entries {
		key := hasher.NormalizeDescription(e.DescriptionKey)
		if cur, ok := latest[key]; !ok || e.UpdatedAt.After(cur.UpdatedAt) {
			latest[key] = e
		}
	}
	return latest
}

// Enrich left-joins every canonical transaction to the cache. Transactions
// without a cache entry get the Uncategorized label and no confidence.
func Enrich(txs []domain.CanonicalTransaction, cache map[string]domain.CategoryCacheEntry) []domain.EnrichedTransaction {
	out := make([]domain.EnrichedTransaction, 0, len(txs))
	for _, tx := range txs {
		et := domain.EnrichedTransaction{
			CanonicalTransaction: tx,
			GeneralCategory:      domain.UncategorizedLabel,
			DetailedCategory:     domain.UncategorizedLabel,
		}
		if entry, ok := cache[hasher.NormalizeDescription(tx.Description)]; ok {
			score := entry.ConfidenceScore
			et.GeneralCategory = entry.GeneralCategory
			et.DetailedCategory = entry.DetailedCategory
			et.ConfidenceScore = &score
		}
		out = append(out, et)
	}
	return out
}
