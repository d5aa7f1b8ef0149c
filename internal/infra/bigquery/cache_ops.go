package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/money-mirror/internal/domain"
)

// ListCacheEntriesWithClient returns the newest cache entry per description key.
func ListCacheEntriesWithClient(ctx context.Context, client *bigquery.Client, datasetID string) ([]domain.CategoryCacheEntry, error) {
	rows, err := readAllWithClient[CategoryCacheRow](ctx, client, `
		SELECT
		  description_key,
		  original_description,
		  general_category,
		  detailed_category,
		  confidence_score,
		  model_version,
		  created_at,
		  updated_at
		FROM `+tableRef(client, datasetID, categoryCacheTable)+`
		WHERE TRUE
		QUALIFY ROW_NUMBER() OVER (PARTITION BY description_key ORDER BY updated_at DESC) = 1
		ORDER BY description_key
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("ListCacheEntries: %w", err)
	}

	out := make([]domain.CategoryCacheEntry, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// AppendCacheEntriesWithClient appends classifier results to the cache table.
func AppendCacheEntriesWithClient(ctx context.Context, client *bigquery.Client, datasetID string, entries []domain.CategoryCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([]CategoryCacheRow, len(entries))
	for i, e := range entries {
		rows[i] = toCategoryCacheRow(e)
	}
	if err := loadRowsWithClient(ctx, client, datasetID, categoryCacheTable, categoryCacheSchema, rows, bigquery.WriteAppend); err != nil {
		return fmt.Errorf("AppendCacheEntries: %w", err)
	}
	return nil
}
