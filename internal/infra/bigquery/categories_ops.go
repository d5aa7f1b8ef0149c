package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/money-mirror/internal/domain"
)

// ListActiveCategoriesWithClient returns the active taxonomy ordered by
// general then detailed category.
func ListActiveCategoriesWithClient(ctx context.Context, client *bigquery.Client, datasetID string) ([]domain.Category, error) {
	rows, err := readAllWithClient[CategoryRow](ctx, client, `
		SELECT
		  category_id,
		  general_category,
		  detailed_category,
		  is_active,
		  created_at
		FROM `+tableRef(client, datasetID, categoriesTable)+`
		WHERE is_active IS NULL OR is_active = TRUE
		ORDER BY general_category, detailed_category
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("ListActiveCategories: %w", err)
	}

	out := make([]domain.Category, len(rows))
	for i, r := range rows {
		out[i] = r.toDomain()
	}
	return out, nil
}

// InitializeCategoriesWithClient loads categories only when dim_categories is
// empty and returns the number of inserted rows.
func InitializeCategoriesWithClient(ctx context.Context, client *bigquery.Client, datasetID string, categories []domain.Category) (int, error) {
	counts, err := readAllWithClient[countRow](ctx, client,
		`SELECT COUNT(*) AS n FROM `+tableRef(client, datasetID, categoriesTable), nil)
	if err != nil {
		return 0, fmt.Errorf("InitializeCategories: count: %w", err)
	}
	if len(counts) > 0 && counts[0].N > 0 {
		return 0, nil
	}

	rows := make([]CategoryRow, len(categories))
	for i, c := range categories {
		rows[i] = toCategoryRow(c)
	}
	if err := loadRowsWithClient(ctx, client, datasetID, categoriesTable, categoriesSchema, rows, bigquery.WriteAppend); err != nil {
		return 0, fmt.Errorf("InitializeCategories: load: %w", err)
	}
	return len(rows), nil
}
