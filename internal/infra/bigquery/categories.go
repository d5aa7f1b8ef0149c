package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/money-mirror/internal/domain"
)

// CategoryRow maps one row of dim_categories.
type CategoryRow struct {
	CategoryID       string                 `bigquery:"category_id" json:"category_id"`
	GeneralCategory  string                 `bigquery:"general_category" json:"general_category"`
	DetailedCategory string                 `bigquery:"detailed_category" json:"detailed_category"`
	IsActive         bigquery.NullBool      `bigquery:"is_active" json:"is_active"`
	CreatedAt        bigquery.NullTimestamp `bigquery:"created_at" json:"created_at"`
}

func toCategoryRow(c domain.Category) CategoryRow {
	row := CategoryRow{
		CategoryID:       c.CategoryID,
		GeneralCategory:  c.GeneralCategory,
		DetailedCategory: c.DetailedCategory,
		IsActive:         bigquery.NullBool{Bool: c.IsActive, Valid: true},
	}
	if !c.CreatedAt.IsZero() {
		row.CreatedAt = bigquery.NullTimestamp{Timestamp: c.CreatedAt.UTC().Truncate(time.Microsecond), Valid: true}
	}
	return row
}

func (row CategoryRow) toDomain() domain.Category {
	return domain.Category{
		CategoryID:       row.CategoryID,
		GeneralCategory:  row.GeneralCategory,
		DetailedCategory: row.DetailedCategory,
		// NULL is_active counts as active, matching the column default.
		IsActive:  !row.IsActive.Valid || row.IsActive.Bool,
		CreatedAt: row.CreatedAt.Timestamp,
	}
}
