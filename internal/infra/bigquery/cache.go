package bigquery

import (
	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/money-mirror/internal/domain"
)

// CategoryCacheRow maps one row of dim_description_categories.
type CategoryCacheRow struct {
	DescriptionKey      string                 `bigquery:"description_key" json:"description_key"`
	OriginalDescription bigquery.NullString    `bigquery:"original_description" json:"original_description"`
	GeneralCategory     string                 `bigquery:"general_category" json:"general_category"`
	DetailedCategory    string                 `bigquery:"detailed_category" json:"detailed_category"`
	ConfidenceScore     bigquery.NullFloat64   `bigquery:"confidence_score" json:"confidence_score"`
	ModelVersion        bigquery.NullString    `bigquery:"model_version" json:"model_version"`
	CreatedAt           bigquery.NullTimestamp `bigquery:"created_at" json:"created_at"`
	UpdatedAt           bigquery.NullTimestamp `bigquery:"updated_at" json:"updated_at"`
}

func toCategoryCacheRow(e domain.CategoryCacheEntry) CategoryCacheRow {
	return CategoryCacheRow{
		DescriptionKey:      e.DescriptionKey,
		OriginalDescription: nullString(e.OriginalDescription),
		GeneralCategory:     e.GeneralCategory,
		DetailedCategory:    e.DetailedCategory,
		ConfidenceScore:     bigquery.NullFloat64{Float64: e.ConfidenceScore, Valid: true},
		ModelVersion:        nullString(e.ModelVersion),
		CreatedAt:           bigquery.NullTimestamp{Timestamp: e.CreatedAt.UTC(), Valid: true},
		UpdatedAt:           bigquery.NullTimestamp{Timestamp: e.UpdatedAt.UTC(), Valid: true},
	}
}

func (row CategoryCacheRow) toDomain() domain.CategoryCacheEntry {
	return domain.CategoryCacheEntry{
		DescriptionKey:      row.DescriptionKey,
		OriginalDescription: row.OriginalDescription.StringVal,
		GeneralCategory:     row.GeneralCategory,
		DetailedCategory:    row.DetailedCategory,
		ConfidenceScore:     row.ConfidenceScore.Float64,
		ModelVersion:        row.ModelVersion.StringVal,
		CreatedAt:           row.CreatedAt.Timestamp,
		UpdatedAt:           row.UpdatedAt.Timestamp,
	}
}
