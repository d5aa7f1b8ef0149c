package domain

import "time"

// UncategorizedLabel is used for both category levels when a description has
// no cache entry.
const UncategorizedLabel = "Uncategorized"

// CategoryCacheEntry is one stored classification for a normalized
// description. Entries are append-only; readers keep the newest per key.
type CategoryCacheEntry struct {
	DescriptionKey      string
	OriginalDescription string
	GeneralCategory     string
	DetailedCategory    string
	ConfidenceScore     float64
	ModelVersion        string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Category is one row of the two-level taxonomy.
type Category struct {
	CategoryID       string
	GeneralCategory  string
	DetailedCategory string
	IsActive         bool
	CreatedAt        time.Time
}

// Classification is a single model answer for one description.
type Classification struct {
	Description      string
	GeneralCategory  string
	DetailedCategory string
	ConfidenceScore  float64
}
