package store

import (
	"context"
	"sync/atomic"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/google/uuid"
)

// RawRepository stores parsed statement rows. Appends never deduplicate;
// duplicates are resolved when rows are read.
type RawRepository interface {
	// AppendRaw stamps and appends rows to the institution's raw table and
	// returns the number of rows written.
	AppendRaw(ctx context.Context, inst domain.Institution, rows []domain.RawRow) (int, error)

	// ListRaw returns every stored raw row of an institution, duplicates included.
	ListRaw(ctx context.Context, inst domain.Institution) ([]domain.RawRow, error)

	// ExistingRowHashes reports which of the given hashes are already stored.
	ExistingRowHashes(ctx context.Context, inst domain.Institution, hashes []string) (map[string]bool, error)

	// FileProcessed reports whether any raw table holds rows of the file.
	FileProcessed(ctx context.Context, fileHash string) (bool, error)

	// DeleteFile removes every raw row of the file and returns how many were removed.
	DeleteFile(ctx context.Context, fileHash string) (int64, error)
}

// CategoryCacheRepository stores classifier results keyed by normalized description.
type CategoryCacheRepository interface {
	// ListCacheEntries returns the newest entry per description key.
	ListCacheEntries(ctx context.Context) ([]domain.CategoryCacheEntry, error)

	// AppendCacheEntries appends entries; older entries for the same key stay
	// stored but are shadowed on read.
	AppendCacheEntries(ctx context.Context, entries []domain.CategoryCacheEntry) error
}

// CategoryRepository stores the two-level taxonomy.
type CategoryRepository interface {
	ListActiveCategories(ctx context.Context) ([]domain.Category, error)

	// InitializeCategories inserts the given taxonomy only when the table is
	// empty and returns how many rows were inserted.
	InitializeCategories(ctx context.Context, categories []domain.Category) (int, error)
}

// DashboardRepository stores the materialized dashboard snapshot.
type DashboardRepository interface {
	// ReplaceDashboard swaps the whole snapshot for records.
	ReplaceDashboard(ctx context.Context, records []domain.DashboardRecord) error

	// QueryDashboard returns records whose date lies in [start, end].
	QueryDashboard(ctx context.Context, start, end civil.Date) ([]domain.DashboardRecord, error)
}

// Repository is everything a backend provides.
type Repository interface {
	RawRepository
	CategoryCacheRepository
	CategoryRepository
	DashboardRepository

	// EnsureSchema creates missing tables and adds missing columns.
	EnsureSchema(ctx context.Context) error

	Close() error
}

// lastIngestSeq starts at the process start time so sequences keep growing
// across restarts.
var lastIngestSeq atomic.Int64

func init() {
	lastIngestSeq.Store(time.Now().UnixNano())
}

// StampForAppend returns copies of rows carrying the provenance of one append
// call: a shared ingest id, an ingest sequence that increases across appends
// in arrival order, and a creation time truncated to microseconds so every
// backend round-trips it exactly.
func StampForAppend(rows []domain.RawRow, now time.Time) []domain.RawRow {
	ingestID := uuid.NewString()
	createdAt := now.UTC().Truncate(time.Microsecond)
	first := lastIngestSeq.Add(int64(len(rows))) - int64(len(rows)) + 1

	out := make([]domain.RawRow, len(rows))
	for i, row := range rows {
		row.IngestID = ingestID
		row.IngestSeq = first + int64(i)
		row.CreatedAt = createdAt
		out[i] = row
	}
	return out
}
