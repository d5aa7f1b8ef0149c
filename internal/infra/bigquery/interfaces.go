package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/dvloznov/money-mirror/internal/store"
)

// BigQueryRepository implements store.Repository on one dataset. It holds a
// shared client so operations do not reconnect. Every failure is returned as
// a *domain.StoreError.
type BigQueryRepository struct {
	client   *bigquery.Client
	dataset  string
	location string
	now      func() time.Time
}

// NewBigQueryRepository connects to BigQuery for the given project.
func NewBigQueryRepository(ctx context.Context, projectID, dataset, location string) (*BigQueryRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, domain.NewStoreError("connect", fmt.Errorf("NewBigQueryRepository: creating client: %w", err))
	}
	client.Location = location
	return NewBigQueryRepositoryWithClient(client, dataset, location), nil
}

// NewBigQueryRepositoryWithClient wraps an existing client.
func NewBigQueryRepositoryWithClient(client *bigquery.Client, dataset, location string) *BigQueryRepository {
	return &BigQueryRepository{
		client:   client,
		dataset:  dataset,
		location: location,
		now:      time.Now,
	}
}

// Close closes the BigQuery client connection.
func (r *BigQueryRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// EnsureSchema creates the dataset and tables, adding missing columns.
func (r *BigQueryRepository) EnsureSchema(ctx context.Context) error {
	return domain.NewStoreError("ensure schema", EnsureSchemaWithClient(ctx, r.client, r.dataset, r.location))
}

// AppendRaw stamps rows with ingest provenance and appends them.
func (r *BigQueryRepository) AppendRaw(ctx context.Context, inst domain.Institution, rows []domain.RawRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	stamped := store.StampForAppend(rows, r.now())
	if err := AppendRawWithClient(ctx, r.client, r.dataset, inst, stamped); err != nil {
		return 0, domain.NewStoreError("append raw", err)
	}
	return len(stamped), nil
}

// ListRaw delegates to ListRawWithClient.
func (r *BigQueryRepository) ListRaw(ctx context.Context, inst domain.Institution) ([]domain.RawRow, error) {
	rows, err := ListRawWithClient(ctx, r.client, r.dataset, inst)
	return rows, domain.NewStoreError("list raw", err)
}

// ExistingRowHashes delegates to ExistingRowHashesWithClient.
func (r *BigQueryRepository) ExistingRowHashes(ctx context.Context, inst domain.Institution, hashes []string) (map[string]bool, error) {
	found, err := ExistingRowHashesWithClient(ctx, r.client, r.dataset, inst, hashes)
	return found, domain.NewStoreError("existing row hashes", err)
}

// FileProcessed delegates to FileProcessedWithClient.
func (r *BigQueryRepository) FileProcessed(ctx context.Context, fileHash string) (bool, error) {
	ok, err := FileProcessedWithClient(ctx, r.client, r.dataset, fileHash)
	return ok, domain.NewStoreError("file processed", err)
}

// DeleteFile delegates to DeleteFileWithClient.
func (r *BigQueryRepository) DeleteFile(ctx context.Context, fileHash string) (int64, error) {
	n, err := DeleteFileWithClient(ctx, r.client, r.dataset, fileHash)
	return n, domain.NewStoreError("delete file", err)
}

// ListCacheEntries delegates to ListCacheEntriesWithClient.
func (r *BigQueryRepository) ListCacheEntries(ctx context.Context) ([]domain.CategoryCacheEntry, error) {
	entries, err := ListCacheEntriesWithClient(ctx, r.client, r.dataset)
	return entries, domain.NewStoreError("list cache entries", err)
}

// AppendCacheEntries delegates to AppendCacheEntriesWithClient.
func (r *BigQueryRepository) AppendCacheEntries(ctx context.Context, entries []domain.CategoryCacheEntry) error {
	return domain.NewStoreError("append cache entries", AppendCacheEntriesWithClient(ctx, r.client, r.dataset, entries))
}

// ListActiveCategories delegates to ListActiveCategoriesWithClient.
func (r *BigQueryRepository) ListActiveCategories(ctx context.Context) ([]domain.Category, error) {
	cats, err := ListActiveCategoriesWithClient(ctx, r.client, r.dataset)
	return cats, domain.NewStoreError("list categories", err)
}

// InitializeCategories delegates to InitializeCategoriesWithClient.
func (r *BigQueryRepository) InitializeCategories(ctx context.Context, categories []domain.Category) (int, error) {
	n, err := InitializeCategoriesWithClient(ctx, r.client, r.dataset, categories)
	return n, domain.NewStoreError("initialize categories", err)
}

// ReplaceDashboard delegates to ReplaceDashboardWithClient.
func (r *BigQueryRepository) ReplaceDashboard(ctx context.Context, records []domain.DashboardRecord) error {
	return domain.NewStoreError("replace dashboard", ReplaceDashboardWithClient(ctx, r.client, r.dataset, records))
}

// QueryDashboard delegates to QueryDashboardWithClient.
func (r *BigQueryRepository) QueryDashboard(ctx context.Context, start, end civil.Date) ([]domain.DashboardRecord, error) {
	recs, err := QueryDashboardWithClient(ctx, r.client, r.dataset, start, end)
	return recs, domain.NewStoreError("query dashboard", err)
}

var _ store.Repository = (*BigQueryRepository)(nil)
