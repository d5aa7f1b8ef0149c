// Package memory is a process-local store backend. It backs tests and
// STORE_BACKEND=memory; nothing survives a restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/dvloznov/money-mirror/internal/store"
)

// Store keeps every table in maps guarded by one lock.
type Store struct {
	mu sync.RWMutex

	raw        map[domain.Institution][]domain.RawRow
	cache      []domain.CategoryCacheEntry
	categories []domain.Category
	dashboard  []domain.DashboardRecord

	now func() time.Time
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		raw: make(map[domain.Institution][]domain.RawRow),
		now: time.Now,
	}
}

// SetClock replaces the time source used to stamp appended rows.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// EnsureSchema is a no-op; maps need no schema.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

// AppendRaw implements store.RawRepository.
func (s *Store) AppendRaw(ctx context.Context, inst domain.Institution, rows []domain.RawRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, domain.NewStoreError("append raw", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stamped := store.StampForAppend(rows, s.now())
	for i := range stamped {
		stamped[i].Institution = inst
	}
	s.raw[inst] = append(s.raw[inst], stamped...)
	return len(stamped), nil
}

// ListRaw implements store.RawRepository.
func (s *Store) ListRaw(ctx context.Context, inst domain.Institution) ([]domain.RawRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStoreError("list raw", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.RawRow, len(s.raw[inst]))
	copy(out, s.raw[inst])
	return out, nil
}

// ExistingRowHashes implements store.RawRepository.
func (s *Store) ExistingRowHashes(ctx context.Context, inst domain.Institution, hashes []string) (map[string]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStoreError("existing row hashes", err)
	}

	wanted := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		wanted[h] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]bool)
	for _, row := range s.raw[inst] {
		if wanted[row.RowHash] {
			found[row.RowHash] = true
		}
	}
	return found, nil
}

// FileProcessed implements store.RawRepository.
func (s *Store) FileProcessed(ctx context.Context, fileHash string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, domain.NewStoreError("file processed", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rows := range s.raw {
		for _, row := range rows {
			if row.FileHash == fileHash {
				return true, nil
			}
		}
	}
	return false, nil
}

// DeleteFile implements store.RawRepository.
func (s *Store) DeleteFile(ctx context.Context, fileHash string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, domain.NewStoreError("delete file", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for inst, rows := range s.raw {
		kept := rows[:0]
		for _, row := range rows {
			if row.FileHash == fileHash {
				removed++
				continue
			}
			kept = append(kept, row)
		}
		s.raw[inst] = kept
	}
	return removed, nil
}

// ListCacheEntries implements store.CategoryCacheRepository.
func (s *Store) ListCacheEntries(ctx context.Context) ([]domain.CategoryCacheEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStoreError("list cache entries", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]domain.CategoryCacheEntry)
	for _, e := range s.cache {
		cur, ok := latest[e.DescriptionKey]
		if !ok || !e.UpdatedAt.Before(cur.UpdatedAt) {
			latest[e.DescriptionKey] = e
		}
	}

	out := make([]domain.CategoryCacheEntry, 0, len(latest))
	for _, e := range latest {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DescriptionKey < out[j].DescriptionKey })
	return out, nil
}

// AppendCacheEntries implements store.CategoryCacheRepository.
func (s *Store) AppendCacheEntries(ctx context.Context, entries []domain.CategoryCacheEntry) error {
	if err := ctx.Err(); err != nil {
		return domain.NewStoreError("append cache entries", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache = append(s.cache, entries...)
	return nil
}

// CacheSize returns the number of stored cache entries, shadowed ones included.
func (s *Store) CacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}

// ListActiveCategories implements store.CategoryRepository.
func (s *Store) ListActiveCategories(ctx context.Context) ([]domain.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStoreError("list categories", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Category
	for _, c := range s.categories {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

// InitializeCategories implements store.CategoryRepository.
func (s *Store) InitializeCategories(ctx context.Context, categories []domain.Category) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, domain.NewStoreError("initialize categories", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.categories) > 0 {
		return 0, nil
	}
	s.categories = append(s.categories, categories...)
	return len(categories), nil
}

// ReplaceDashboard implements store.DashboardRepository.
func (s *Store) ReplaceDashboard(ctx context.Context, records []domain.DashboardRecord) error {
	if err := ctx.Err(); err != nil {
		return domain.NewStoreError("replace dashboard", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.dashboard = make([]domain.DashboardRecord, len(records))
	copy(s.dashboard, records)
	return nil
}

// QueryDashboard implements store.DashboardRepository.
func (s *Store) QueryDashboard(ctx context.Context, start, end civil.Date) ([]domain.DashboardRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStoreError("query dashboard", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.DashboardRecord
	for _, r := range s.dashboard {
		d := r.TransactionDate
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

var _ store.Repository = (*Store)(nil)
