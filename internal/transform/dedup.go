package transform

import (
	"sort"

	"github.com/dvloznov/money-mirror/internal/domain"
)

// Dedup keeps one row per row hash: the earliest by CreatedAt, then by
// arrival (IngestSeq), with IngestID as a last resort. The result is ordered
// by that same key.
func Dedup(rows []domain.RawRow) []domain.RawRow {
	winners := make(map[string]domain.RawRow, len(rows))
	for _, row := range rows {
		current, ok := winners[row.RowHash]
		if !ok || earlier(row, current) {
			winners[row.RowHash] = row
		}
	}

	out := make([]domain.RawRow, 0, len(winners))
	for _, row := range winners {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return earlier(out[i], out[j]) })
	return out
}

func earlier(a, b domain.RawRow) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	if a.IngestSeq != b.IngestSeq {
		return a.IngestSeq < b.IngestSeq
	}
	if a.IngestID != b.IngestID {
		return a.IngestID < b.IngestID
	}
	return a.RowHash < b.RowHash
}
