package transform

import (
	"sort"

	"github.com/dvloznov/money-mirror/internal/domain"
)

// Union concatenates per-institution canonical sets, ordered by date then
// transaction id so repeated runs produce identical output.
func Union(sets ...[]domain.CanonicalTransaction) []domain.CanonicalTransaction {
	var n int
	for _, s := range sets {
		n += len(s)
	}

	out := make([]domain.CanonicalTransaction, 0, n)
	for _, s := range sets {
		out = append(out, s...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TransactionDate != out[j].TransactionDate {
			return out[i].TransactionDate.Before(out[j].TransactionDate)
		}
		return out[i].TransactionID < out[j].TransactionID
	})
	return out
}

// DistinctDescriptions returns the sorted set of non-empty descriptions.
func DistinctDescriptions(txs []domain.CanonicalTransaction) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tx := range txs {
		if tx.Description == "" || seen[tx.Description] {
			continue
		}
		seen[tx.Description] = true
		out = append(out, tx.Description)
	}
	sort.Strings(out)
	return out
}
