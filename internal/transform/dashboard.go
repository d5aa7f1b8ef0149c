package transform

import (
	"fmt"
	"time"

	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/shopspring/decimal"
)

// Materialize derives the dashboard columns for every enriched transaction.
func Materialize(txs []domain.EnrichedTransaction) []domain.DashboardRecord {
	out := make([]domain.DashboardRecord, 0, len(txs))
	for _, tx := range txs {
		d := tx.TransactionDate
		quarter := (int(d.Month)-1)/3 + 1

		rec := domain.DashboardRecord{
			EnrichedTransaction: tx,
			Year:                d.Year,
			Month:               int(d.Month),
			Day:                 d.Day,
			DayOfWeek:           d.In(time.UTC).Weekday().String(),
			YearMonth:           fmt.Sprintf("%04d-%02d", d.Year, int(d.Month)),
			YearQuarter:         fmt.Sprintf("%04d-Q%d", d.Year, quarter),
			SpendAmount:         decimal.Max(decimal.Zero, tx.Amount.Neg()),
			IncomeAmount:        decimal.Max(decimal.Zero, tx.Amount),
		}
		out = append(out, rec)
	}
	return out
}
