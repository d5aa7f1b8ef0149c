package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/shopspring/decimal"
)

// ReplaceDashboard implements store.DashboardRepository. The delete and the
// inserts share one transaction, so readers see either snapshot in full.
func (r *Repository) ReplaceDashboard(ctx context.Context, records []domain.DashboardRecord) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM dashboard_transactions"); err != nil {
			return fmt.Errorf("clear: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO dashboard_transactions (
				transaction_id, institution, transaction_date, description, amount, transaction_type,
				merchant, merchant_address, balance, foreign_spend_amount,
				source_file, source_row_hash, processed_at,
				general_category, detailed_category, confidence_score,
				year, month, day, day_of_week, year_month, year_quarter,
				spend_amount, income_amount
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, rec := range records {
			var score sql.NullFloat64
			if rec.ConfidenceScore != nil {
				score = sql.NullFloat64{Float64: *rec.ConfidenceScore, Valid: true}
			}
			_, err := stmt.ExecContext(ctx,
				rec.TransactionID, string(rec.Institution), rec.TransactionDate.String(), rec.Description,
				rec.Amount.String(), string(rec.TransactionType),
				nullString(rec.Merchant), nullString(rec.MerchantAddress), nullDecimal(rec.Balance), nullDecimal(rec.ForeignSpendAmount),
				rec.SourceFile, rec.SourceRowHash, formatTimestamp(rec.ProcessedAt),
				rec.GeneralCategory, rec.DetailedCategory, score,
				rec.Year, rec.Month, rec.Day, rec.DayOfWeek, rec.YearMonth, rec.YearQuarter,
				rec.SpendAmount.String(), rec.IncomeAmount.String(),
			)
			if err != nil {
				return fmt.Errorf("insert %s: %w", rec.TransactionID, err)
			}
		}
		return nil
	})
	return domain.NewStoreError("replace dashboard", err)
}

// QueryDashboard implements store.DashboardRepository.
func (r *Repository) QueryDashboard(ctx context.Context, start, end civil.Date) ([]domain.DashboardRecord, error) {
	recs, err := r.queryDashboard(ctx, start, end)
	return recs, domain.NewStoreError("query dashboard", err)
}

func (r *Repository) queryDashboard(ctx context.Context, start, end civil.Date) ([]domain.DashboardRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT transaction_id, institution, transaction_date, description, amount, transaction_type,
		       merchant, merchant_address, balance, foreign_spend_amount,
		       source_file, source_row_hash, processed_at,
		       general_category, detailed_category, confidence_score,
		       year, month, day, day_of_week, year_month, year_quarter,
		       spend_amount, income_amount
		FROM dashboard_transactions
		WHERE transaction_date >= ? AND transaction_date <= ?
		ORDER BY transaction_date, transaction_id`,
		start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []domain.DashboardRecord
	for rows.Next() {
		var (
			rec                        domain.DashboardRecord
			inst, date, amount, txType string
			merchant, address, balance sql.NullString
			foreign                    sql.NullString
			processedAt, spend, income string
			score                      sql.NullFloat64
		)
		if err := rows.Scan(&rec.TransactionID, &inst, &date, &rec.Description, &amount, &txType,
			&merchant, &address, &balance, &foreign,
			&rec.SourceFile, &rec.SourceRowHash, &processedAt,
			&rec.GeneralCategory, &rec.DetailedCategory, &score,
			&rec.Year, &rec.Month, &rec.Day, &rec.DayOfWeek, &rec.YearMonth, &rec.YearQuarter,
			&spend, &income); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		rec.Institution = domain.Institution(inst)
		rec.TransactionType = domain.TransactionType(txType)
		rec.Merchant = merchant.String
		rec.MerchantAddress = address.String
		if score.Valid {
			v := score.Float64
			rec.ConfidenceScore = &v
		}

		if rec.TransactionDate, err = civil.ParseDate(date); err != nil {
			return nil, fmt.Errorf("transaction %s: date: %w", rec.TransactionID, err)
		}
		if rec.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("transaction %s: amount: %w", rec.TransactionID, err)
		}
		if rec.SpendAmount, err = decimal.NewFromString(spend); err != nil {
			return nil, fmt.Errorf("transaction %s: spend_amount: %w", rec.TransactionID, err)
		}
		if rec.IncomeAmount, err = decimal.NewFromString(income); err != nil {
			return nil, fmt.Errorf("transaction %s: income_amount: %w", rec.TransactionID, err)
		}
		if rec.Balance, err = parseNullDecimal(balance); err != nil {
			return nil, fmt.Errorf("transaction %s: balance: %w", rec.TransactionID, err)
		}
		if rec.ForeignSpendAmount, err = parseNullDecimal(foreign); err != nil {
			return nil, fmt.Errorf("transaction %s: foreign_spend_amount: %w", rec.TransactionID, err)
		}
		if rec.ProcessedAt, err = parseTimestamp(processedAt); err != nil {
			return nil, fmt.Errorf("transaction %s: processed_at: %w", rec.TransactionID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
