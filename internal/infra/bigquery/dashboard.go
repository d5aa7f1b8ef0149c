package bigquery

import (
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/shopspring/decimal"
)

// DashboardRow maps one row of dashboard_transactions.
type DashboardRow struct {
	TransactionID      string               `bigquery:"transaction_id" json:"transaction_id"`
	Institution        string               `bigquery:"institution" json:"institution"`
	TransactionDate    civil.Date           `bigquery:"transaction_date" json:"transaction_date"`
	Description        string               `bigquery:"description" json:"description"`
	Amount             string               `bigquery:"amount" json:"amount"`
	TransactionType    string               `bigquery:"transaction_type" json:"transaction_type"`
	Merchant           bigquery.NullString  `bigquery:"merchant" json:"merchant"`
	MerchantAddress    bigquery.NullString  `bigquery:"merchant_address" json:"merchant_address"`
	Balance            bigquery.NullString  `bigquery:"balance" json:"balance"`
	ForeignSpendAmount bigquery.NullString  `bigquery:"foreign_spend_amount" json:"foreign_spend_amount"`
	SourceFile         string               `bigquery:"source_file" json:"source_file"`
	SourceRowHash      string               `bigquery:"source_row_hash" json:"source_row_hash"`
	ProcessedAt        time.Time            `bigquery:"processed_at" json:"processed_at"`
	GeneralCategory    string               `bigquery:"general_category" json:"general_category"`
	DetailedCategory   string               `bigquery:"detailed_category" json:"detailed_category"`
	ConfidenceScore    bigquery.NullFloat64 `bigquery:"confidence_score" json:"confidence_score"`
	Year               int64                `bigquery:"year" json:"year"`
	Month              int64                `bigquery:"month" json:"month"`
	Day                int64                `bigquery:"day" json:"day"`
	DayOfWeek          string               `bigquery:"day_of_week" json:"day_of_week"`
	YearMonth          string               `bigquery:"year_month" json:"year_month"`
	YearQuarter        string               `bigquery:"year_quarter" json:"year_quarter"`
	SpendAmount        string               `bigquery:"spend_amount" json:"spend_amount"`
	IncomeAmount       string               `bigquery:"income_amount" json:"income_amount"`
}

const dashboardColumns = `
	transaction_id, institution, transaction_date, description,
	CAST(amount AS STRING) AS amount,
	transaction_type, merchant, merchant_address,
	CAST(balance AS STRING) AS balance,
	CAST(foreign_spend_amount AS STRING) AS foreign_spend_amount,
	source_file, source_row_hash, processed_at,
	general_category, detailed_category, confidence_score,
	year, month, day, day_of_week, year_month, year_quarter,
	CAST(spend_amount AS STRING) AS spend_amount,
	CAST(income_amount AS STRING) AS income_amount`

func toDashboardRow(r domain.DashboardRecord) DashboardRow {
	row := DashboardRow{
		TransactionID:      r.TransactionID,
		Institution:        string(r.Institution),
		TransactionDate:    r.TransactionDate,
		Description:        r.Description,
		Amount:             r.Amount.String(),
		TransactionType:    string(r.TransactionType),
		Merchant:           nullString(r.Merchant),
		MerchantAddress:    nullString(r.MerchantAddress),
		Balance:            nullDecimalString(r.Balance),
		ForeignSpendAmount: nullDecimalString(r.ForeignSpendAmount),
		SourceFile:         r.SourceFile,
		SourceRowHash:      r.SourceRowHash,
		ProcessedAt:        r.ProcessedAt.UTC().Truncate(time.Microsecond),
		GeneralCategory:    r.GeneralCategory,
		DetailedCategory:   r.DetailedCategory,
		Year:               int64(r.Year),
		Month:              int64(r.Month),
		Day:                int64(r.Day),
		DayOfWeek:          r.DayOfWeek,
		YearMonth:          r.YearMonth,
		YearQuarter:        r.YearQuarter,
		SpendAmount:        r.SpendAmount.String(),
		IncomeAmount:       r.IncomeAmount.String(),
	}
	if r.ConfidenceScore != nil {
		row.ConfidenceScore = bigquery.NullFloat64{Float64: *r.ConfidenceScore, Valid: true}
	}
	return row
}

func (row DashboardRow) toDomain() (domain.DashboardRecord, error) {
	var rec domain.DashboardRecord
	var err error

	if rec.Amount, err = decimal.NewFromString(row.Amount); err != nil {
		return rec, fmt.Errorf("transaction %s: amount: %w", row.TransactionID, err)
	}
	if rec.SpendAmount, err = decimal.NewFromString(row.SpendAmount); err != nil {
		return rec, fmt.Errorf("transaction %s: spend_amount: %w", row.TransactionID, err)
	}
	if rec.IncomeAmount, err = decimal.NewFromString(row.IncomeAmount); err != nil {
		return rec, fmt.Errorf("transaction %s: income_amount: %w", row.TransactionID, err)
	}
	if rec.Balance, err = parseNullDecimal(row.Balance); err != nil {
		return rec, fmt.Errorf("transaction %s: balance: %w", row.TransactionID, err)
	}
	if rec.ForeignSpendAmount, err = parseNullDecimal(row.ForeignSpendAmount); err != nil {
		return rec, fmt.Errorf("transaction %s: foreign_spend_amount: %w", row.TransactionID, err)
	}

	rec.TransactionID = row.TransactionID
	rec.Institution = domain.Institution(row.Institution)
	rec.TransactionDate = row.TransactionDate
	rec.Description = row.Description
	rec.TransactionType = domain.TransactionType(row.TransactionType)
	rec.Merchant = row.Merchant.StringVal
	rec.MerchantAddress = row.MerchantAddress.StringVal
	rec.SourceFile = row.SourceFile
	rec.SourceRowHash = row.SourceRowHash
	rec.ProcessedAt = row.ProcessedAt
	rec.GeneralCategory = row.GeneralCategory
	rec.DetailedCategory = row.DetailedCategory
	if row.ConfidenceScore.Valid {
		score := row.ConfidenceScore.Float64
		rec.ConfidenceScore = &score
	}
	rec.Year = int(row.Year)
	rec.Month = int(row.Month)
	rec.Day = int(row.Day)
	rec.DayOfWeek = row.DayOfWeek
	rec.YearMonth = row.YearMonth
	rec.YearQuarter = row.YearQuarter
	return rec, nil
}
