package bigquery

import (
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/shopspring/decimal"
)

// NUMERIC columns travel as decimal strings both ways: load jobs accept
// them and queries read them back with CAST(... AS STRING).

// AmexRawRow maps one row of raw_amex_transactions.
type AmexRawRow struct {
	Date                  civil.Date          `bigquery:"date" json:"date"`
	DateProcessed         bigquery.NullDate   `bigquery:"date_processed" json:"date_processed"`
	Description           string              `bigquery:"description" json:"description"`
	Cardmember            bigquery.NullString `bigquery:"cardmember" json:"cardmember"`
	Amount                string              `bigquery:"amount" json:"amount"`
	ForeignSpendAmount    bigquery.NullString `bigquery:"foreign_spend_amount" json:"foreign_spend_amount"`
	Commission            bigquery.NullString `bigquery:"commission" json:"commission"`
	ExchangeRate          bigquery.NullString `bigquery:"exchange_rate" json:"exchange_rate"`
	Merchant              bigquery.NullString `bigquery:"merchant" json:"merchant"`
	MerchantAddress       bigquery.NullString `bigquery:"merchant_address" json:"merchant_address"`
	AdditionalInformation bigquery.NullString `bigquery:"additional_information" json:"additional_information"`

	FileName  string    `bigquery:"file_name" json:"file_name"`
	FileHash  string    `bigquery:"file_hash" json:"file_hash"`
	RowHash   string    `bigquery:"row_hash" json:"row_hash"`
	CreatedAt time.Time `bigquery:"created_at" json:"created_at"`
	IngestID  string    `bigquery:"ingest_id" json:"ingest_id"`
	IngestSeq int64     `bigquery:"ingest_seq" json:"ingest_seq"`
}

// WealthsimpleRawRow maps one row of raw_wealthsimple_transactions.
type WealthsimpleRawRow struct {
	Date        civil.Date          `bigquery:"date" json:"date"`
	Transaction bigquery.NullString `bigquery:"transaction" json:"transaction"`
	Description string              `bigquery:"description" json:"description"`
	Amount      string              `bigquery:"amount" json:"amount"`
	Balance     bigquery.NullString `bigquery:"balance" json:"balance"`

	FileName  string    `bigquery:"file_name" json:"file_name"`
	FileHash  string    `bigquery:"file_hash" json:"file_hash"`
	RowHash   string    `bigquery:"row_hash" json:"row_hash"`
	CreatedAt time.Time `bigquery:"created_at" json:"created_at"`
	IngestID  string    `bigquery:"ingest_id" json:"ingest_id"`
	IngestSeq int64     `bigquery:"ingest_seq" json:"ingest_seq"`
}

const amexRawColumns = `
	date, date_processed, description, cardmember,
	CAST(amount AS STRING) AS amount,
	CAST(foreign_spend_amount AS STRING) AS foreign_spend_amount,
	CAST(commission AS STRING) AS commission,
	CAST(exchange_rate AS STRING) AS exchange_rate,
	merchant, merchant_address, additional_information,
	file_name, file_hash, row_hash, created_at, ingest_id, ingest_seq`

const wealthsimpleRawColumns = `
	date, transaction, description,
	CAST(amount AS STRING) AS amount,
	CAST(balance AS STRING) AS balance,
	file_name, file_hash, row_hash, created_at, ingest_id, ingest_seq`

func toAmexRawRow(r domain.RawRow) AmexRawRow {
	row := AmexRawRow{
		Date:                  r.TransactionDate,
		Description:           r.Description,
		Cardmember:            nullString(r.Cardmember),
		Amount:                r.Amount.String(),
		ForeignSpendAmount:    nullDecimalString(r.ForeignSpendAmount),
		Commission:            nullDecimalString(r.Commission),
		ExchangeRate:          nullDecimalString(r.ExchangeRate),
		Merchant:              nullString(r.Merchant),
		MerchantAddress:       nullString(r.MerchantAddress),
		AdditionalInformation: nullString(r.AdditionalInformation),
		FileName:              r.FileName,
		FileHash:              r.FileHash,
		RowHash:               r.RowHash,
		CreatedAt:             r.CreatedAt,
		IngestID:              r.IngestID,
		IngestSeq:             r.IngestSeq,
	}
	if r.DateProcessed != nil {
		row.DateProcessed = bigquery.NullDate{Date: *r.DateProcessed, Valid: true}
	}
	return row
}

func (row AmexRawRow) toDomain() (domain.RawRow, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return domain.RawRow{}, fmt.Errorf("row %s: amount %q: %w", row.RowHash, row.Amount, err)
	}
	r := domain.RawRow{
		Institution:           domain.InstitutionAmex,
		TransactionDate:       row.Date,
		Description:           row.Description,
		Amount:                amount,
		Cardmember:            row.Cardmember.StringVal,
		Merchant:              row.Merchant.StringVal,
		MerchantAddress:       row.MerchantAddress.StringVal,
		AdditionalInformation: row.AdditionalInformation.StringVal,
		FileName:              row.FileName,
		FileHash:              row.FileHash,
		RowHash:               row.RowHash,
		CreatedAt:             row.CreatedAt,
		IngestID:              row.IngestID,
		IngestSeq:             row.IngestSeq,
	}
	if row.DateProcessed.Valid {
		d := row.DateProcessed.Date
		r.DateProcessed = &d
	}
	if r.ForeignSpendAmount, err = parseNullDecimal(row.ForeignSpendAmount); err != nil {
		return domain.RawRow{}, fmt.Errorf("row %s: foreign_spend_amount: %w", row.RowHash, err)
	}
	if r.Commission, err = parseNullDecimal(row.Commission); err != nil {
		return domain.RawRow{}, fmt.Errorf("row %s: commission: %w", row.RowHash, err)
	}
	if r.ExchangeRate, err = parseNullDecimal(row.ExchangeRate); err != nil {
		return domain.RawRow{}, fmt.Errorf("row %s: exchange_rate: %w", row.RowHash, err)
	}
	return r, nil
}

func toWealthsimpleRawRow(r domain.RawRow) WealthsimpleRawRow {
	return WealthsimpleRawRow{
		Date:        r.TransactionDate,
		Transaction: nullString(r.TransactionCode),
		Description: r.Description,
		Amount:      r.Amount.String(),
		Balance:     nullDecimalString(r.Balance),
		FileName:    r.FileName,
		FileHash:    r.FileHash,
		RowHash:     r.RowHash,
		CreatedAt:   r.CreatedAt,
		IngestID:    r.IngestID,
		IngestSeq:   r.IngestSeq,
	}
}

func (row WealthsimpleRawRow) toDomain() (domain.RawRow, error) {
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return domain.RawRow{}, fmt.Errorf("row %s: amount %q: %w", row.RowHash, row.Amount, err)
	}
	balance, err := parseNullDecimal(row.Balance)
	if err != nil {
		return domain.RawRow{}, fmt.Errorf("row %s: balance: %w", row.RowHash, err)
	}
	return domain.RawRow{
		Institution:     domain.InstitutionWealthsimple,
		TransactionDate: row.Date,
		TransactionCode: row.Transaction.StringVal,
		Description:     row.Description,
		Amount:          amount,
		Balance:         balance,
		FileName:        row.FileName,
		FileHash:        row.FileHash,
		RowHash:         row.RowHash,
		CreatedAt:       row.CreatedAt,
		IngestID:        row.IngestID,
		IngestSeq:       row.IngestSeq,
	}, nil
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func nullDecimalString(d decimal.NullDecimal) bigquery.NullString {
	if !d.Valid {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: d.Decimal.String(), Valid: true}
}

func parseNullDecimal(s bigquery.NullString) (decimal.NullDecimal, error) {
	if !s.Valid {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s.StringVal)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}
