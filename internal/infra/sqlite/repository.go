// Package sqlite is a single-file store backend for local use, built on the
// pure-Go modernc.org/sqlite driver. Money is stored as decimal TEXT, dates
// as YYYY-MM-DD and timestamps as fixed-width UTC RFC 3339 so text order
// matches time order.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/dvloznov/money-mirror/internal/store"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// hashChunk bounds the number of bound parameters per IN query.
const hashChunk = 500

// Repository implements store.Repository on a SQLite database file.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and ensures the schema.
func Open(ctx context.Context, path string) (*Repository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, domain.NewStoreError("open", fmt.Errorf("open %s: %w", path, err))
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)

	r := &Repository{db: db, now: time.Now}
	if err := r.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// EnsureSchema creates missing tables and adds missing columns.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	return domain.NewStoreError("ensure schema", ensureSchema(ctx, r.db))
}

// AppendRaw implements store.RawRepository.
func (r *Repository) AppendRaw(ctx context.Context, inst domain.Institution, rows []domain.RawRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	stamped := store.StampForAppend(rows, r.now())

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		switch inst {
		case domain.InstitutionAmex:
			return insertAmex(ctx, tx, stamped)
		case domain.InstitutionWealthsimple:
			return insertWealthsimple(ctx, tx, stamped)
		}
		return fmt.Errorf("unsupported institution %q", inst)
	})
	if err != nil {
		return 0, domain.NewStoreError("append raw", err)
	}
	return len(stamped), nil
}

func insertAmex(ctx context.Context, tx *sql.Tx, rows []domain.RawRow) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO raw_amex_transactions (
			date, date_processed, description, cardmember, amount,
			foreign_spend_amount, commission, exchange_rate,
			merchant, merchant_address, additional_information,
			file_name, file_hash, row_hash, created_at, ingest_id, ingest_seq
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		var processed sql.NullString
		if row.DateProcessed != nil {
			processed = sql.NullString{String: row.DateProcessed.String(), Valid: true}
		}
		_, err := stmt.ExecContext(ctx,
			row.TransactionDate.String(), processed, row.Description, nullString(row.Cardmember), row.Amount.String(),
			nullDecimal(row.ForeignSpendAmount), nullDecimal(row.Commission), nullDecimal(row.ExchangeRate),
			nullString(row.Merchant), nullString(row.MerchantAddress), nullString(row.AdditionalInformation),
			row.FileName, row.FileHash, row.RowHash, formatTimestamp(row.CreatedAt), row.IngestID, row.IngestSeq,
		)
		if err != nil {
			return fmt.Errorf("insert row %s: %w", row.RowHash, err)
		}
	}
	return nil
}

func insertWealthsimple(ctx context.Context, tx *sql.Tx, rows []domain.RawRow) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO raw_wealthsimple_transactions (
			date, "transaction", description, amount, balance,
			file_name, file_hash, row_hash, created_at, ingest_id, ingest_seq
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err := stmt.ExecContext(ctx,
			row.TransactionDate.String(), nullString(row.TransactionCode), row.Description, row.Amount.String(), nullDecimal(row.Balance),
			row.FileName, row.FileHash, row.RowHash, formatTimestamp(row.CreatedAt), row.IngestID, row.IngestSeq,
		)
		if err != nil {
			return fmt.Errorf("insert row %s: %w", row.RowHash, err)
		}
	}
	return nil
}

// ListRaw implements store.RawRepository.
func (r *Repository) ListRaw(ctx context.Context, inst domain.Institution) ([]domain.RawRow, error) {
	var (
		rows []domain.RawRow
		err  error
	)
	switch inst {
	case domain.InstitutionAmex:
		rows, err = r.listAmex(ctx)
	case domain.InstitutionWealthsimple:
		rows, err = r.listWealthsimple(ctx)
	default:
		err = fmt.Errorf("unsupported institution %q", inst)
	}
	return rows, domain.NewStoreError("list raw", err)
}

func (r *Repository) listAmex(ctx context.Context) ([]domain.RawRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, date_processed, description, cardmember, amount,
		       foreign_spend_amount, commission, exchange_rate,
		       merchant, merchant_address, additional_information,
		       file_name, file_hash, row_hash, created_at, ingest_id, ingest_seq
		FROM raw_amex_transactions`)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []domain.RawRow
	for rows.Next() {
		var (
			date, amount, createdAt   string
			processed, cardmember     sql.NullString
			foreign, commission, rate sql.NullString
			merchant, address, info   sql.NullString
			raw                       domain.RawRow
		)
		if err := rows.Scan(&date, &processed, &raw.Description, &cardmember, &amount,
			&foreign, &commission, &rate, &merchant, &address, &info,
			&raw.FileName, &raw.FileHash, &raw.RowHash, &createdAt, &raw.IngestID, &raw.IngestSeq); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		raw.Institution = domain.InstitutionAmex
		raw.Cardmember = cardmember.String
		raw.Merchant = merchant.String
		raw.MerchantAddress = address.String
		raw.AdditionalInformation = info.String

		var err error
		if raw.TransactionDate, err = civil.ParseDate(date); err != nil {
			return nil, fmt.Errorf("row %s: date: %w", raw.RowHash, err)
		}
		if processed.Valid {
			d, err := civil.ParseDate(processed.String)
			if err != nil {
				return nil, fmt.Errorf("row %s: date_processed: %w", raw.RowHash, err)
			}
			raw.DateProcessed = &d
		}
		if raw.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("row %s: amount: %w", raw.RowHash, err)
		}
		if raw.ForeignSpendAmount, err = parseNullDecimal(foreign); err != nil {
			return nil, fmt.Errorf("row %s: foreign_spend_amount: %w", raw.RowHash, err)
		}
		if raw.Commission, err = parseNullDecimal(commission); err != nil {
			return nil, fmt.Errorf("row %s: commission: %w", raw.RowHash, err)
		}
		if raw.ExchangeRate, err = parseNullDecimal(rate); err != nil {
			return nil, fmt.Errorf("row %s: exchange_rate: %w", raw.RowHash, err)
		}
		if raw.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, fmt.Errorf("row %s: created_at: %w", raw.RowHash, err)
		}
		out = append(out, raw)
	}
	return out, rows.Err()
}

func (r *Repository) listWealthsimple(ctx context.Context) ([]domain.RawRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, "transaction", description, amount, balance,
		       file_name, file_hash, row_hash, created_at, ingest_id, ingest_seq
		FROM raw_wealthsimple_transactions`)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []domain.RawRow
	for rows.Next() {
		var (
			date, amount, createdAt string
			code, balance           sql.NullString
			raw                     domain.RawRow
		)
		if err := rows.Scan(&date, &code, &raw.Description, &amount, &balance,
			&raw.FileName, &raw.FileHash, &raw.RowHash, &createdAt, &raw.IngestID, &raw.IngestSeq); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		raw.Institution = domain.InstitutionWealthsimple
		raw.TransactionCode = code.String

		var err error
		if raw.TransactionDate, err = civil.ParseDate(date); err != nil {
			return nil, fmt.Errorf("row %s: date: %w", raw.RowHash, err)
		}
		if raw.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("row %s: amount: %w", raw.RowHash, err)
		}
		if raw.Balance, err = parseNullDecimal(balance); err != nil {
			return nil, fmt.Errorf("row %s: balance: %w", raw.RowHash, err)
		}
		if raw.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, fmt.Errorf("row %s: created_at: %w", raw.RowHash, err)
		}
		out = append(out, raw)
	}
	return out, rows.Err()
}

// ExistingRowHashes implements store.RawRepository.
func (r *Repository) ExistingRowHashes(ctx context.Context, inst domain.Institution, hashes []string) (map[string]bool, error) {
	table, err := rawTable(inst)
	if err != nil {
		return nil, domain.NewStoreError("existing row hashes", err)
	}

	found := make(map[string]bool)
	for start := 0; start < len(hashes); start += hashChunk {
		end := min(start+hashChunk, len(hashes))
		chunk := hashes[start:end]

		args := make([]any, len(chunk))
		for i, h := range chunk {
			args[i] = h
		}
		query := fmt.Sprintf("SELECT DISTINCT row_hash FROM %s WHERE row_hash IN (%s)",
			table, strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ","))

		if err := r.collectHashes(ctx, query, args, found); err != nil {
			return nil, domain.NewStoreError("existing row hashes", err)
		}
	}
	return found, nil
}

func (r *Repository) collectHashes(ctx context.Context, query string, args []any, found map[string]bool) error {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		found[h] = true
	}
	return rows.Err()
}

// FileProcessed implements store.RawRepository.
func (r *Repository) FileProcessed(ctx context.Context, fileHash string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM raw_amex_transactions WHERE file_hash = ?)
		    OR EXISTS (SELECT 1 FROM raw_wealthsimple_transactions WHERE file_hash = ?)`,
		fileHash, fileHash).Scan(&exists)
	return exists, domain.NewStoreError("file processed", err)
}

// DeleteFile implements store.RawRepository.
func (r *Repository) DeleteFile(ctx context.Context, fileHash string) (int64, error) {
	var total int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		for _, inst := range domain.Institutions() {
			table, _ := rawTable(inst)
			res, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE file_hash = ?", fileHash)
			if err != nil {
				return fmt.Errorf("delete from %s: %w", table, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			total += n
		}
		return nil
	})
	if err != nil {
		return 0, domain.NewStoreError("delete file", err)
	}
	return total, nil
}

// ListCacheEntries implements store.CategoryCacheRepository.
func (r *Repository) ListCacheEntries(ctx context.Context) ([]domain.CategoryCacheEntry, error) {
	entries, err := r.listCacheEntries(ctx)
	return entries, domain.NewStoreError("list cache entries", err)
}

func (r *Repository) listCacheEntries(ctx context.Context) ([]domain.CategoryCacheEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT description_key, original_description, general_category, detailed_category,
		       confidence_score, model_version, created_at, updated_at
		FROM (
			SELECT *, ROW_NUMBER() OVER (
				PARTITION BY description_key ORDER BY updated_at DESC, rowid DESC
			) AS rn
			FROM dim_description_categories
		)
		WHERE rn = 1
		ORDER BY description_key`)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []domain.CategoryCacheEntry
	for rows.Next() {
		var (
			e                    domain.CategoryCacheEntry
			original, model      sql.NullString
			score                sql.NullFloat64
			createdAt, updatedAt string
		)
		if err := rows.Scan(&e.DescriptionKey, &original, &e.GeneralCategory, &e.DetailedCategory,
			&score, &model, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		e.OriginalDescription = original.String
		e.ModelVersion = model.String
		e.ConfidenceScore = score.Float64
		if e.CreatedAt, err = parseTimestamp(createdAt); err != nil {
			return nil, fmt.Errorf("entry %s: created_at: %w", e.DescriptionKey, err)
		}
		if e.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
			return nil, fmt.Errorf("entry %s: updated_at: %w", e.DescriptionKey, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AppendCacheEntries implements store.CategoryCacheRepository.
func (r *Repository) AppendCacheEntries(ctx context.Context, entries []domain.CategoryCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO dim_description_categories (
				description_key, original_description, general_category, detailed_category,
				confidence_score, model_version, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx, e.DescriptionKey, nullString(e.OriginalDescription),
				e.GeneralCategory, e.DetailedCategory, e.ConfidenceScore, nullString(e.ModelVersion),
				formatTimestamp(e.CreatedAt), formatTimestamp(e.UpdatedAt)); err != nil {
				return fmt.Errorf("insert %s: %w", e.DescriptionKey, err)
			}
		}
		return nil
	})
	return domain.NewStoreError("append cache entries", err)
}

// ListActiveCategories implements store.CategoryRepository.
func (r *Repository) ListActiveCategories(ctx context.Context) ([]domain.Category, error) {
	cats, err := r.listActiveCategories(ctx)
	return cats, domain.NewStoreError("list categories", err)
}

func (r *Repository) listActiveCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category_id, general_category, detailed_category, created_at
		FROM dim_categories
		WHERE is_active IS NULL OR is_active = 1
		ORDER BY general_category, detailed_category`)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var (
			c         domain.Category
			createdAt sql.NullString
		)
		if err := rows.Scan(&c.CategoryID, &c.GeneralCategory, &c.DetailedCategory, &createdAt); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		c.IsActive = true
		if createdAt.Valid {
			if c.CreatedAt, err = parseTimestamp(createdAt.String); err != nil {
				return nil, fmt.Errorf("category %s: created_at: %w", c.CategoryID, err)
			}
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InitializeCategories implements store.CategoryRepository.
func (r *Repository) InitializeCategories(ctx context.Context, categories []domain.Category) (int, error) {
	inserted := 0
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM dim_categories").Scan(&n); err != nil {
			return fmt.Errorf("count: %w", err)
		}
		if n > 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO dim_categories (category_id, general_category, detailed_category, is_active, created_at)
			VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, c := range categories {
			if _, err := stmt.ExecContext(ctx, c.CategoryID, c.GeneralCategory, c.DetailedCategory,
				c.IsActive, formatTimestamp(c.CreatedAt)); err != nil {
				return fmt.Errorf("insert %s: %w", c.CategoryID, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, domain.NewStoreError("initialize categories", err)
	}
	return inserted, nil
}

func (r *Repository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func rawTable(inst domain.Institution) (string, error) {
	switch inst {
	case domain.InstitutionAmex:
		return "raw_amex_transactions", nil
	case domain.InstitutionWealthsimple:
		return "raw_wealthsimple_transactions", nil
	}
	return "", fmt.Errorf("unsupported institution %q", inst)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDecimal(d decimal.NullDecimal) sql.NullString {
	if !d.Valid {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Decimal.String(), Valid: true}
}

func parseNullDecimal(s sql.NullString) (decimal.NullDecimal, error) {
	if !s.Valid {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s.String)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

var _ store.Repository = (*Repository)(nil)
