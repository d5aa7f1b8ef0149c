package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

type column struct {
	name    string
	sqlType string
	notNull bool
}

type table struct {
	name    string
	columns []column
	indexes []string
}

var provenanceColumns = []column{
	{"file_name", "TEXT", true},
	{"file_hash", "TEXT", true},
	{"row_hash", "TEXT", true},
	{"created_at", "TEXT", true},
	{"ingest_id", "TEXT", true},
	{"ingest_seq", "INTEGER", true},
}

var tables = []table{
	{
		name: "raw_amex_transactions",
		columns: append([]column{
			{"date", "TEXT", true},
			{"date_processed", "TEXT", false},
			{"description", "TEXT", true},
			{"cardmember", "TEXT", false},
			{"amount", "TEXT", true},
			{"foreign_spend_amount", "TEXT", false},
			{"commission", "TEXT", false},
			{"exchange_rate", "TEXT", false},
			{"merchant", "TEXT", false},
			{"merchant_address", "TEXT", false},
			{"additional_information", "TEXT", false},
		}, provenanceColumns...),
		indexes: []string{"row_hash", "file_hash"},
	},
	{
		name: "raw_wealthsimple_transactions",
		columns: append([]column{
			{"date", "TEXT", true},
			{"transaction", "TEXT", false},
			{"description", "TEXT", true},
			{"amount", "TEXT", true},
			{"balance", "TEXT", false},
		}, provenanceColumns...),
		indexes: []string{"row_hash", "file_hash"},
	},
	{
		name: "dim_description_categories",
		columns: []column{
			{"description_key", "TEXT", true},
			{"original_description", "TEXT", false},
			{"general_category", "TEXT", true},
			{"detailed_category", "TEXT", true},
			{"confidence_score", "REAL", false},
			{"model_version", "TEXT", false},
			{"created_at", "TEXT", true},
			{"updated_at", "TEXT", true},
		},
		indexes: []string{"description_key"},
	},
	{
		name: "dim_categories",
		columns: []column{
			{"category_id", "TEXT", true},
			{"general_category", "TEXT", true},
			{"detailed_category", "TEXT", true},
			{"is_active", "BOOLEAN", false},
			{"created_at", "TEXT", false},
		},
	},
	{
		name: "dashboard_transactions",
		columns: []column{
			{"transaction_id", "TEXT", true},
			{"institution", "TEXT", true},
			{"transaction_date", "TEXT", true},
			{"description", "TEXT", false},
			{"amount", "TEXT", true},
			{"transaction_type", "TEXT", false},
			{"merchant", "TEXT", false},
			{"merchant_address", "TEXT", false},
			{"balance", "TEXT", false},
			{"foreign_spend_amount", "TEXT", false},
			{"source_file", "TEXT", false},
			{"source_row_hash", "TEXT", false},
			{"processed_at", "TEXT", false},
			{"general_category", "TEXT", false},
			{"detailed_category", "TEXT", false},
			{"confidence_score", "REAL", false},
			{"year", "INTEGER", false},
			{"month", "INTEGER", false},
			{"day", "INTEGER", false},
			{"day_of_week", "TEXT", false},
			{"year_month", "TEXT", false},
			{"year_quarter", "TEXT", false},
			{"spend_amount", "TEXT", false},
			{"income_amount", "TEXT", false},
		},
		indexes: []string{"transaction_date"},
	},
}

func (t table) createStatement() string {
	defs := make([]string, len(t.columns))
	for i, c := range t.columns {
		defs[i] = c.definition(true)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)", t.name, strings.Join(defs, ",\n\t"))
}

func (c column) definition(allowNotNull bool) string {
	def := quoteIdent(c.name) + " " + c.sqlType
	if c.notNull && allowNotNull {
		def += " NOT NULL"
	}
	return def
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}

// ensureSchema creates missing tables and indexes, and adds missing columns
// to existing tables. Added columns are nullable since existing rows have no
// value for them.
func ensureSchema(ctx context.Context, db *sql.DB) error {
	for _, t := range tables {
		existing, err := tableColumns(ctx, db, t.name)
		if err != nil {
			return fmt.Errorf("ensureSchema: %s: %w", t.name, err)
		}

		if len(existing) == 0 {
			if _, err := db.ExecContext(ctx, t.createStatement()); err != nil {
				return fmt.Errorf("ensureSchema: create %s: %w", t.name, err)
			}
		} else {
			for _, c := range t.columns {
				have, ok := existing[c.name]
				if !ok {
					stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", t.name, c.definition(false))
					if _, err := db.ExecContext(ctx, stmt); err != nil {
						return fmt.Errorf("ensureSchema: add column %s.%s: %w", t.name, c.name, err)
					}
					continue
				}
				if !strings.EqualFold(have, c.sqlType) {
					return fmt.Errorf("ensureSchema: column %s.%s has type %s, want %s", t.name, c.name, have, c.sqlType)
				}
			}
		}

		for _, col := range t.indexes {
			stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)", t.name, col, t.name, quoteIdent(col))
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("ensureSchema: index %s.%s: %w", t.name, col, err)
			}
		}
	}
	return nil
}

// tableColumns returns column name to declared type, empty when the table
// does not exist.
func tableColumns(ctx context.Context, db *sql.DB, name string) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", name))
	if err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	defer rows.Close()

	cols := make(map[string]string)
	for rows.Next() {
		var (
			cid, notNull, pk int
			colName, colType string
			dflt             sql.NullString
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		cols[colName] = colType
	}
	return cols, rows.Err()
}
