package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/money-mirror/internal/domain"
)

// AppendRawWithClient appends already stamped rows to the institution's raw
// table, creating the table on first use.
func AppendRawWithClient(ctx context.Context, client *bigquery.Client, datasetID string, inst domain.Institution, rows []domain.RawRow) error {
	if len(rows) == 0 {
		return nil
	}

	switch inst {
	case domain.InstitutionAmex:
		out := make([]AmexRawRow, len(rows))
		for i, r := range rows {
			out[i] = toAmexRawRow(r)
		}
		if err := loadRowsWithClient(ctx, client, datasetID, amexRawTable, amexRawSchema, out, bigquery.WriteAppend); err != nil {
			return fmt.Errorf("AppendRaw: %s: %w", amexRawTable, err)
		}
	case domain.InstitutionWealthsimple:
		out := make([]WealthsimpleRawRow, len(rows))
		for i, r := range rows {
			out[i] = toWealthsimpleRawRow(r)
		}
		if err := loadRowsWithClient(ctx, client, datasetID, wealthsimpleRawTable, wealthsimpleRawSchema, out, bigquery.WriteAppend); err != nil {
			return fmt.Errorf("AppendRaw: %s: %w", wealthsimpleRawTable, err)
		}
	default:
		return fmt.Errorf("AppendRaw: unsupported institution %q", inst)
	}
	return nil
}

// ListRawWithClient returns every raw row of an institution, duplicates included.
func ListRawWithClient(ctx context.Context, client *bigquery.Client, datasetID string, inst domain.Institution) ([]domain.RawRow, error) {
	switch inst {
	case domain.InstitutionAmex:
		sql := "SELECT" + amexRawColumns + "\nFROM " + tableRef(client, datasetID, amexRawTable)
		rows, err := readAllWithClient[AmexRawRow](ctx, client, sql, nil)
		if err != nil {
			return nil, fmt.Errorf("ListRaw: %w", err)
		}
		out := make([]domain.RawRow, 0, len(rows))
		for _, row := range rows {
			r, err := row.toDomain()
			if err != nil {
				return nil, fmt.Errorf("ListRaw: %w", err)
			}
			out = append(out, r)
		}
		return out, nil
	case domain.InstitutionWealthsimple:
		sql := "SELECT" + wealthsimpleRawColumns + "\nFROM " + tableRef(client, datasetID, wealthsimpleRawTable)
		rows, err := readAllWithClient[WealthsimpleRawRow](ctx, client, sql, nil)
		if err != nil {
			return nil, fmt.Errorf("ListRaw: %w", err)
		}
		out := make([]domain.RawRow, 0, len(rows))
		for _, row := range rows {
			r, err := row.toDomain()
			if err != nil {
				return nil, fmt.Errorf("ListRaw: %w", err)
			}
			out = append(out, r)
		}
		return out, nil
	}
	return nil, fmt.Errorf("ListRaw: unsupported institution %q", inst)
}

type rowHashRow struct {
	RowHash string `bigquery:"row_hash"`
}

// ExistingRowHashesWithClient reports which of hashes are already stored.
func ExistingRowHashesWithClient(ctx context.Context, client *bigquery.Client, datasetID string, inst domain.Institution, hashes []string) (map[string]bool, error) {
	found := make(map[string]bool)
	if len(hashes) == 0 {
		return found, nil
	}

	table, err := rawTable(inst)
	if err != nil {
		return nil, fmt.Errorf("ExistingRowHashes: %w", err)
	}

	sql := `SELECT DISTINCT row_hash FROM ` + tableRef(client, datasetID, table) + `
		WHERE row_hash IN UNNEST(@hashes)`
	rows, err := readAllWithClient[rowHashRow](ctx, client, sql, []bigquery.QueryParameter{
		{Name: "hashes", Value: hashes},
	})
	if err != nil {
		return nil, fmt.Errorf("ExistingRowHashes: %w", err)
	}

	for _, r := range rows {
		found[r.RowHash] = true
	}
	return found, nil
}

type countRow struct {
	N int64 `bigquery:"n"`
}

// FileProcessedWithClient reports whether any raw table holds rows of the file.
func FileProcessedWithClient(ctx context.Context, client *bigquery.Client, datasetID, fileHash string) (bool, error) {
	// Tables are queried one by one so a missing table does not fail the check.
	for _, inst := range domain.Institutions() {
		sql := `SELECT COUNT(*) AS n FROM ` + tableRef(client, datasetID, rawTables[inst]) + ` WHERE file_hash = @file_hash`
		rows, err := readAllWithClient[countRow](ctx, client, sql, []bigquery.QueryParameter{
			{Name: "file_hash", Value: fileHash},
		})
		if err != nil {
			return false, fmt.Errorf("FileProcessed: %w", err)
		}
		if len(rows) > 0 && rows[0].N > 0 {
			return true, nil
		}
	}
	return false, nil
}
