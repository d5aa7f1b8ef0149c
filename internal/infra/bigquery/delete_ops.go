package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/money-mirror/internal/domain"
)

// DeleteFileWithClient removes every raw row loaded from the file with the
// given content hash and returns the number of deleted rows.
func DeleteFileWithClient(ctx context.Context, client *bigquery.Client, datasetID, fileHash string) (int64, error) {
	var total int64
	for _, inst := range domain.Institutions() {
		table := rawTables[inst]
		n, err := runDMLWithClient(ctx, client, `
			DELETE FROM `+tableRef(client, datasetID, table)+`
			WHERE file_hash = @file_hash
		`, []bigquery.QueryParameter{
			{Name: "file_hash", Value: fileHash},
		})
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return total, fmt.Errorf("DeleteFile: %s: %w", table, err)
		}
		total += n
	}
	return total, nil
}
