package bigquery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/bigquery"
)

// loadRowsWithClient writes rows through a newline-delimited JSON load job.
// Load jobs keep rows out of the streaming buffer, so DML such as
// DeleteFile can touch them right away.
func loadRowsWithClient[T any](ctx context.Context, client *bigquery.Client, datasetID, table string, schema bigquery.Schema, rows []T, disposition bigquery.TableWriteDisposition) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range rows {
		if err := enc.Encode(rows[i]); err != nil {
			return fmt.Errorf("encode row %d: %w", i, err)
		}
	}

	src := bigquery.NewReaderSource(&buf)
	src.SourceFormat = bigquery.JSON
	src.Schema = schema

	loader := client.Dataset(datasetID).Table(table).LoaderFrom(src)
	loader.CreateDisposition = bigquery.CreateIfNeeded
	loader.WriteDisposition = disposition

	job, err := loader.Run(ctx)
	if err != nil {
		return fmt.Errorf("run load job: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for load job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("load job error: %w", err)
	}
	return nil
}

// runDMLWithClient runs a statement and returns the affected row count.
func runDMLWithClient(ctx context.Context, client *bigquery.Client, sql string, params []bigquery.QueryParameter) (int64, error) {
	q := client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("run query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("wait for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", err)
	}

	if stats, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok && stats.DMLStats != nil {
		return stats.DMLStats.DeletedRowCount + stats.DMLStats.InsertedRowCount + stats.DMLStats.UpdatedRowCount, nil
	}
	return 0, nil
}

// tableRef returns a fully qualified, backquoted table name for SQL.
func tableRef(client *bigquery.Client, datasetID, table string) string {
	return fmt.Sprintf("`%s.%s.%s`", client.Project(), datasetID, table)
}
