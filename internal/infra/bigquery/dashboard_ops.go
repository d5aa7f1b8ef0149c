package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/money-mirror/internal/domain"
)

// ReplaceDashboardWithClient overwrites dashboard_transactions with records in
// a single WRITE_TRUNCATE load job, so readers never see a partial snapshot.
func ReplaceDashboardWithClient(ctx context.Context, client *bigquery.Client, datasetID string, records []domain.DashboardRecord) error {
	if len(records) == 0 {
		_, err := runDMLWithClient(ctx, client, `TRUNCATE TABLE `+tableRef(client, datasetID, dashboardTable), nil)
		if err != nil && !isNotFound(err) {
			return fmt.Errorf("ReplaceDashboard: truncate: %w", err)
		}
		return nil
	}

	rows := make([]DashboardRow, len(records))
	for i, r := range records {
		rows[i] = toDashboardRow(r)
	}
	if err := loadRowsWithClient(ctx, client, datasetID, dashboardTable, dashboardSchema, rows, bigquery.WriteTruncate); err != nil {
		return fmt.Errorf("ReplaceDashboard: %w", err)
	}
	return nil
}

// QueryDashboardWithClient returns dashboard rows dated within [start, end].
func QueryDashboardWithClient(ctx context.Context, client *bigquery.Client, datasetID string, start, end civil.Date) ([]domain.DashboardRecord, error) {
	rows, err := readAllWithClient[DashboardRow](ctx, client, `
		SELECT`+dashboardColumns+`
		FROM `+tableRef(client, datasetID, dashboardTable)+`
		WHERE transaction_date >= @start_date
		  AND transaction_date <= @end_date
		ORDER BY transaction_date, transaction_id
	`, []bigquery.QueryParameter{
		{Name: "start_date", Value: start},
		{Name: "end_date", Value: end},
	})
	if err != nil {
		return nil, fmt.Errorf("QueryDashboard: %w", err)
	}

	out := make([]domain.DashboardRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toDomain()
		if err != nil {
			return nil, fmt.Errorf("QueryDashboard: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}
