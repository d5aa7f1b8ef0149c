package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/money-mirror/internal/domain"
	"google.golang.org/api/googleapi"
)

const (
	amexRawTable         = "raw_amex_transactions"
	wealthsimpleRawTable = "raw_wealthsimple_transactions"
	categoryCacheTable   = "dim_description_categories"
	categoriesTable      = "dim_categories"
	dashboardTable       = "dashboard_transactions"
)

// provenanceSchema is shared by both raw tables.
var provenanceSchema = bigquery.Schema{
	{Name: "file_name", Type: bigquery.StringFieldType, Required: true},
	{Name: "file_hash", Type: bigquery.StringFieldType, Required: true},
	{Name: "row_hash", Type: bigquery.StringFieldType, Required: true},
	{Name: "created_at", Type: bigquery.TimestampFieldType, Required: true},
	{Name: "ingest_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "ingest_seq", Type: bigquery.IntegerFieldType, Required: true},
}

var amexRawSchema = append(bigquery.Schema{
	{Name: "date", Type: bigquery.DateFieldType, Required: true},
	{Name: "date_processed", Type: bigquery.DateFieldType},
	{Name: "description", Type: bigquery.StringFieldType, Required: true},
	{Name: "cardmember", Type: bigquery.StringFieldType},
	{Name: "amount", Type: bigquery.NumericFieldType, Required: true},
	{Name: "foreign_spend_amount", Type: bigquery.NumericFieldType},
	{Name: "commission", Type: bigquery.NumericFieldType},
	{Name: "exchange_rate", Type: bigquery.NumericFieldType},
	{Name: "merchant", Type: bigquery.StringFieldType},
	{Name: "merchant_address", Type: bigquery.StringFieldType},
	{Name: "additional_information", Type: bigquery.StringFieldType},
}, provenanceSchema...)

var wealthsimpleRawSchema = append(bigquery.Schema{
	{Name: "date", Type: bigquery.DateFieldType, Required: true},
	{Name: "transaction", Type: bigquery.StringFieldType},
	{Name: "description", Type: bigquery.StringFieldType, Required: true},
	{Name: "amount", Type: bigquery.NumericFieldType, Required: true},
	{Name: "balance", Type: bigquery.NumericFieldType},
}, provenanceSchema...)

var categoryCacheSchema = bigquery.Schema{
	{Name: "description_key", Type: bigquery.StringFieldType, Required: true},
	{Name: "original_description", Type: bigquery.StringFieldType},
	{Name: "general_category", Type: bigquery.StringFieldType, Required: true},
	{Name: "detailed_category", Type: bigquery.StringFieldType, Required: true},
	{Name: "confidence_score", Type: bigquery.FloatFieldType},
	{Name: "model_version", Type: bigquery.StringFieldType},
	{Name: "created_at", Type: bigquery.TimestampFieldType, Required: true},
	{Name: "updated_at", Type: bigquery.TimestampFieldType, Required: true},
}

var categoriesSchema = bigquery.Schema{
	{Name: "category_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "general_category", Type: bigquery.StringFieldType, Required: true},
	{Name: "detailed_category", Type: bigquery.StringFieldType, Required: true},
	{Name: "is_active", Type: bigquery.BooleanFieldType},
	{Name: "created_at", Type: bigquery.TimestampFieldType},
}

var dashboardSchema = bigquery.Schema{
	{Name: "transaction_id", Type: bigquery.StringFieldType, Required: true},
	{Name: "institution", Type: bigquery.StringFieldType, Required: true},
	{Name: "transaction_date", Type: bigquery.DateFieldType, Required: true},
	{Name: "description", Type: bigquery.StringFieldType},
	{Name: "amount", Type: bigquery.NumericFieldType, Required: true},
	{Name: "transaction_type", Type: bigquery.StringFieldType},
	{Name: "merchant", Type: bigquery.StringFieldType},
	{Name: "merchant_address", Type: bigquery.StringFieldType},
	{Name: "balance", Type: bigquery.NumericFieldType},
	{Name: "foreign_spend_amount", Type: bigquery.NumericFieldType},
	{Name: "source_file", Type: bigquery.StringFieldType},
	{Name: "source_row_hash", Type: bigquery.StringFieldType},
	{Name: "processed_at", Type: bigquery.TimestampFieldType},
	{Name: "general_category", Type: bigquery.StringFieldType},
	{Name: "detailed_category", Type: bigquery.StringFieldType},
	{Name: "confidence_score", Type: bigquery.FloatFieldType},
	{Name: "year", Type: bigquery.IntegerFieldType},
	{Name: "month", Type: bigquery.IntegerFieldType},
	{Name: "day", Type: bigquery.IntegerFieldType},
	{Name: "day_of_week", Type: bigquery.StringFieldType},
	{Name: "year_month", Type: bigquery.StringFieldType},
	{Name: "year_quarter", Type: bigquery.StringFieldType},
	{Name: "spend_amount", Type: bigquery.NumericFieldType},
	{Name: "income_amount", Type: bigquery.NumericFieldType},
}

// tableSchemas lists every table the store owns.
var tableSchemas = map[string]bigquery.Schema{
	amexRawTable:         amexRawSchema,
	wealthsimpleRawTable: wealthsimpleRawSchema,
	categoryCacheTable:   categoryCacheSchema,
	categoriesTable:      categoriesSchema,
	dashboardTable:       dashboardSchema,
}

// rawTables maps institutions to their raw table.
var rawTables = map[domain.Institution]string{
	domain.InstitutionAmex:         amexRawTable,
	domain.InstitutionWealthsimple: wealthsimpleRawTable,
}

func rawTable(inst domain.Institution) (string, error) {
	table, ok := rawTables[inst]
	if !ok {
		return "", fmt.Errorf("no raw table for institution %q", inst)
	}
	return table, nil
}

// EnsureSchemaWithClient creates the dataset and every table when missing.
// Existing tables gain any columns they lack; a column whose type differs
// from the expected one is an error.
func EnsureSchemaWithClient(ctx context.Context, client *bigquery.Client, datasetID, location string) error {
	ds := client.Dataset(datasetID)
	if _, err := ds.Metadata(ctx); err != nil {
		if !isNotFound(err) {
			return fmt.Errorf("EnsureSchema: dataset metadata: %w", err)
		}
		if err := ds.Create(ctx, &bigquery.DatasetMetadata{Location: location}); err != nil && !isAlreadyExists(err) {
			return fmt.Errorf("EnsureSchema: create dataset %s: %w", datasetID, err)
		}
	}

	for name, schema := range tableSchemas {
		if err := ensureTable(ctx, ds.Table(name), schema); err != nil {
			return fmt.Errorf("EnsureSchema: table %s: %w", name, err)
		}
	}
	return nil
}

func ensureTable(ctx context.Context, table *bigquery.Table, schema bigquery.Schema) error {
	md, err := table.Metadata(ctx)
	if err != nil {
		if !isNotFound(err) {
			return fmt.Errorf("metadata: %w", err)
		}
		if err := table.Create(ctx, &bigquery.TableMetadata{Schema: schema}); err != nil && !isAlreadyExists(err) {
			return fmt.Errorf("create: %w", err)
		}
		return nil
	}

	missing, err := missingColumns(md.Schema, schema)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}

	update := bigquery.TableMetadataToUpdate{Schema: append(md.Schema, missing...)}
	if _, err := table.Update(ctx, update, md.ETag); err != nil {
		return fmt.Errorf("add columns: %w", err)
	}
	return nil
}

// missingColumns returns the expected fields absent from existing, relaxed to
// NULLABLE because BigQuery cannot add required columns to a populated table.
func missingColumns(existing, expected bigquery.Schema) (bigquery.Schema, error) {
	have := make(map[string]bigquery.FieldType, len(existing))
	for _, f := range existing {
		have[f.Name] = f.Type
	}

	var missing bigquery.Schema
	for _, f := range expected {
		t, ok := have[f.Name]
		if !ok {
			added := *f
			added.Required = false
			missing = append(missing, &added)
			continue
		}
		if t != f.Type {
			return nil, fmt.Errorf("column %s has type %s, want %s", f.Name, t, f.Type)
		}
	}
	return missing, nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}

func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}
