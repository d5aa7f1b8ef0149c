package bigquery

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/shopspring/decimal"
)

func TestAmexRawRow_RoundTrip(t *testing.T) {
	processed := civil.Date{Year: 2024, Month: time.January, Day: 16}
	in := domain.RawRow{
		Institution:        domain.InstitutionAmex,
		TransactionDate:    civil.Date{Year: 2024, Month: time.January, Day: 15},
		DateProcessed:      &processed,
		Description:        "COFFEE SHOP",
		Cardmember:         "J DOE",
		Amount:             decimal.RequireFromString("4.50"),
		ForeignSpendAmount: decimal.NewNullDecimal(decimal.RequireFromString("3.10")),
		Merchant:           "COFFEE SHOP INC",
		FileName:           "jan.csv",
		FileHash:           "fh",
		RowHash:            "rh",
		CreatedAt:          time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC),
		IngestID:           "ingest-1",
		IngestSeq:          3,
	}

	row := toAmexRawRow(in)
	if row.Amount != "4.5" {
		t.Errorf("Amount = %q, want 4.5", row.Amount)
	}
	if row.Commission.Valid {
		t.Error("empty commission must be NULL")
	}
	if row.MerchantAddress.Valid {
		t.Error("empty merchant address must be NULL")
	}

	out, err := row.toDomain()
	if err != nil {
		t.Fatalf("toDomain() error = %v", err)
	}
	if !out.Amount.Equal(in.Amount) || out.DateProcessed == nil || *out.DateProcessed != processed {
		t.Errorf("round trip mismatch: %+v", out)
	}
	if !out.ForeignSpendAmount.Valid || !out.ForeignSpendAmount.Decimal.Equal(in.ForeignSpendAmount.Decimal) {
		t.Errorf("ForeignSpendAmount = %+v", out.ForeignSpendAmount)
	}
	if out.IngestSeq != 3 || out.IngestID != "ingest-1" || out.Institution != domain.InstitutionAmex {
		t.Errorf("provenance mismatch: %+v", out)
	}
}

func TestWealthsimpleRawRow_JSON(t *testing.T) {
	row := toWealthsimpleRawRow(domain.RawRow{
		TransactionDate: civil.Date{Year: 2024, Month: time.March, Day: 2},
		TransactionCode: "SPEND",
		Description:     "GROCERY",
		Amount:          decimal.RequireFromString("-52.10"),
		RowHash:         "rh",
		CreatedAt:       time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC),
	})

	b, err := json.Marshal(row)
	if err != nil {
		t.Fatal(err)
	}
	line := string(b)
	for _, want := range []string{`"date":"2024-03-02"`, `"amount":"-52.1"`, `"balance":null`, `"transaction":"SPEND"`} {
		if !strings.Contains(line, want) {
			t.Errorf("JSON %s missing %s", line, want)
		}
	}
}

func TestToDomain_BadAmount(t *testing.T) {
	row := WealthsimpleRawRow{Amount: "abc", RowHash: "rh"}
	if _, err := row.toDomain(); err == nil {
		t.Error("expected error for non-numeric amount")
	}
}

func TestDashboardRow_ConfidenceNull(t *testing.T) {
	var rec domain.DashboardRecord
	rec.TransactionID = "t1"
	rec.Amount = decimal.RequireFromString("-4.50")
	rec.SpendAmount = decimal.RequireFromString("4.50")
	rec.IncomeAmount = decimal.Zero

	row := toDashboardRow(rec)
	if row.ConfidenceScore.Valid {
		t.Error("nil confidence must be NULL")
	}

	back, err := row.toDomain()
	if err != nil {
		t.Fatal(err)
	}
	if back.ConfidenceScore != nil || !back.SpendAmount.Equal(rec.SpendAmount) {
		t.Errorf("toDomain() = %+v", back)
	}
}

func TestMissingColumns(t *testing.T) {
	existing := bigquery.Schema{
		{Name: "row_hash", Type: bigquery.StringFieldType, Required: true},
		{Name: "amount", Type: bigquery.NumericFieldType},
	}

	tests := []struct {
		name     string
		expected bigquery.Schema
		want     []string
		wantErr  bool
	}{
		{
			name:     "nothing missing",
			expected: existing,
		},
		{
			name: "adds missing column as nullable",
			expected: bigquery.Schema{
				{Name: "row_hash", Type: bigquery.StringFieldType, Required: true},
				{Name: "ingest_seq", Type: bigquery.IntegerFieldType, Required: true},
			},
			want: []string{"ingest_seq"},
		},
		{
			name: "type conflict",
			expected: bigquery.Schema{
				{Name: "amount", Type: bigquery.StringFieldType},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := missingColumns(existing, tt.expected)
			if (err != nil) != tt.wantErr {
				t.Fatalf("missingColumns() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("missingColumns() = %d fields, want %d", len(got), len(tt.want))
			}
			for i, f := range got {
				if f.Name != tt.want[i] || f.Required {
					t.Errorf("field %d = %+v", i, f)
				}
			}
		})
	}
}

func TestRawTable(t *testing.T) {
	if table, err := rawTable(domain.InstitutionWealthsimple); err != nil || table != wealthsimpleRawTable {
		t.Errorf("rawTable(wealthsimple) = %q, %v", table, err)
	}
	if _, err := rawTable("barclays"); err == nil {
		t.Error("expected error for unknown institution")
	}
}
