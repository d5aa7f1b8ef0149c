package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/shopspring/decimal"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestRepository_RawRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	repo.now = func() time.Time { return time.Date(2024, 2, 1, 9, 30, 0, 123456000, time.UTC) }

	processed := civil.Date{Year: 2024, Month: time.January, Day: 16}
	amex := []domain.RawRow{{
		TransactionDate:    civil.Date{Year: 2024, Month: time.January, Day: 15},
		DateProcessed:      &processed,
		Description:        "COFFEE SHOP",
		Amount:             decimal.RequireFromString("4.50"),
		ForeignSpendAmount: decimal.NewNullDecimal(decimal.RequireFromString("3.33")),
		FileName:           "jan.csv",
		FileHash:           "file-a",
		RowHash:            "row-1",
	}}
	ws := []domain.RawRow{{
		TransactionDate: civil.Date{Year: 2024, Month: time.January, Day: 20},
		TransactionCode: "SPEND",
		Description:     "GROCERY",
		Amount:          decimal.RequireFromString("-52.10"),
		FileName:        "ws.csv",
		FileHash:        "file-b",
		RowHash:         "row-2",
	}}

	if n, err := repo.AppendRaw(ctx, domain.InstitutionAmex, amex); err != nil || n != 1 {
		t.Fatalf("AppendRaw(amex) = %d, %v", n, err)
	}
	if n, err := repo.AppendRaw(ctx, domain.InstitutionWealthsimple, ws); err != nil || n != 1 {
		t.Fatalf("AppendRaw(wealthsimple) = %d, %v", n, err)
	}

	got, err := repo.ListRaw(ctx, domain.InstitutionAmex)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("ListRaw(amex) = %d rows", len(got))
	}
	r := got[0]
	if !r.Amount.Equal(amex[0].Amount) || r.DateProcessed == nil || *r.DateProcessed != processed {
		t.Errorf("amex row = %+v", r)
	}
	if !r.CreatedAt.Equal(repo.now()) || r.IngestID == "" {
		t.Errorf("provenance not stored: created_at=%v ingest_id=%q", r.CreatedAt, r.IngestID)
	}
	if r.Commission.Valid {
		t.Error("commission should be NULL")
	}

	wsRows, err := repo.ListRaw(ctx, domain.InstitutionWealthsimple)
	if err != nil {
		t.Fatal(err)
	}
	if len(wsRows) != 1 || wsRows[0].TransactionCode != "SPEND" || wsRows[0].Balance.Valid {
		t.Errorf("wealthsimple rows = %+v", wsRows)
	}
}

func TestRepository_HashesAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	rows := []domain.RawRow{
		{Description: "A", Amount: decimal.NewFromInt(1), FileName: "f", FileHash: "file-a", RowHash: "h1"},
		{Description: "B", Amount: decimal.NewFromInt(2), FileName: "f", FileHash: "file-a", RowHash: "h2"},
	}
	if _, err := repo.AppendRaw(ctx, domain.InstitutionAmex, rows); err != nil {
		t.Fatal(err)
	}

	found, err := repo.ExistingRowHashes(ctx, domain.InstitutionAmex, []string{"h1", "h3"})
	if err != nil {
		t.Fatal(err)
	}
	if !found["h1"] || found["h3"] {
		t.Errorf("ExistingRowHashes() = %v", found)
	}

	ok, err := repo.FileProcessed(ctx, "file-a")
	if err != nil || !ok {
		t.Errorf("FileProcessed(file-a) = %v, %v", ok, err)
	}
	ok, _ = repo.FileProcessed(ctx, "file-z")
	if ok {
		t.Error("FileProcessed(file-z) = true")
	}

	n, err := repo.DeleteFile(ctx, "file-a")
	if err != nil || n != 2 {
		t.Errorf("DeleteFile() = %d, %v; want 2", n, err)
	}
	if ok, _ := repo.FileProcessed(ctx, "file-a"); ok {
		t.Error("file-a still present after delete")
	}
}

func TestRepository_CacheNewestWins(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	err := repo.AppendCacheEntries(ctx, []domain.CategoryCacheEntry{
		{DescriptionKey: "UBER", GeneralCategory: "Transportation", DetailedCategory: "Rideshare", ConfidenceScore: 0.8, CreatedAt: t0, UpdatedAt: t0},
		{DescriptionKey: "UBER", GeneralCategory: "Food & Dining", DetailedCategory: "Delivery", ConfidenceScore: 0.7, CreatedAt: t0, UpdatedAt: t0.Add(time.Minute)},
	})
	if err != nil {
		t.Fatal(err)
	}

	entries, err := repo.ListCacheEntries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].DetailedCategory != "Delivery" {
		t.Errorf("ListCacheEntries() = %+v", entries)
	}
}

func TestRepository_CategoriesAndDashboard(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	cats := []domain.Category{
		{CategoryID: "cat_001", GeneralCategory: "Food & Dining", DetailedCategory: "Coffee Shops", IsActive: true},
		{CategoryID: "cat_002", GeneralCategory: "Food & Dining", DetailedCategory: "Retired", IsActive: false},
	}
	if n, err := repo.InitializeCategories(ctx, cats); err != nil || n != 2 {
		t.Fatalf("InitializeCategories() = %d, %v", n, err)
	}
	if n, _ := repo.InitializeCategories(ctx, cats); n != 0 {
		t.Errorf("second InitializeCategories() = %d, want 0", n)
	}
	active, err := repo.ListActiveCategories(ctx)
	if err != nil || len(active) != 1 {
		t.Fatalf("ListActiveCategories() = %+v, %v", active, err)
	}

	score := 0.9
	var rec domain.DashboardRecord
	rec.TransactionID = "tx-1"
	rec.Institution = domain.InstitutionAmex
	rec.TransactionDate = civil.Date{Year: 2024, Month: time.January, Day: 15}
	rec.Amount = decimal.RequireFromString("-4.50")
	rec.TransactionType = domain.TransactionTypeDebit
	rec.GeneralCategory = "Food & Dining"
	rec.DetailedCategory = "Coffee Shops"
	rec.ConfidenceScore = &score
	rec.SpendAmount = decimal.RequireFromString("4.50")
	rec.IncomeAmount = decimal.Zero
	rec.YearMonth = "2024-01"

	if err := repo.ReplaceDashboard(ctx, []domain.DashboardRecord{rec, rec}); err != nil {
		t.Fatal(err)
	}
	if err := repo.ReplaceDashboard(ctx, []domain.DashboardRecord{rec}); err != nil {
		t.Fatal(err)
	}

	got, err := repo.QueryDashboard(ctx, civil.Date{Year: 2024, Month: 1, Day: 1}, civil.Date{Year: 2024, Month: 1, Day: 31})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("QueryDashboard() = %d records, want 1", len(got))
	}
	if !got[0].Amount.Equal(rec.Amount) || got[0].ConfidenceScore == nil || *got[0].ConfidenceScore != 0.9 {
		t.Errorf("record = %+v", got[0])
	}

	none, _ := repo.QueryDashboard(ctx, civil.Date{Year: 2024, Month: 2, Day: 1}, civil.Date{Year: 2024, Month: 2, Day: 29})
	if len(none) != 0 {
		t.Errorf("February query returned %d records", len(none))
	}
}

func TestEnsureSchema_AddsColumnsAndRejectsConflicts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "legacy.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE dim_categories (category_id TEXT, general_category TEXT, detailed_category TEXT)`); err != nil {
		t.Fatal(err)
	}

	if err := ensureSchema(ctx, db); err != nil {
		t.Fatalf("ensureSchema() error = %v", err)
	}
	cols, err := tableColumns(ctx, db, "dim_categories")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cols["is_active"]; !ok {
		t.Errorf("is_active not added, columns = %v", cols)
	}

	if _, err := db.Exec(`DROP TABLE dashboard_transactions`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE dashboard_transactions (transaction_id INTEGER)`); err != nil {
		t.Fatal(err)
	}
	if err := ensureSchema(ctx, db); err == nil {
		t.Error("expected type conflict error")
	}
	db.Close()
}
