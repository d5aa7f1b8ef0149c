package handlers

import (
	"context"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/money-mirror/internal/api/middleware"
	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/dvloznov/money-mirror/internal/logger"
	"github.com/shopspring/decimal"
)

// DashboardQuerier reads dashboard records by transaction date.
type DashboardQuerier interface {
	QueryDashboard(ctx context.Context, start, end civil.Date) ([]domain.DashboardRecord, error)
}

// DashboardRecordJSON is the wire form of one dashboard row.
type DashboardRecordJSON struct {
	TransactionID      string           `json:"transaction_id"`
	Institution        string           `json:"institution"`
	TransactionDate    civil.Date       `json:"transaction_date"`
	Description        string           `json:"description"`
	Amount             decimal.Decimal  `json:"amount"`
	TransactionType    string           `json:"transaction_type"`
	Merchant           string           `json:"merchant,omitempty"`
	Balance            *decimal.Decimal `json:"balance,omitempty"`
	ForeignSpendAmount *decimal.Decimal `json:"foreign_spend_amount,omitempty"`
	GeneralCategory    string           `json:"general_category"`
	DetailedCategory   string           `json:"detailed_category"`
	ConfidenceScore    *float64         `json:"confidence_score"`
	Year               int              `json:"year"`
	Month              int              `json:"month"`
	DayOfWeek          string           `json:"day_of_week"`
	YearMonth          string           `json:"year_month"`
	YearQuarter        string           `json:"year_quarter"`
	SpendAmount        decimal.Decimal  `json:"spend_amount"`
	IncomeAmount       decimal.Decimal  `json:"income_amount"`
	SourceFile         string           `json:"source_file"`
}

func toDashboardJSON(r domain.DashboardRecord) DashboardRecordJSON {
	return DashboardRecordJSON{
		TransactionID:      r.TransactionID,
		Institution:        string(r.Institution),
		TransactionDate:    r.TransactionDate,
		Description:        r.Description,
		Amount:             r.Amount,
		TransactionType:    string(r.TransactionType),
		Merchant:           r.Merchant,
		Balance:            nullDecimalPtr(r.Balance),
		ForeignSpendAmount: nullDecimalPtr(r.ForeignSpendAmount),
		GeneralCategory:    r.GeneralCategory,
		DetailedCategory:   r.DetailedCategory,
		ConfidenceScore:    r.ConfidenceScore,
		Year:               r.Year,
		Month:              r.Month,
		DayOfWeek:          r.DayOfWeek,
		YearMonth:          r.YearMonth,
		YearQuarter:        r.YearQuarter,
		SpendAmount:        r.SpendAmount,
		IncomeAmount:       r.IncomeAmount,
		SourceFile:         r.SourceFile,
	}
}

func nullDecimalPtr(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

// DashboardHandler serves the materialized dashboard.
type DashboardHandler struct {
	repo DashboardQuerier
	now  func() time.Time
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(repo DashboardQuerier) *DashboardHandler {
	return &DashboardHandler{repo: repo, now: time.Now}
}

// ListRecords handles GET /api/dashboard. The range defaults to the last
// year and both ends are inclusive.
func (h *DashboardHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	now := h.now()
	start, end := civil.DateOf(now.AddDate(-1, 0, 0)), civil.DateOf(now)

	var err error
	if s := query.Get("start_date"); s != "" {
		if start, err = civil.ParseDate(s); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format")
			return
		}
	}
	if s := query.Get("end_date"); s != "" {
		if end, err = civil.ParseDate(s); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format")
			return
		}
	}
	if end.Before(start) {
		middleware.WriteError(w, http.StatusBadRequest, "end_date is before start_date")
		return
	}

	records, err := h.repo.QueryDashboard(ctx, start, end)
	if err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Msg("Failed to query dashboard")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query dashboard")
		return
	}

	out := make([]DashboardRecordJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, toDashboardJSON(rec))
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}
