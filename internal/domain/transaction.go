package domain

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Institution identifies the source format of a statement file.
type Institution string

const (
	InstitutionAmex         Institution = "amex"
	InstitutionWealthsimple Institution = "wealthsimple"
)

// Institutions lists every supported source in a stable order.
func Institutions() []Institution {
	return []Institution{InstitutionAmex, InstitutionWealthsimple}
}

// ParseInstitution accepts an institution name in any case.
func ParseInstitution(s string) (Institution, error) {
	inst := Institution(strings.ToLower(strings.TrimSpace(s)))
	if !inst.Valid() {
		return "", fmt.Errorf("unsupported institution %q", s)
	}
	return inst, nil
}

// Valid reports whether i is a supported institution.
func (i Institution) Valid() bool {
	switch i {
	case InstitutionAmex, InstitutionWealthsimple:
		return true
	}
	return false
}

// TransactionType is derived per institution during standardization.
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
	TransactionTypeOther  TransactionType = "other"
)

// RawRow is one statement line exactly as parsed, plus provenance.
// Columns that an institution does not carry stay at their zero value.
type RawRow struct {
	Institution Institution

	TransactionDate civil.Date
	Description     string
	Amount          decimal.Decimal

	// Amex only.
	DateProcessed         *civil.Date
	Cardmember            string
	ForeignSpendAmount    decimal.NullDecimal
	Commission            decimal.NullDecimal
	ExchangeRate          decimal.NullDecimal
	Merchant              string
	MerchantAddress       string
	AdditionalInformation string

	// Wealthsimple only.
	TransactionCode string
	Balance         decimal.NullDecimal

	FileName  string
	FileHash  string
	RowHash   string
	CreatedAt time.Time

	// IngestID identifies the append call that stored the row. IngestSeq
	// grows with arrival order across appends.
	IngestID  string
	IngestSeq int64
}

// CanonicalTransaction is the institution-independent form of a raw row.
type CanonicalTransaction struct {
	TransactionID   string
	Institution     Institution
	TransactionDate civil.Date
	Description     string
	Amount          decimal.Decimal
	TransactionType TransactionType

	Merchant           string
	MerchantAddress    string
	Balance            decimal.NullDecimal
	ForeignSpendAmount decimal.NullDecimal

	SourceFile    string
	SourceRowHash string
	ProcessedAt   time.Time
}

// EnrichedTransaction is a canonical transaction with its category attached.
// ConfidenceScore is nil when the description has no cache entry.
type EnrichedTransaction struct {
	CanonicalTransaction

	GeneralCategory  string
	DetailedCategory string
	ConfidenceScore  *float64
}

// DashboardRecord is an enriched transaction with derived calendar and
// spend/income columns.
type DashboardRecord struct {
	EnrichedTransaction

	Year        int
	Month       int
	Day         int
	DayOfWeek   string
	YearMonth   string
	YearQuarter string

	SpendAmount  decimal.Decimal
	IncomeAmount decimal.Decimal
}
