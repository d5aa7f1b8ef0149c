package parsers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01/02/06",
	"1/2/06",
	"01-02-06",
	"02 Jan 2006",
	"02 Jan. 2006",
	"2 Jan 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2006/01/02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// record is one data row keyed by column name.
type record struct {
	file   string
	row    int
	values map[string]string
}

func (r *record) get(col string) string {
	return r.values[col]
}

func (r *record) fail(col, reason string, err error) error {
	return &domain.ParseError{File: r.file, Row: r.row, Column: col, Reason: reason, Err: err}
}

func (r *record) requiredDate(col string) (civil.Date, error) {
	v := r.get(col)
	if v == "" {
		return civil.Date{}, r.fail(col, "date is empty", nil)
	}
	d, err := parseDate(v)
	if err != nil {
		return civil.Date{}, r.fail(col, fmt.Sprintf("unrecognized date %q", v), nil)
	}
	return d, nil
}

func (r *record) optionalDate(col string) (*civil.Date, error) {
	v := r.get(col)
	if v == "" {
		return nil, nil
	}
	d, err := parseDate(v)
	if err != nil {
		return nil, r.fail(col, fmt.Sprintf("unrecognized date %q", v), nil)
	}
	return &d, nil
}

func (r *record) requiredAmount(col string) (decimal.Decimal, error) {
	v := r.get(col)
	if v == "" {
		return decimal.Decimal{}, r.fail(col, "amount is empty", nil)
	}
	d, err := parseAmount(v)
	if err != nil {
		return decimal.Decimal{}, r.fail(col, fmt.Sprintf("invalid amount %q", v), err)
	}
	return d, nil
}

func (r *record) optionalAmount(col string) (decimal.NullDecimal, error) {
	v := r.get(col)
	if v == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseAmount(v)
	if err != nil {
		return decimal.NullDecimal{}, r.fail(col, fmt.Sprintf("invalid amount %q", v), err)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

func parseDate(v string) (civil.Date, error) {
	v = strings.TrimSpace(v)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return civil.DateOf(t), nil
		}
	}
	// Spreadsheet cells without a date format come through as serial numbers.
	if serial, err := strconv.ParseFloat(v, 64); err == nil && serial > 0 && serial < 2958466 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("unrecognized date %q", v)
}

// parseAmount accepts "$1,234.56", "(12.00)", "-4.50", "12.00 USD" and similar.
func parseAmount(v string) (decimal.Decimal, error) {
	s := strings.TrimSpace(v)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = strings.Trim(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz ")
	s = strings.NewReplacer("$", "", ",", "", " ", "", "\u00a0", "").Replace(s)
	s = strings.TrimPrefix(s, "+")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}
