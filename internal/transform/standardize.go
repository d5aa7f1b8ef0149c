package transform

import (
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/dvloznov/money-mirror/internal/hasher"
	"github.com/shopspring/decimal"
)

// rule maps one institution's raw rows onto the canonical schema.
type rule struct {
	// negate flips the source sign so that outflows become negative.
	negate bool
	// classify derives the transaction type from the signed amount and row.
	classify func(amount decimal.Decimal, row domain.RawRow) domain.TransactionType
	// keepMerchant, keepBalance and keepForeign select optional columns the
	// institution carries; the rest are left empty.
	keepMerchant bool
	keepBalance  bool
	keepForeign  bool
}

var rules = map[domain.Institution]rule{
	domain.InstitutionAmex: {
		negate:       true,
		classify:     typeFromSign,
		keepMerchant: true,
		keepForeign:  true,
	},
	domain.InstitutionWealthsimple: {
		classify:    typeFromCode,
		keepBalance: true,
	},
}

var (
	wealthsimpleCreditCodes = codeSet("AFT_IN", "CONT", "DEP", "DIV", "E_TRFIN", "INT", "REFUND", "TRFIN", "CASHBACK", "P2P_RECEIVED", "PAYIN")
	wealthsimpleDebitCodes  = codeSet("AFT_OUT", "E_TRFOUT", "FEE", "SPEND", "TRFOUT", "WITHDRAWAL", "P2P_SENT", "BILL_PAY", "PURCHASE", "WD")
)

// Standardize converts deduplicated raw rows of one institution into
// canonical transactions. processedAt is stamped on every output row.
func Standardize(inst domain.Institution, rows []domain.RawRow, processedAt time.Time) ([]domain.CanonicalTransaction, error) {
	r, ok := rules[inst]
	if !ok {
		return nil, fmt.Errorf("Standardize: no rule for institution %q", inst)
	}

	out := make([]domain.CanonicalTransaction, 0, len(rows))
	for _, row := range rows {
		amount := row.Amount
		if r.negate {
			amount = amount.Neg()
		}

		tx := domain.CanonicalTransaction{
			TransactionID:   hasher.TransactionID(row.RowHash, row.FileName),
			Institution:     inst,
			TransactionDate: row.TransactionDate,
			Description:     hasher.NormalizeDescription(row.Description),
			Amount:          amount,
			TransactionType: r.classify(amount, row),
			SourceFile:      row.FileName,
			SourceRowHash:   row.RowHash,
			ProcessedAt:     processedAt,
		}
		if r.keepMerchant {
			tx.Merchant = row.Merchant
			tx.MerchantAddress = row.MerchantAddress
		}
		if r.keepBalance {
			tx.Balance = row.Balance
		}
		if r.keepForeign {
			tx.ForeignSpendAmount = row.ForeignSpendAmount
		}
		out = append(out, tx)
	}
	return out, nil
}

func typeFromSign(amount decimal.Decimal, _ domain.RawRow) domain.TransactionType {
	switch amount.Sign() {
	case 1:
		return domain.TransactionTypeCredit
	case -1:
		return domain.TransactionTypeDebit
	}
	return domain.TransactionTypeOther
}

func typeFromCode(_ decimal.Decimal, row domain.RawRow) domain.TransactionType {
	code := strings.ToUpper(strings.TrimSpace(row.TransactionCode))
	switch {
	case wealthsimpleCreditCodes[code]:
		return domain.TransactionTypeCredit
	case wealthsimpleDebitCodes[code]:
		return domain.TransactionTypeDebit
	}
	return domain.TransactionTypeOther
}

func codeSet(codes ...string) map[string]bool {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return set
}
