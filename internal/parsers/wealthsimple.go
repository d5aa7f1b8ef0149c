package parsers

import (
	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/dvloznov/money-mirror/internal/hasher"
)

const (
	wsDate        = "date"
	wsTransaction = "transaction"
	wsDescription = "description"
	wsAmount      = "amount"
	wsBalance     = "balance"
)

// Wealthsimple exports are already signed: outflows are negative.
var wealthsimpleFormat = format{
	columns:  []string{wsDate, wsTransaction, wsDescription, wsAmount, wsBalance},
	required: []string{wsDate, wsTransaction, wsDescription, wsAmount, wsBalance},
	build:    buildWealthsimpleRow,
	identity: wealthsimpleIdentity,
}

func buildWealthsimpleRow(rec *record) (domain.RawRow, error) {
	var row domain.RawRow
	var err error

	if row.TransactionDate, err = rec.requiredDate(wsDate); err != nil {
		return row, err
	}
	if row.Amount, err = rec.requiredAmount(wsAmount); err != nil {
		return row, err
	}
	if row.Balance, err = rec.optionalAmount(wsBalance); err != nil {
		return row, err
	}

	row.TransactionCode = rec.get(wsTransaction)
	row.Description = rec.get(wsDescription)
	return row, nil
}

func wealthsimpleIdentity(row domain.RawRow) []string {
	return []string{
		row.TransactionDate.String(),
		text(row.TransactionCode),
		hasher.NormalizeDescription(row.Description),
		row.Amount.String(),
		amountText(row.Balance),
	}
}
