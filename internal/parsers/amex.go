package parsers

import (
	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/dvloznov/money-mirror/internal/hasher"
)

const (
	amexDate                  = "Date"
	amexDateProcessed         = "Date Processed"
	amexDescription           = "Description"
	amexCardmember            = "Cardmember"
	amexAmount                = "Amount"
	amexForeignSpendAmount    = "Foreign Spend Amount"
	amexCommission            = "Commission"
	amexExchangeRate          = "Exchange Rate"
	amexMerchant              = "Merchant"
	amexMerchantAddress       = "Merchant Address"
	amexAdditionalInformation = "Additional Information"
)

// Amex exports list purchases as positive amounts.
var amexFormat = format{
	columns: []string{
		amexDate, amexDateProcessed, amexDescription, amexCardmember, amexAmount,
		amexForeignSpendAmount, amexCommission, amexExchangeRate,
		amexMerchant, amexMerchantAddress, amexAdditionalInformation,
	},
	required: []string{amexDate, amexDescription, amexAmount},
	build:    buildAmexRow,
	identity: amexIdentity,
}

func buildAmexRow(rec *record) (domain.RawRow, error) {
	var row domain.RawRow
	var err error

	if row.TransactionDate, err = rec.requiredDate(amexDate); err != nil {
		return row, err
	}
	if row.DateProcessed, err = rec.optionalDate(amexDateProcessed); err != nil {
		return row, err
	}
	if row.Amount, err = rec.requiredAmount(amexAmount); err != nil {
		return row, err
	}
	if row.ForeignSpendAmount, err = rec.optionalAmount(amexForeignSpendAmount); err != nil {
		return row, err
	}
	if row.Commission, err = rec.optionalAmount(amexCommission); err != nil {
		return row, err
	}
	if row.ExchangeRate, err = rec.optionalAmount(amexExchangeRate); err != nil {
		return row, err
	}

	row.Description = rec.get(amexDescription)
	row.Cardmember = rec.get(amexCardmember)
	row.Merchant = rec.get(amexMerchant)
	row.MerchantAddress = rec.get(amexMerchantAddress)
	row.AdditionalInformation = rec.get(amexAdditionalInformation)
	return row, nil
}

func amexIdentity(row domain.RawRow) []string {
	return []string{
		row.TransactionDate.String(),
		dateText(row.DateProcessed),
		hasher.NormalizeDescription(row.Description),
		text(row.Cardmember),
		row.Amount.String(),
		amountText(row.ForeignSpendAmount),
		amountText(row.Commission),
		amountText(row.ExchangeRate),
		text(row.Merchant),
		text(row.MerchantAddress),
		text(row.AdditionalInformation),
	}
}
