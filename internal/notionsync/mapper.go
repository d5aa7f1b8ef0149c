package notionsync

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/money-mirror/internal/domain"
	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"
)

// Notion database property names.
const (
	propDescription   = "Description"
	propTransactionID = "Transaction ID"
	propDate          = "Date"
	propAmount        = "Amount"
	propSpend         = "Spend"
	propIncome        = "Income"
	propInstitution   = "Institution"
	propType          = "Type"
	propCategory      = "Category"
	propSubcategory   = "Subcategory"
	propConfidence    = "Confidence"
	propYearMonth     = "Year Month"
	propMerchant      = "Merchant"
	propSourceFile    = "Source File"
)

// RecordToNotionProperties maps one dashboard record onto the Notion
// transactions database schema.
func RecordToNotionProperties(rec domain.DashboardRecord) notionapi.Properties {
	props := notionapi.Properties{
		propDescription: notionapi.TitleProperty{
			Title: richText(rec.Description),
		},
		propTransactionID: notionapi.RichTextProperty{
			RichText: richText(rec.TransactionID),
		},
		propDate: notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: notionDate(rec.TransactionDate)},
		},
		propAmount:      notionapi.NumberProperty{Number: toFloat(rec.Amount)},
		propSpend:       notionapi.NumberProperty{Number: toFloat(rec.SpendAmount)},
		propIncome:      notionapi.NumberProperty{Number: toFloat(rec.IncomeAmount)},
		propInstitution: notionapi.SelectProperty{Select: notionapi.Option{Name: string(rec.Institution)}},
		propType:        notionapi.SelectProperty{Select: notionapi.Option{Name: string(rec.TransactionType)}},
		propCategory:    notionapi.SelectProperty{Select: notionapi.Option{Name: rec.GeneralCategory}},
		propSubcategory: notionapi.SelectProperty{Select: notionapi.Option{Name: rec.DetailedCategory}},
		propYearMonth: notionapi.RichTextProperty{
			RichText: richText(rec.YearMonth),
		},
		propSourceFile: notionapi.RichTextProperty{
			RichText: richText(rec.SourceFile),
		},
	}

	if rec.ConfidenceScore != nil {
		props[propConfidence] = notionapi.NumberProperty{Number: *rec.ConfidenceScore}
	}
	if rec.Merchant != "" {
		props[propMerchant] = notionapi.RichTextProperty{
			RichText: richText(rec.Merchant),
		}
	}
	return props
}

// pageState is what the sync reads back from an existing page.
type pageState struct {
	PageID        string
	TransactionID string
	Date          *civil.Date
	Category      string
	Subcategory   string
}

func readPage(page notionapi.Page) pageState {
	st := pageState{PageID: string(page.ID)}

	if prop, ok := page.Properties[propTransactionID].(*notionapi.RichTextProperty); ok && len(prop.RichText) > 0 {
		st.TransactionID = plainText(prop.RichText[0])
	}
	if prop, ok := page.Properties[propDate].(*notionapi.DateProperty); ok && prop.Date != nil && prop.Date.Start != nil {
		d := civil.DateOf(time.Time(*prop.Date.Start))
		st.Date = &d
	}
	if prop, ok := page.Properties[propCategory].(*notionapi.SelectProperty); ok {
		st.Category = prop.Select.Name
	}
	if prop, ok := page.Properties[propSubcategory].(*notionapi.SelectProperty); ok {
		st.Subcategory = prop.Select.Name
	}
	return st
}

func plainText(rt notionapi.RichText) string {
	if rt.PlainText != "" {
		return rt.PlainText
	}
	if rt.Text != nil {
		return rt.Text.Content
	}
	return ""
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: s},
		},
	}
}

func notionDate(d civil.Date) *notionapi.Date {
	nd := notionapi.Date(d.In(time.UTC))
	return &nd
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
