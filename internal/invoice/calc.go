package invoice

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/po-console/internal/backend"
	"github.com/odyssey-erp/po-console/internal/money"
)

// Totals are the derived rate, hours and total of an invoice.
type Totals struct {
	Rate  decimal.Decimal `json:"rate"`
	Hours decimal.Decimal `json:"hours"`
	Total decimal.Decimal `json:"total"`
}

// RecomputeRows sets every row amount to rate × quantity.
func RecomputeRows(items []backend.InvoiceItem, employees []backend.InvoiceEmployee) {
	for i := range items {
		items[i].Amount = money.LineAmount(items[i].Rate, items[i].Quantity)
	}
	for i := range employees {
		employees[i].Amount = money.LineAmount(employees[i].Rate, employees[i].Quantity)
	}
}

// blank rows are placeholders the form renders before anything is typed.
func blankItem(it backend.InvoiceItem) bool {
	return it.Description == "" && it.Rate.IsZero() && it.Quantity.IsZero()
}

func blankEmployee(e backend.InvoiceEmployee) bool {
	return e.UserID == 0 && e.Rate.IsZero() && e.Quantity.IsZero()
}

func activeItems(items []backend.InvoiceItem) []backend.InvoiceItem {
	out := make([]backend.InvoiceItem, 0, len(items))
	for _, it := range items {
		if !blankItem(it) {
			out = append(out, it)
		}
	}
	return out
}

func activeEmployees(employees []backend.InvoiceEmployee) []backend.InvoiceEmployee {
	out := make([]backend.InvoiceEmployee, 0, len(employees))
	for _, e := range employees {
		if !blankEmployee(e) {
			out = append(out, e)
		}
	}
	return out
}

// hasBillableRow reports whether any item or employee row carries an amount
// above zero.
func hasBillableRow(items []backend.InvoiceItem, employees []backend.InvoiceEmployee) bool {
	for _, it := range items {
		if money.Positive(it.Amount) {
			return true
		}
	}
	for _, e := range employees {
		if money.Positive(e.Amount) {
			return true
		}
	}
	return false
}

// DeriveInvoiceTotals computes the rate, hours and total sent to the
// backend. Preview and submit both go through it.
//
// The total is the sum of row amounts when any row is filled in, otherwise
// rate × hours. Missing hours come from the employee quantities, else 1.
// A missing rate comes from the only employee row, else the first item row,
// else total ÷ hours, and never drops below money.MinRate.
func DeriveInvoiceTotals(form FormData, items []backend.InvoiceItem, employees []backend.InvoiceEmployee) Totals {
	items = activeItems(items)
	employees = activeEmployees(employees)

	hours := form.Hours
	if !money.Positive(hours) {
		sum := decimal.Zero
		for _, e := range employees {
			sum = sum.Add(e.Quantity)
		}
		hours = sum
		if !money.Positive(hours) {
			hours = decimal.NewFromInt(1)
		}
	}

	var total decimal.Decimal
	if len(items)+len(employees) > 0 {
		amounts := make([]decimal.Decimal, 0, len(items)+len(employees))
		for _, it := range items {
			amounts = append(amounts, money.LineAmount(it.Rate, it.Quantity))
		}
		for _, e := range employees {
			amounts = append(amounts, money.LineAmount(e.Rate, e.Quantity))
		}
		total = money.Sum(amounts...)
	} else {
		total = money.LineAmount(form.Rate, hours)
	}

	rate := form.Rate
	if !money.Positive(rate) {
		switch {
		case len(employees) == 1 && money.Positive(employees[0].Rate):
			rate = employees[0].Rate
		case len(items) > 0 && money.Positive(items[0].Rate):
			rate = items[0].Rate
		default:
			rate = total.Div(hours)
		}
	}
	rate = money.Round2(rate)
	if rate.LessThan(money.MinRate) {
		rate = money.MinRate
	}
	return Totals{Rate: rate, Hours: money.Round2(hours), Total: total}
}
