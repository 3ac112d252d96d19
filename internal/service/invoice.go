package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ivanoskov/fincontrol/internal/model"
	"github.com/shopspring/decimal"
)

const (
	// WindowBefore and WindowAfter bound the invoice window around today's month.
	WindowBefore = 2
	WindowAfter  = 3

	paymentLabelPrefix = "Payment for invoice"
)

// InvoiceMonthFor returns the invoice a purchase made on date belongs to: purchases
// after the closing day roll into the next month's statement.
func InvoiceMonthFor(closingDay int, date model.Date) model.InvoiceKey {
	key := model.KeyOf(date)
	if date.Day() > closingDay {
		return key.AddMonths(1)
	}
	return key
}

// CycleDates computes the closing and due dates of the invoice identified by key.
// A due day numerically before the closing day falls in the following month.
func CycleDates(card model.CreditCard, key model.InvoiceKey) (closing, due model.Date) {
	closing = model.ClampedDate(key.Year, key.Month, card.ClosingDay)
	due = model.ClampedDate(key.Year, key.Month, card.DueDay)
	if due.Before(closing.Time) {
		next := key.AddMonths(1)
		due = model.ClampedDate(next.Year, next.Month, card.DueDay)
	}
	return closing, due
}

// BuildInvoiceWindow lays out the card's invoices from two months before today's
// month to three months after, ascending. Every slot is present even when empty;
// card transactions falling outside the window are dropped.
func BuildInvoiceWindow(card model.CreditCard, transactions []model.Transaction, today model.Date) []model.Invoice {
	current := model.KeyOf(today)
	invoices := make([]model.Invoice, 0, WindowBefore+WindowAfter+1)
	slots := make(map[model.InvoiceKey]int, WindowBefore+WindowAfter+1)

	for offset := -WindowBefore; offset <= WindowAfter; offset++ {
		key := current.AddMonths(offset)
		closing, due := CycleDates(card, key)
		slots[key] = len(invoices)
		invoices = append(invoices, model.Invoice{
			Key:          key,
			CardID:       card.ID,
			Transactions: []model.Transaction{},
			Total:        decimal.Zero,
			ClosingDate:  closing,
			DueDate:      due,
		})
	}

	for _, t := range transactions {
		if t.CardID != card.ID {
			continue
		}
		i, ok := slots[InvoiceMonthFor(card.ClosingDay, t.Date)]
		if !ok {
			continue
		}
		invoices[i].Transactions = append(invoices[i].Transactions, t)
		invoices[i].Total = invoices[i].Total.Add(t.Amount)
	}

	sort.SliceStable(invoices, func(i, j int) bool {
		return invoices[i].Key.Before(invoices[j].Key)
	})
	return invoices
}

// CurrentInvoice returns the window slot for today's month.
func CurrentInvoice(window []model.Invoice, today model.Date) (model.Invoice, bool) {
	key := model.KeyOf(today)
	for _, inv := range window {
		if inv.Key == key {
			return inv, true
		}
	}
	return model.Invoice{}, false
}

// AvailableLimit is the card's total limit minus the current invoice total.
func AvailableLimit(card model.CreditCard, window []model.Invoice, today model.Date) decimal.Decimal {
	inv, ok := CurrentInvoice(window, today)
	if !ok {
		return card.TotalLimit
	}
	return card.TotalLimit.Sub(inv.Total)
}

// PaymentLabel is the description given to a payment of the card's invoice.
func PaymentLabel(card model.CreditCard, key model.InvoiceKey) string {
	return fmt.Sprintf("%s %s %02d/%04d", paymentLabelPrefix, card.Name, int(key.Month), key.Year)
}

// IsInvoicePayment reports whether t settles (part of) the given invoice. Paid,
// account-linked, non-transfer rows match by their explicit invoice link; rows
// without a link are matched by their description label.
func IsInvoicePayment(t model.Transaction, card model.CreditCard, key model.InvoiceKey) bool {
	if !t.IsPaid() || t.IsTransfer || t.AccountID == "" || t.CardID != "" {
		return false
	}
	if t.InvoicePayment != nil {
		return t.InvoicePayment.CardID == card.ID && t.InvoicePayment.Key() == key
	}
	return strings.HasPrefix(t.Description, PaymentLabel(card, key))
}

// PaidTowards sums the payments already recorded against the invoice.
func PaidTowards(invoice model.Invoice, transactions []model.Transaction, card model.CreditCard) decimal.Decimal {
	paid := decimal.Zero
	for _, t := range transactions {
		if IsInvoicePayment(t, card, invoice.Key) {
			paid = paid.Add(t.Amount)
		}
	}
	return paid
}

// OutstandingInvoiceTotal is the invoice total minus recorded payments, floored at zero.
func OutstandingInvoiceTotal(invoice model.Invoice, transactions []model.Transaction, card model.CreditCard) decimal.Decimal {
	outstanding := invoice.Total.Sub(PaidTowards(invoice, transactions, card))
	if outstanding.IsNegative() {
		return decimal.Zero
	}
	return outstanding
}

// InvoiceStatus pairs an invoice with its reconciliation figures.
type InvoiceStatus struct {
	Invoice     model.Invoice   `json:"invoice"`
	Offset      int             `json:"offset"`
	Paid        decimal.Decimal `json:"paid"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// Label names the slot relative to the current invoice.
func (s InvoiceStatus) Label() string {
	switch {
	case s.Offset == 0:
		return "Current invoice"
	case s.Offset == 1:
		return "Next invoice"
	case s.Offset == -1:
		return "Previous invoice"
	case s.Offset > 1:
		return fmt.Sprintf("Invoice +%d", s.Offset)
	default:
		return fmt.Sprintf("Invoice %d", s.Offset)
	}
}

// ReconcileWindow attaches paid and outstanding amounts to every invoice of the window.
func ReconcileWindow(card model.CreditCard, transactions []model.Transaction, today model.Date) []InvoiceStatus {
	current := model.KeyOf(today)
	window := BuildInvoiceWindow(card, transactions, today)
	statuses := make([]InvoiceStatus, 0, len(window))
	for _, inv := range window {
		paid := PaidTowards(inv, transactions, card)
		outstanding := inv.Total.Sub(paid)
		if outstanding.IsNegative() {
			outstanding = decimal.Zero
		}
		statuses = append(statuses, InvoiceStatus{
			Invoice:     inv,
			Offset:      monthsBetween(current, inv.Key),
			Paid:        paid,
			Outstanding: outstanding,
		})
	}
	return statuses
}

func monthsBetween(from, to model.InvoiceKey) int {
	return (to.Year-from.Year)*12 + int(to.Month) - int(from.Month)
}

// FindInvoice locates the slot with the given key.
func FindInvoice(window []model.Invoice, year int, month time.Month) (model.Invoice, bool) {
	key := model.InvoiceKey{Year: year, Month: month}
	for _, inv := range window {
		if inv.Key == key {
			return inv, true
		}
	}
	return model.Invoice{}, false
}
