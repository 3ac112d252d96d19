package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceKey identifies a billing cycle by the month its statement closes.
type InvoiceKey struct {
	Year  int
	Month time.Month
}

func KeyOf(d Date) InvoiceKey {
	return InvoiceKey{Year: d.Year(), Month: d.Month()}
}

// AddMonths shifts the key, rolling the year over as needed.
func (k InvoiceKey) AddMonths(n int) InvoiceKey {
	t := time.Date(k.Year, k.Month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return InvoiceKey{Year: t.Year(), Month: t.Month()}
}

func (k InvoiceKey) Before(o InvoiceKey) bool {
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.Month < o.Month
}

// String renders the "YYYY-MM" key.
func (k InvoiceKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

// Invoice is a derived view of one billing cycle of one card. It is never stored.
type Invoice struct {
	Key          InvoiceKey      `json:"key"`
	CardID       string          `json:"cardId"`
	Transactions []Transaction   `json:"transactions"`
	Total        decimal.Decimal `json:"total"`
	ClosingDate  Date            `json:"closingDate"`
	DueDate      Date            `json:"dueDate"`
}
