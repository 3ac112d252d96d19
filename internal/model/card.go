package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CreditCard is a billing instrument. When DueDay < ClosingDay the bill closing
// in a month is due in the following calendar month.
type CreditCard struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	ClosingDay int             `json:"closingDay"`
	DueDay     int             `json:"dueDay"`
	TotalLimit decimal.Decimal `json:"totalLimit"`
	CreatedAt  time.Time       `json:"createdAt"`
}

func (c CreditCard) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !validDay(c.ClosingDay) || !validDay(c.DueDay) {
		return ErrInvalidDay
	}
	if c.TotalLimit.IsNegative() {
		return ErrInvalidLimit
	}
	return nil
}

func validDay(d int) bool {
	return d >= 1 && d <= 31
}

type CardUpdate struct {
	Name       *string
	ClosingDay *int
	DueDay     *int
	TotalLimit *decimal.Decimal
}

func (u CardUpdate) Apply(c CreditCard) CreditCard {
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.ClosingDay != nil {
		c.ClosingDay = *u.ClosingDay
	}
	if u.DueDay != nil {
		c.DueDay = *u.DueDay
	}
	if u.TotalLimit != nil {
		c.TotalLimit = *u.TotalLimit
	}
	return c
}
