package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPaid    Status = "pago"
	StatusPending Status = "pendente"
)

func (s Status) IsValid() bool {
	return s == StatusPaid || s == StatusPending
}

// InvoicePayment links a payment transaction to the card invoice it settles.
type InvoicePayment struct {
	CardID string     `json:"cardId"`
	Year   int        `json:"year"`
	Month  time.Month `json:"month"`
}

func (p InvoicePayment) Key() InvoiceKey {
	return InvoiceKey{Year: p.Year, Month: p.Month}
}

// Transaction is an atomic financial event. Amount is a magnitude; its direction
// comes from the linked category type. Empty ids mean "not linked".
type Transaction struct {
	ID                  string          `json:"id"`
	Amount              decimal.Decimal `json:"amount"`
	Description         string          `json:"description"`
	Date                Date            `json:"date"`
	Status              Status          `json:"status"`
	AccountID           string          `json:"accountId,omitempty"`
	CardID              string          `json:"cardId,omitempty"`
	CategoryID          string          `json:"categoryId,omitempty"`
	IsRecurring         bool            `json:"isRecurring"`
	IsTransfer          bool            `json:"isTransfer"`
	TransferToAccountID string          `json:"transferToAccountId,omitempty"`
	ParentTransactionID string          `json:"parentTransactionId,omitempty"`
	InstallmentNumber   int             `json:"installmentNumber,omitempty"`
	TotalInstallments   int             `json:"totalInstallments,omitempty"`
	InvoicePayment      *InvoicePayment `json:"invoicePayment,omitempty"`
	CreatedAt           time.Time       `json:"createdAt"`
}

// GenerateID assigns a new UUID if the transaction has none yet.
func (t *Transaction) GenerateID() {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
}

func (t Transaction) IsPaid() bool {
	return t.Status == StatusPaid
}

// Validate enforces the record invariants at the construction boundary.
func (t Transaction) Validate() error {
	if t.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, t.Status)
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}

	if t.IsTransfer {
		switch {
		case t.AccountID == "" || t.TransferToAccountID == "":
			return fmt.Errorf("%w: source and destination accounts are required", ErrInvalidTransfer)
		case t.AccountID == t.TransferToAccountID:
			return fmt.Errorf("%w: source and destination must differ", ErrInvalidTransfer)
		case t.CardID != "":
			return fmt.Errorf("%w: transfers cannot use a card", ErrInvalidTransfer)
		case t.CategoryID != "":
			return fmt.Errorf("%w: transfers cannot be categorized", ErrInvalidTransfer)
		}
	} else {
		if t.AccountID != "" && t.CardID != "" {
			return ErrAccountAndCard
		}
		if t.AccountID == "" && t.CardID == "" {
			return ErrMissingAccountOrCard
		}
		if t.TransferToAccountID != "" {
			return fmt.Errorf("%w: destination account set on a non-transfer", ErrInvalidTransfer)
		}
	}

	if t.TotalInstallments != 0 || t.InstallmentNumber != 0 {
		if t.TotalInstallments < 1 || t.InstallmentNumber < 1 || t.InstallmentNumber > t.TotalInstallments {
			return ErrInvalidInstallment
		}
	}
	return nil
}

// TransactionUpdate is a partial update; nil fields are left untouched.
// Status changes go through the tracker so balance effects are applied once.
type TransactionUpdate struct {
	Amount      *decimal.Decimal
	Description *string
	Date        *Date
	Status      *Status
	CategoryID  *string
	IsRecurring *bool
}

func (u TransactionUpdate) Apply(t Transaction) Transaction {
	if u.Amount != nil {
		t.Amount = *u.Amount
	}
	if u.Description != nil {
		t.Description = *u.Description
	}
	if u.Date != nil {
		t.Date = *u.Date
	}
	if u.Status != nil {
		t.Status = *u.Status
	}
	if u.CategoryID != nil {
		t.CategoryID = *u.CategoryID
	}
	if u.IsRecurring != nil {
		t.IsRecurring = *u.IsRecurring
	}
	return t
}

// TransactionFilter narrows a repository listing.
type TransactionFilter struct {
	StartDate *Date
	EndDate   *Date
	CardID    string
	Limit     int
}

func (f TransactionFilter) Match(t Transaction) bool {
	if f.StartDate != nil && t.Date.Before(f.StartDate.Time) {
		return false
	}
	if f.EndDate != nil && t.Date.After(f.EndDate.Time) {
		return false
	}
	if f.CardID != "" && t.CardID != f.CardID {
		return false
	}
	return true
}
