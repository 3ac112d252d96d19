package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

// Account types as persisted by the storage layer.
const (
	AccountChecking   AccountType = "Corrente"
	AccountInvestment AccountType = "Investimento"
	AccountCash       AccountType = "Dinheiro"
)

func (t AccountType) IsValid() bool {
	switch t {
	case AccountChecking, AccountInvestment, AccountCash:
		return true
	}
	return false
}

// Account is a named money container. CurrentBalance is a stored running value:
// it changes only when a transaction posts against the account or on a direct edit.
type Account struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	CurrentBalance decimal.Decimal `json:"currentBalance"`
	IncludeInTotal bool            `json:"includeInTotal"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if !a.Type.IsValid() {
		return ErrInvalidAccountType
	}
	return nil
}

// AccountUpdate is a partial update; nil fields are left untouched.
type AccountUpdate struct {
	Name           *string
	Type           *AccountType
	CurrentBalance *decimal.Decimal
	IncludeInTotal *bool
}

func (u AccountUpdate) Validate() error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return ErrEmptyName
	}
	if u.Type != nil && !u.Type.IsValid() {
		return ErrInvalidAccountType
	}
	return nil
}

// Apply returns a copy of a with the update applied.
func (u AccountUpdate) Apply(a Account) Account {
	if u.Name != nil {
		a.Name = *u.Name
	}
	if u.Type != nil {
		a.Type = *u.Type
	}
	if u.CurrentBalance != nil {
		a.CurrentBalance = *u.CurrentBalance
	}
	if u.IncludeInTotal != nil {
		a.IncludeInTotal = *u.IncludeInTotal
	}
	return a
}
