package model

import "errors"

// ErrNotFound is returned by stores when a record id does not exist.
var ErrNotFound = errors.New("record not found")

// Validation errors returned when a record is built from external input.
var (
	ErrEmptyName            = errors.New("name is required")
	ErrInvalidAmount        = errors.New("amount must be a non-negative value")
	ErrInvalidStatus        = errors.New("invalid transaction status")
	ErrInvalidDate          = errors.New("date is required")
	ErrAccountAndCard       = errors.New("transaction cannot reference both an account and a card")
	ErrMissingAccountOrCard = errors.New("transaction must reference an account or a card")
	ErrInvalidTransfer      = errors.New("invalid transfer")
	ErrInvalidInstallment   = errors.New("invalid installment numbering")
	ErrInvalidAccountType   = errors.New("invalid account type")
	ErrInvalidCategoryType  = errors.New("invalid category type")
	ErrInvalidLogicTag      = errors.New("invalid logic tag")
	ErrInvalidColor         = errors.New("color must be a hex string like #1a2b3c")
	ErrInvalidBudget        = errors.New("monthly budget must be non-negative")
	ErrInvalidDay           = errors.New("day of month must be between 1 and 31")
	ErrInvalidLimit         = errors.New("credit limit must be non-negative")
)
