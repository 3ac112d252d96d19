package repository

import (
	"context"

	"github.com/ivanoskov/fincontrol/internal/model"
)

// ErrNotFound is returned when a record id does not exist in the store.
var ErrNotFound = model.ErrNotFound

// Repository is the persistence collaborator. Create methods fill in the
// generated ID and CreatedAt of the record they receive.
type Repository interface {
	// Accounts
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id string) (model.Account, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
	UpdateAccount(ctx context.Context, id string, update model.AccountUpdate) error
	DeleteAccount(ctx context.Context, id string) error

	// Categories
	CreateCategory(ctx context.Context, category *model.Category) error
	ListCategories(ctx context.Context) ([]model.Category, error)
	UpdateCategory(ctx context.Context, id string, update model.CategoryUpdate) error
	DeleteCategory(ctx context.Context, id string) error

	// Credit cards
	CreateCard(ctx context.Context, card *model.CreditCard) error
	ListCards(ctx context.Context) ([]model.CreditCard, error)
	UpdateCard(ctx context.Context, id string, update model.CardUpdate) error
	DeleteCard(ctx context.Context, id string) error

	// Transactions
	CreateTransaction(ctx context.Context, transaction *model.Transaction) error
	GetTransaction(ctx context.Context, id string) (model.Transaction, error)
	ListTransactions(ctx context.Context, filter model.TransactionFilter) ([]model.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, update model.TransactionUpdate) error
	DeleteTransaction(ctx context.Context, id string) error

	Close() error
}
