package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ivanoskov/fincontrol/internal/model"
)

// MemoryRepository keeps every record in process memory and is safe for
// concurrent use. Data is lost on restart.
type MemoryRepository struct {
	mu           sync.RWMutex
	now          func() time.Time
	accounts     map[string]model.Account
	categories   map[string]model.Category
	cards        map[string]model.CreditCard
	transactions map[string]model.Transaction

	// insertion sequence, used to keep listings in creation order
	seq   uint64
	order map[string]uint64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		now:          time.Now,
		accounts:     make(map[string]model.Account),
		categories:   make(map[string]model.Category),
		cards:        make(map[string]model.CreditCard),
		transactions: make(map[string]model.Transaction),
		order:        make(map[string]uint64),
	}
}

func (r *MemoryRepository) Close() error { return nil }

// stamp assigns an id and creation time when missing and records the
// insertion order. Callers hold the write lock.
func (r *MemoryRepository) stamp(id *string, createdAt *time.Time) {
	if *id == "" {
		*id = uuid.New().String()
	}
	if createdAt.IsZero() {
		*createdAt = r.now().UTC()
	}
	r.seq++
	r.order[*id] = r.seq
}

func (r *MemoryRepository) before(a, b string) bool {
	return r.order[a] < r.order[b]
}

func (r *MemoryRepository) CreateAccount(ctx context.Context, account *model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stamp(&account.ID, &account.CreatedAt)
	account.UpdatedAt = account.CreatedAt
	r.accounts[account.ID] = *account
	return nil
}

func (r *MemoryRepository) GetAccount(ctx context.Context, id string) (model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return model.Account{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return a, nil
}

func (r *MemoryRepository) ListAccounts(ctx context.Context) ([]model.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return r.before(out[i].ID, out[j].ID) })
	return out, nil
}

func (r *MemoryRepository) UpdateAccount(ctx context.Context, id string, update model.AccountUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	a = update.Apply(a)
	a.UpdatedAt = r.now().UTC()
	r.accounts[id] = a
	return nil
}

func (r *MemoryRepository) DeleteAccount(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	delete(r.accounts, id)
	delete(r.order, id)
	return nil
}

func (r *MemoryRepository) CreateCategory(ctx context.Context, category *model.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stamp(&category.ID, &category.CreatedAt)
	r.categories[category.ID] = copyCategory(*category)
	return nil
}

func (r *MemoryRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Category, 0, len(r.categories))
	for _, c := range r.categories {
		out = append(out, copyCategory(c))
	}
	sort.SliceStable(out, func(i, j int) bool { return r.before(out[i].ID, out[j].ID) })
	return out, nil
}

func (r *MemoryRepository) UpdateCategory(ctx context.Context, id string, update model.CategoryUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[id]
	if !ok {
		return fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	r.categories[id] = update.Apply(c)
	return nil
}

func (r *MemoryRepository) DeleteCategory(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.categories[id]; !ok {
		return fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	delete(r.categories, id)
	delete(r.order, id)
	return nil
}

func (r *MemoryRepository) CreateCard(ctx context.Context, card *model.CreditCard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stamp(&card.ID, &card.CreatedAt)
	r.cards[card.ID] = *card
	return nil
}

func (r *MemoryRepository) ListCards(ctx context.Context) ([]model.CreditCard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.CreditCard, 0, len(r.cards))
	for _, c := range r.cards {
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return r.before(out[i].ID, out[j].ID) })
	return out, nil
}

func (r *MemoryRepository) UpdateCard(ctx context.Context, id string, update model.CardUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cards[id]
	if !ok {
		return fmt.Errorf("card %s: %w", id, ErrNotFound)
	}
	r.cards[id] = update.Apply(c)
	return nil
}

func (r *MemoryRepository) DeleteCard(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cards[id]; !ok {
		return fmt.Errorf("card %s: %w", id, ErrNotFound)
	}
	delete(r.cards, id)
	delete(r.order, id)
	return nil
}

func (r *MemoryRepository) CreateTransaction(ctx context.Context, transaction *model.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stamp(&transaction.ID, &transaction.CreatedAt)
	r.transactions[transaction.ID] = copyTransaction(*transaction)
	return nil
}

func (r *MemoryRepository) GetTransaction(ctx context.Context, id string) (model.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transactions[id]
	if !ok {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return copyTransaction(t), nil
}

// ListTransactions returns matching transactions by ascending date.
func (r *MemoryRepository) ListTransactions(ctx context.Context, filter model.TransactionFilter) ([]model.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Transaction, 0, len(r.transactions))
	for _, t := range r.transactions {
		if filter.Match(t) {
			out = append(out, copyTransaction(t))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		return r.before(out[i].ID, out[j].ID)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *MemoryRepository) UpdateTransaction(ctx context.Context, id string, update model.TransactionUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transactions[id]
	if !ok {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	r.transactions[id] = update.Apply(t)
	return nil
}

func (r *MemoryRepository) DeleteTransaction(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.transactions[id]; !ok {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	delete(r.transactions, id)
	delete(r.order, id)
	return nil
}

func copyCategory(c model.Category) model.Category {
	if c.MonthlyBudget != nil {
		budget := *c.MonthlyBudget
		c.MonthlyBudget = &budget
	}
	return c
}

func copyTransaction(t model.Transaction) model.Transaction {
	if t.InvoicePayment != nil {
		link := *t.InvoicePayment
		t.InvoicePayment = &link
	}
	return t
}
