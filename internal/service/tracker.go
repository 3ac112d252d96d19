package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ivanoskov/fincontrol/internal/model"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Event routing keys published after successful writes.
const (
	EventTransactionCreated = "transaction.created"
	EventTransactionUpdated = "transaction.updated"
	EventTransactionDeleted = "transaction.deleted"
	EventInvoicePaid        = "invoice.paid"
)

var (
	ErrCardNotFound        = errors.New("credit card not found")
	ErrCategoryNotFound    = errors.New("category not found")
	ErrInvalidInstallments = errors.New("installment count must be at least 1")
)

func isNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound)
}

// Repository is the subset of the persistence layer the tracker relies on.
type Repository interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id string) (model.Account, error)
	ListAccounts(ctx context.Context) ([]model.Account, error)
	UpdateAccount(ctx context.Context, id string, update model.AccountUpdate) error
	DeleteAccount(ctx context.Context, id string) error

	CreateCategory(ctx context.Context, category *model.Category) error
	ListCategories(ctx context.Context) ([]model.Category, error)
	UpdateCategory(ctx context.Context, id string, update model.CategoryUpdate) error
	DeleteCategory(ctx context.Context, id string) error

	CreateCard(ctx context.Context, card *model.CreditCard) error
	ListCards(ctx context.Context) ([]model.CreditCard, error)
	UpdateCard(ctx context.Context, id string, update model.CardUpdate) error
	DeleteCard(ctx context.Context, id string) error

	CreateTransaction(ctx context.Context, transaction *model.Transaction) error
	GetTransaction(ctx context.Context, id string) (model.Transaction, error)
	ListTransactions(ctx context.Context, filter model.TransactionFilter) ([]model.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, update model.TransactionUpdate) error
	DeleteTransaction(ctx context.Context, id string) error
}

// Publisher delivers domain events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, any) error { return nil }

// Tracker is the application layer: it validates input, writes through the
// repository, keeps stored account balances in step with paid transactions and
// serves the derived views computed from a freshly loaded snapshot.
type Tracker struct {
	repo      Repository
	log       zerolog.Logger
	publisher Publisher
	goal      decimal.Decimal
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type Option func(*Tracker)

func WithPublisher(p Publisher) Option {
	return func(t *Tracker) {
		if p != nil {
			t.publisher = p
		}
	}
}

// WithInvestmentGoal sets the fraction of income reserved for investment.
func WithInvestmentGoal(goal decimal.Decimal) Option {
	return func(t *Tracker) { t.goal = ClampGoal(goal) }
}

func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func NewTracker(repo Repository, log zerolog.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		repo:      repo,
		log:       log.With().Str("component", "tracker").Logger(),
		publisher: noopPublisher{},
		goal:      decimal.NewFromFloat(DefaultInvestmentGoal),
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Today is the tracker clock's current calendar date.
func (s *Tracker) Today() model.Date {
	return model.DateOf(s.now())
}

// InvestmentGoal is the configured investment reservation fraction.
func (s *Tracker) InvestmentGoal() decimal.Decimal {
	return s.goal
}

// LoadSnapshot fetches the four collections concurrently.
func (s *Tracker) LoadSnapshot(ctx context.Context) (model.Snapshot, error) {
	var snap model.Snapshot
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		accounts, err := s.repo.ListAccounts(ctx)
		if err != nil {
			return fmt.Errorf("failed to load accounts: %w", err)
		}
		snap.Accounts = accounts
		return nil
	})
	g.Go(func() error {
		categories, err := s.repo.ListCategories(ctx)
		if err != nil {
			return fmt.Errorf("failed to load categories: %w", err)
		}
		snap.Categories = categories
		return nil
	})
	g.Go(func() error {
		cards, err := s.repo.ListCards(ctx)
		if err != nil {
			return fmt.Errorf("failed to load cards: %w", err)
		}
		snap.Cards = cards
		return nil
	})
	g.Go(func() error {
		transactions, err := s.repo.ListTransactions(ctx, model.TransactionFilter{})
		if err != nil {
			return fmt.Errorf("failed to load transactions: %w", err)
		}
		snap.Transactions = transactions
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.Snapshot{}, err
	}
	return snap, nil
}

// Accounts

func (s *Tracker) CreateAccount(ctx context.Context, account *model.Account) error {
	if err := account.Validate(); err != nil {
		return err
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	s.log.Info().Str("account_id", account.ID).Str("name", account.Name).Msg("account created")
	return nil
}

// UpdateAccount applies a direct edit; a balance set here replaces the stored value.
func (s *Tracker) UpdateAccount(ctx context.Context, id string, update model.AccountUpdate) error {
	if err := update.Validate(); err != nil {
		return err
	}
	unlock := s.lockAccounts(id)
	defer unlock()
	if err := s.repo.UpdateAccount(ctx, id, update); err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return nil
}

// DeleteAccount removes the account. Transactions referencing it are kept.
func (s *Tracker) DeleteAccount(ctx context.Context, id string) error {
	if err := s.repo.DeleteAccount(ctx, id); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	s.log.Info().Str("account_id", id).Msg("account deleted")
	return nil
}

// Categories

func (s *Tracker) CreateCategory(ctx context.Context, category *model.Category) error {
	if tag, ok := model.ParseLogicTag(string(category.LogicTag)); ok {
		category.LogicTag = tag
	}
	if err := category.Validate(); err != nil {
		return err
	}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	s.log.Info().Str("category_id", category.ID).Str("name", category.Name).Msg("category created")
	return nil
}

func (s *Tracker) UpdateCategory(ctx context.Context, id string, update model.CategoryUpdate) error {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}
	current, ok := model.IndexCategories(categories)[id]
	if !ok {
		return fmt.Errorf("category %s: %w", id, ErrCategoryNotFound)
	}
	if err := update.Apply(current).Validate(); err != nil {
		return err
	}
	if err := s.repo.UpdateCategory(ctx, id, update); err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	return nil
}

func (s *Tracker) DeleteCategory(ctx context.Context, id string) error {
	if err := s.repo.DeleteCategory(ctx, id); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

// SeedDefaultCategories creates the starter categories when none exist yet.
// It returns the number of categories created.
func (s *Tracker) SeedDefaultCategories(ctx context.Context) (int, error) {
	existing, err := s.repo.ListCategories(ctx)
	if err != nil {
		return 0, fmt.Errorf("error getting existing categories: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	created := 0
	for _, category := range model.DefaultCategories() {
		if err := s.repo.CreateCategory(ctx, &category); err != nil {
			return created, fmt.Errorf("error creating category %s: %w", category.Name, err)
		}
		created++
	}
	s.log.Info().Int("count", created).Msg("default categories created")
	return created, nil
}

// Cards

func (s *Tracker) CreateCard(ctx context.Context, card *model.CreditCard) error {
	if err := card.Validate(); err != nil {
		return err
	}
	if err := s.repo.CreateCard(ctx, card); err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	s.log.Info().Str("card_id", card.ID).Str("name", card.Name).Msg("card created")
	return nil
}

func (s *Tracker) UpdateCard(ctx context.Context, id string, update model.CardUpdate) error {
	cards, err := s.repo.ListCards(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cards: %w", err)
	}
	snap := model.Snapshot{Cards: cards}
	current, ok := snap.Card(id)
	if !ok {
		return fmt.Errorf("card %s: %w", id, ErrCardNotFound)
	}
	if err := update.Apply(current).Validate(); err != nil {
		return err
	}
	if err := s.repo.UpdateCard(ctx, id, update); err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	return nil
}

func (s *Tracker) DeleteCard(ctx context.Context, id string) error {
	if err := s.repo.DeleteCard(ctx, id); err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	return nil
}

// Transactions

// AddTransaction validates and stores t, then applies its balance effect.
// Paid account transactions credit (income) or debit (anything else) the
// account; paid transfers move the amount between the two accounts.
func (s *Tracker) AddTransaction(ctx context.Context, t *model.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	if err := s.repo.CreateTransaction(ctx, t); err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	s.log.Info().
		Str("transaction_id", t.ID).
		Str("amount", t.Amount.StringFixed(2)).
		Str("status", string(t.Status)).
		Msg("transaction created")

	if err := s.applyDeltas(ctx, effectOf(*t, model.IndexCategories(categories))); err != nil {
		return err
	}
	s.publish(ctx, EventTransactionCreated, t)
	return nil
}

// AddInstallments records base as a chain of n installments and returns the
// stored rows in order. The first row keeps base's status and becomes the
// parent of the others. If any row fails, the rows already stored are deleted
// again, reverting their balance effects.
func (s *Tracker) AddInstallments(ctx context.Context, base model.Transaction, n int) ([]model.Transaction, error) {
	if n < 1 {
		return nil, ErrInvalidInstallments
	}
	chain := installmentChain(base, n)
	for i := range chain {
		if err := chain[i].Validate(); err != nil {
			return nil, err
		}
	}

	stored := make([]model.Transaction, 0, n)
	for i := range chain {
		if i > 0 {
			chain[i].ParentTransactionID = stored[0].ID
		}
		if err := s.AddTransaction(ctx, &chain[i]); err != nil {
			s.rollbackInstallments(ctx, stored)
			return nil, fmt.Errorf("installment %d/%d: %w", i+1, n, err)
		}
		stored = append(stored, chain[i])
	}
	return stored, nil
}

func (s *Tracker) rollbackInstallments(ctx context.Context, stored []model.Transaction) {
	for i := len(stored) - 1; i >= 0; i-- {
		if err := s.DeleteTransaction(ctx, stored[i].ID); err != nil {
			s.log.Error().Err(err).Str("transaction_id", stored[i].ID).Msg("failed to roll back installment")
		}
	}
}

// UpdateTransaction edits a stored transaction. Whatever balance effect the old
// version had is reverted and the new version's effect applied, so a status
// flip moves the balance exactly once.
func (s *Tracker) UpdateTransaction(ctx context.Context, id string, update model.TransactionUpdate) (model.Transaction, error) {
	unlock := s.lockTransaction(id)
	defer unlock()

	before, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to get transaction: %w", err)
	}
	after := update.Apply(before)
	if err := after.Validate(); err != nil {
		return model.Transaction{}, err
	}
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to load categories: %w", err)
	}
	if err := s.repo.UpdateTransaction(ctx, id, update); err != nil {
		return model.Transaction{}, fmt.Errorf("failed to update transaction: %w", err)
	}
	if err := s.applyDeltas(ctx, transitionDeltas(before, after, model.IndexCategories(categories))); err != nil {
		return after, err
	}
	s.publish(ctx, EventTransactionUpdated, after)
	return after, nil
}

// SetTransactionStatus marks a transaction paid or pending.
func (s *Tracker) SetTransactionStatus(ctx context.Context, id string, status model.Status) (model.Transaction, error) {
	if !status.IsValid() {
		return model.Transaction{}, fmt.Errorf("%w: %q", model.ErrInvalidStatus, status)
	}
	return s.UpdateTransaction(ctx, id, model.TransactionUpdate{Status: &status})
}

// DeleteTransaction removes a transaction and reverts its balance effect.
func (s *Tracker) DeleteTransaction(ctx context.Context, id string) error {
	unlock := s.lockTransaction(id)
	defer unlock()

	before, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get transaction: %w", err)
	}
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}
	if err := s.repo.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	reverted := before
	reverted.Status = model.StatusPending
	if err := s.applyDeltas(ctx, transitionDeltas(before, reverted, model.IndexCategories(categories))); err != nil {
		return err
	}
	s.publish(ctx, EventTransactionDeleted, before)
	return nil
}

// PayInvoice records a payment of the card's invoice (year, month) from the
// given account. A zero amount pays the whole outstanding total; larger
// amounts are capped to it. It returns nil without writing anything when
// nothing is outstanding or the account is unknown.
func (s *Tracker) PayInvoice(ctx context.Context, cardID string, key model.InvoiceKey, accountID string, amount decimal.Decimal) (*model.Transaction, error) {
	if amount.IsNegative() {
		return nil, model.ErrInvalidAmount
	}
	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	card, ok := snap.Card(cardID)
	if !ok {
		return nil, fmt.Errorf("card %s: %w", cardID, ErrCardNotFound)
	}
	logger := s.log.With().Str("card_id", card.ID).Str("invoice", key.String()).Logger()

	if _, ok := snap.Account(accountID); !ok || accountID == "" {
		logger.Warn().Str("account_id", accountID).Msg("no account to pay invoice from")
		return nil, nil
	}

	anchor := model.NewDate(key.Year, key.Month, 1)
	invoice, _ := FindInvoice(BuildInvoiceWindow(card, snap.Transactions, anchor), key.Year, key.Month)
	outstanding := OutstandingInvoiceTotal(invoice, snap.Transactions, card)
	if !outstanding.IsPositive() {
		logger.Info().Msg("invoice has nothing outstanding")
		return nil, nil
	}
	if amount.IsZero() || amount.GreaterThan(outstanding) {
		amount = outstanding
	}

	date := invoice.DueDate
	if date.IsZero() {
		date = s.Today()
	}
	payment := &model.Transaction{
		Amount:         amount,
		Description:    PaymentLabel(card, key),
		Date:           date,
		Status:         model.StatusPaid,
		AccountID:      accountID,
		InvoicePayment: &model.InvoicePayment{CardID: card.ID, Year: key.Year, Month: key.Month},
	}
	if category, ok := snap.FirstExpenseCategory(); ok {
		payment.CategoryID = category.ID
	}
	if err := s.AddTransaction(ctx, payment); err != nil {
		return nil, err
	}
	logger.Info().Str("amount", amount.StringFixed(2)).Msg("invoice paid")
	s.publish(ctx, EventInvoicePaid, payment)
	return payment, nil
}

// Views

// Summary computes the monthly dashboard figures.
func (s *Tracker) Summary(ctx context.Context, year int, month time.Month) (MonthlySummary, error) {
	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		return MonthlySummary{}, err
	}
	return BuildMonthlySummary(snap, year, month, s.goal), nil
}

// CardInvoices is the reconciled invoice window of one card.
type CardInvoices struct {
	Card           model.CreditCard `json:"card"`
	Invoices       []InvoiceStatus  `json:"invoices"`
	AvailableLimit decimal.Decimal  `json:"availableLimit"`
}

// Invoices returns the reconciled window around today for every card.
func (s *Tracker) Invoices(ctx context.Context) ([]CardInvoices, error) {
	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	today := s.Today()
	out := make([]CardInvoices, 0, len(snap.Cards))
	for _, card := range snap.Cards {
		window := BuildInvoiceWindow(card, snap.Transactions, today)
		out = append(out, CardInvoices{
			Card:           card,
			Invoices:       ReconcileWindow(card, snap.Transactions, today),
			AvailableLimit: AvailableLimit(card, window, today),
		})
	}
	return out, nil
}

func (s *Tracker) NetWorth(ctx context.Context) ([]NetWorthPoint, error) {
	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return NetWorthSeries(snap.Transactions, snap.Categories), nil
}

func (s *Tracker) Statement(ctx context.Context, filter StatementFilter) ([]StatementGroup, error) {
	snap, err := s.LoadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	return GroupByMonth(FilterStatement(snap.Transactions, snap.Categories, filter)), nil
}

// applyDeltas moves stored balances. Each account is read and written under
// its own lock so concurrent postings against the same account do not lose
// updates. Accounts that no longer exist are skipped.
func (s *Tracker) applyDeltas(ctx context.Context, deltas balanceDeltas) error {
	ids := deltas.accountIDs()
	if len(ids) == 0 {
		return nil
	}
	unlock := s.lockAccounts(ids...)
	defer unlock()

	for _, id := range ids {
		account, err := s.repo.GetAccount(ctx, id)
		if err != nil {
			if isNotFound(err) {
				s.log.Warn().Str("account_id", id).Msg("skipping balance update for missing account")
				continue
			}
			return fmt.Errorf("failed to get account %s: %w", id, err)
		}
		balance := account.CurrentBalance.Add(deltas[id])
		if err := s.repo.UpdateAccount(ctx, id, model.AccountUpdate{CurrentBalance: &balance}); err != nil {
			s.log.Error().Err(err).Str("account_id", id).Msg("failed to update balance")
			return fmt.Errorf("failed to update balance of account %s: %w", id, err)
		}
		s.log.Debug().
			Str("account_id", id).
			Str("delta", deltas[id].StringFixed(2)).
			Str("balance", balance.StringFixed(2)).
			Msg("balance updated")
	}
	return nil
}

// lockTransaction serializes edits of one transaction so its old version is
// read and reverted exactly once. It is always taken before account locks.
func (s *Tracker) lockTransaction(id string) func() {
	return s.lockAccounts("transaction:" + id)
}

// lockAccounts acquires the per-account locks in the given (sorted) order.
func (s *Tracker) lockAccounts(ids ...string) func() {
	held := make([]*sync.Mutex, 0, len(ids))
	for _, id := range ids {
		s.mu.Lock()
		l, ok := s.locks[id]
		if !ok {
			l = &sync.Mutex{}
			s.locks[id] = l
		}
		s.mu.Unlock()
		l.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func (s *Tracker) publish(ctx context.Context, routingKey string, payload any) {
	if err := s.publisher.Publish(ctx, routingKey, payload); err != nil {
		s.log.Error().Err(err).Str("routing_key", routingKey).Msg("failed to publish event")
	}
}
