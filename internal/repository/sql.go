package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ivanoskov/fincontrol/internal/model"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour of a SQLRepository.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	return string(d)
}

// SQLRepository stores records in SQLite or PostgreSQL through database/sql,
// using the same table layout as the Supabase project.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	log     zerolog.Logger
}

// NewSQLiteRepository opens (creating if needed) the database file at path and
// migrates it.
func NewSQLiteRepository(path string, log zerolog.Logger) (*SQLRepository, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	return openSQL(DialectSQLite, path, log)
}

// NewPostgresRepository connects to dsn and migrates the schema.
func NewPostgresRepository(dsn string, log zerolog.Logger) (*SQLRepository, error) {
	return openSQL(DialectPostgres, dsn, log)
}

func openSQL(dialect Dialect, dsn string, log zerolog.Logger) (*SQLRepository, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if dialect == DialectSQLite {
		// one writer at a time
		db.SetMaxOpenConns(1)
	}
	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLRepository{
		db:      db,
		dialect: dialect,
		log:     log.With().Str("backend", string(dialect)).Logger(),
	}, nil
}

func (r *SQLRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func (r *SQLRepository) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.db.ExecContext(ctx, r.rebind(query), args...)
}

func (r *SQLRepository) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.db.QueryContext(ctx, r.rebind(query), args...)
}

func (r *SQLRepository) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.db.QueryRowContext(ctx, r.rebind(query), args...)
}

// execOne runs a statement expected to touch exactly one row.
func (r *SQLRepository) execOne(ctx context.Context, entity, id, query string, args ...any) error {
	result, err := r.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}
	return nil
}

// patch builds an UPDATE ... SET clause from the non-nil fields of an update.
type patch struct {
	sets []string
	args []any
}

func (p *patch) set(column string, value any) {
	p.sets = append(p.sets, column+" = ?")
	p.args = append(p.args, value)
}

func (p *patch) empty() bool { return len(p.sets) == 0 }

func (r *SQLRepository) applyPatch(ctx context.Context, table, entity, id string, p patch) error {
	if p.empty() {
		return nil
	}
	query := "UPDATE " + table + " SET " + strings.Join(p.sets, ", ") + " WHERE id = ?"
	return r.execOne(ctx, entity, id, query, append(p.args, id)...)
}

func (r *SQLRepository) deleteByID(ctx context.Context, table, entity, id string) error {
	return r.execOne(ctx, entity, id, "DELETE FROM "+table+" WHERE id = ?", id)
}

// Column values

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(i int) any {
	if i == 0 {
		return nil
	}
	return i
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

// timestampLayout is fixed width so SQLite text timestamps sort chronologically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// sqlTime scans timestamps stored as native values (PostgreSQL) or RFC 3339 text (SQLite).
type sqlTime struct {
	time.Time
}

func (t *sqlTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v.UTC()
		return nil
	case []byte:
		return t.Scan(string(v))
	case string:
		for _, layout := range []string{timestampLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, v); err == nil {
				t.Time = parsed.UTC()
				return nil
			}
		}
		return fmt.Errorf("cannot parse timestamp %q", v)
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Accounts

const accountColumns = "id, nome, tipo, saldo_atual, incluir_no_total, created_at, updated_at"

func scanAccount(s rowScanner) (model.Account, error) {
	var (
		a                model.Account
		tipo             string
		created, updated sqlTime
	)
	if err := s.Scan(&a.ID, &a.Name, &tipo, &a.CurrentBalance, &a.IncludeInTotal, &created, &updated); err != nil {
		return model.Account{}, err
	}
	a.Type = model.AccountType(tipo)
	a.CreatedAt = created.Time
	a.UpdatedAt = updated.Time
	return a, nil
}

func (r *SQLRepository) CreateAccount(ctx context.Context, account *model.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = account.CreatedAt

	_, err := r.exec(ctx,
		"INSERT INTO contas ("+accountColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		account.ID, account.Name, string(account.Type), account.CurrentBalance.String(),
		account.IncludeInTotal, timestamp(account.CreatedAt), timestamp(account.UpdatedAt),
	)
	if err != nil {
		r.log.Error().Err(err).Str("name", account.Name).Msg("failed to create account")
		return fmt.Errorf("failed to create account: %w", err)
	}
	r.log.Info().Str("account_id", account.ID).Msg("account created")
	return nil
}

func (r *SQLRepository) GetAccount(ctx context.Context, id string) (model.Account, error) {
	a, err := scanAccount(r.queryRow(ctx, "SELECT "+accountColumns+" FROM contas WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

func (r *SQLRepository) ListAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := r.query(ctx, "SELECT "+accountColumns+" FROM contas ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

func (r *SQLRepository) UpdateAccount(ctx context.Context, id string, update model.AccountUpdate) error {
	var p patch
	if update.Name != nil {
		p.set("nome", *update.Name)
	}
	if update.Type != nil {
		p.set("tipo", string(*update.Type))
	}
	if update.CurrentBalance != nil {
		p.set("saldo_atual", update.CurrentBalance.String())
	}
	if update.IncludeInTotal != nil {
		p.set("incluir_no_total", *update.IncludeInTotal)
	}
	if !p.empty() {
		p.set("updated_at", timestamp(time.Now()))
	}
	if err := r.applyPatch(ctx, "contas", "account", id, p); err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return nil
}

func (r *SQLRepository) DeleteAccount(ctx context.Context, id string) error {
	if err := r.deleteByID(ctx, "contas", "account", id); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

// Categories

const categoryColumns = "id, nome, icone, cor, tipo, tag_logica, orcamento_mensal, created_at"

func scanCategory(s rowScanner) (model.Category, error) {
	var (
		c       model.Category
		tipo    string
		tag     sql.NullString
		budget  decimal.NullDecimal
		created sqlTime
	)
	if err := s.Scan(&c.ID, &c.Name, &c.Icon, &c.Color, &tipo, &tag, &budget, &created); err != nil {
		return model.Category{}, err
	}
	c.Type = model.CategoryType(tipo)
	c.LogicTag, _ = model.ParseLogicTag(tag.String)
	if budget.Valid {
		c.MonthlyBudget = &budget.Decimal
	}
	c.CreatedAt = created.Time
	return c, nil
}

func (r *SQLRepository) CreateCategory(ctx context.Context, category *model.Category) error {
	if category.ID == "" {
		category.ID = uuid.New().String()
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}

	_, err := r.exec(ctx,
		"INSERT INTO categorias ("+categoryColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		category.ID, category.Name, category.Icon, category.Color, string(category.Type),
		nullString(string(category.LogicTag)), nullDecimal(category.MonthlyBudget), timestamp(category.CreatedAt),
	)
	if err != nil {
		r.log.Error().Err(err).Str("name", category.Name).Msg("failed to create category")
		return fmt.Errorf("failed to create category: %w", err)
	}
	r.log.Info().Str("category_id", category.ID).Msg("category created")
	return nil
}

func (r *SQLRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.query(ctx, "SELECT "+categoryColumns+" FROM categorias ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return categories, nil
}

func (r *SQLRepository) UpdateCategory(ctx context.Context, id string, update model.CategoryUpdate) error {
	var p patch
	if update.Name != nil {
		p.set("nome", *update.Name)
	}
	if update.Icon != nil {
		p.set("icone", *update.Icon)
	}
	if update.Color != nil {
		p.set("cor", *update.Color)
	}
	if update.Type != nil {
		p.set("tipo", string(*update.Type))
	}
	if update.LogicTag != nil {
		p.set("tag_logica", nullString(string(*update.LogicTag)))
	}
	if update.MonthlyBudget != nil {
		p.set("orcamento_mensal", update.MonthlyBudget.String())
	}
	if err := r.applyPatch(ctx, "categorias", "category", id, p); err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	return nil
}

func (r *SQLRepository) DeleteCategory(ctx context.Context, id string) error {
	if err := r.deleteByID(ctx, "categorias", "category", id); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

// Credit cards

const cardColumns = "id, nome, dia_fechamento, dia_vencimento, limite_total, created_at"

func scanCard(s rowScanner) (model.CreditCard, error) {
	var (
		c       model.CreditCard
		created sqlTime
	)
	if err := s.Scan(&c.ID, &c.Name, &c.ClosingDay, &c.DueDay, &c.TotalLimit, &created); err != nil {
		return model.CreditCard{}, err
	}
	c.CreatedAt = created.Time
	return c, nil
}

func (r *SQLRepository) CreateCard(ctx context.Context, card *model.CreditCard) error {
	if card.ID == "" {
		card.ID = uuid.New().String()
	}
	if card.CreatedAt.IsZero() {
		card.CreatedAt = time.Now().UTC()
	}

	_, err := r.exec(ctx,
		"INSERT INTO cartoes ("+cardColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		card.ID, card.Name, card.ClosingDay, card.DueDay, card.TotalLimit.String(), timestamp(card.CreatedAt),
	)
	if err != nil {
		r.log.Error().Err(err).Str("name", card.Name).Msg("failed to create card")
		return fmt.Errorf("failed to create card: %w", err)
	}
	r.log.Info().Str("card_id", card.ID).Msg("card created")
	return nil
}

func (r *SQLRepository) ListCards(ctx context.Context) ([]model.CreditCard, error) {
	rows, err := r.query(ctx, "SELECT "+cardColumns+" FROM cartoes ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	defer rows.Close()

	var cards []model.CreditCard
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cards: %w", err)
	}
	return cards, nil
}

func (r *SQLRepository) UpdateCard(ctx context.Context, id string, update model.CardUpdate) error {
	var p patch
	if update.Name != nil {
		p.set("nome", *update.Name)
	}
	if update.ClosingDay != nil {
		p.set("dia_fechamento", *update.ClosingDay)
	}
	if update.DueDay != nil {
		p.set("dia_vencimento", *update.DueDay)
	}
	if update.TotalLimit != nil {
		p.set("limite_total", update.TotalLimit.String())
	}
	if err := r.applyPatch(ctx, "cartoes", "card", id, p); err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	return nil
}

func (r *SQLRepository) DeleteCard(ctx context.Context, id string) error {
	if err := r.deleteByID(ctx, "cartoes", "card", id); err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	return nil
}

// Transactions

const transactionColumns = "id, valor, descricao, data, status, conta_id, cartao_id, categoria_id, " +
	"recorrente, transferencia, conta_destino_id, transacao_pai_id, parcela_numero, parcelas_total, " +
	"fatura_cartao_id, fatura_ano, fatura_mes, created_at"

func scanTransaction(s rowScanner) (model.Transaction, error) {
	var (
		t                             model.Transaction
		status                        string
		accountID, cardID, categoryID sql.NullString
		destinationID, parentID       sql.NullString
		installment, installments     sql.NullInt64
		invoiceCardID                 sql.NullString
		invoiceYear, invoiceMonth     sql.NullInt64
		created                       sqlTime
	)
	err := s.Scan(
		&t.ID, &t.Amount, &t.Description, &t.Date, &status, &accountID, &cardID, &categoryID,
		&t.IsRecurring, &t.IsTransfer, &destinationID, &parentID, &installment, &installments,
		&invoiceCardID, &invoiceYear, &invoiceMonth, &created,
	)
	if err != nil {
		return model.Transaction{}, err
	}
	t.Status = model.Status(status)
	t.AccountID = accountID.String
	t.CardID = cardID.String
	t.CategoryID = categoryID.String
	t.TransferToAccountID = destinationID.String
	t.ParentTransactionID = parentID.String
	t.InstallmentNumber = int(installment.Int64)
	t.TotalInstallments = int(installments.Int64)
	if invoiceCardID.Valid && invoiceYear.Valid && invoiceMonth.Valid {
		t.InvoicePayment = &model.InvoicePayment{
			CardID: invoiceCardID.String,
			Year:   int(invoiceYear.Int64),
			Month:  time.Month(invoiceMonth.Int64),
		}
	}
	t.CreatedAt = created.Time
	return t, nil
}

func (r *SQLRepository) CreateTransaction(ctx context.Context, transaction *model.Transaction) error {
	transaction.GenerateID()
	if transaction.CreatedAt.IsZero() {
		transaction.CreatedAt = time.Now().UTC()
	}

	var invoiceCardID, invoiceYear, invoiceMonth any
	if p := transaction.InvoicePayment; p != nil {
		invoiceCardID, invoiceYear, invoiceMonth = nullString(p.CardID), p.Year, int(p.Month)
	}

	_, err := r.exec(ctx,
		"INSERT INTO transacoes ("+transactionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		transaction.ID, transaction.Amount.String(), transaction.Description, transaction.Date,
		string(transaction.Status), nullString(transaction.AccountID), nullString(transaction.CardID),
		nullString(transaction.CategoryID), transaction.IsRecurring, transaction.IsTransfer,
		nullString(transaction.TransferToAccountID), nullString(transaction.ParentTransactionID),
		nullInt(transaction.InstallmentNumber), nullInt(transaction.TotalInstallments),
		invoiceCardID, invoiceYear, invoiceMonth, timestamp(transaction.CreatedAt),
	)
	if err != nil {
		r.log.Error().Err(err).Str("description", transaction.Description).Msg("failed to create transaction")
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	r.log.Info().Str("transaction_id", transaction.ID).Msg("transaction created")
	return nil
}

func (r *SQLRepository) GetTransaction(ctx context.Context, id string) (model.Transaction, error) {
	t, err := scanTransaction(r.queryRow(ctx, "SELECT "+transactionColumns+" FROM transacoes WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to get transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns matching transactions by ascending date.
func (r *SQLRepository) ListTransactions(ctx context.Context, filter model.TransactionFilter) ([]model.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if filter.StartDate != nil {
		where = append(where, "data >= ?")
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		where = append(where, "data <= ?")
		args = append(args, *filter.EndDate)
	}
	if filter.CardID != "" {
		where = append(where, "cartao_id = ?")
		args = append(args, filter.CardID)
	}

	query := "SELECT " + transactionColumns + " FROM transacoes"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY data, created_at, id"
	if filter.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(filter.Limit)
	}

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer rows.Close()

	var transactions []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

func (r *SQLRepository) UpdateTransaction(ctx context.Context, id string, update model.TransactionUpdate) error {
	var p patch
	if update.Amount != nil {
		p.set("valor", update.Amount.String())
	}
	if update.Description != nil {
		p.set("descricao", *update.Description)
	}
	if update.Date != nil {
		p.set("data", *update.Date)
	}
	if update.Status != nil {
		p.set("status", string(*update.Status))
	}
	if update.CategoryID != nil {
		p.set("categoria_id", nullString(*update.CategoryID))
	}
	if update.IsRecurring != nil {
		p.set("recorrente", *update.IsRecurring)
	}
	if err := r.applyPatch(ctx, "transacoes", "transaction", id, p); err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return nil
}

func (r *SQLRepository) DeleteTransaction(ctx context.Context, id string) error {
	if err := r.deleteByID(ctx, "transacoes", "transaction", id); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}
