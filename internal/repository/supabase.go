package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/ivanoskov/fincontrol/internal/model"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/supabase-community/supabase-go"
)

// Supabase table names.
const (
	tableAccounts     = "contas"
	tableCategories   = "categorias"
	tableCards        = "cartoes"
	tableTransactions = "transacoes"
)

// SupabaseRepository stores records in a Supabase (PostgREST) project. When a
// user id is configured every row is written with it and reads are scoped to it.
type SupabaseRepository struct {
	client *supabase.Client
	userID string
	log    zerolog.Logger
}

func NewSupabaseRepository(url, key, userID string, log zerolog.Logger) (*SupabaseRepository, error) {
	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &SupabaseRepository{
		client: client,
		userID: userID,
		log:    log.With().Str("backend", "supabase").Logger(),
	}, nil
}

func (r *SupabaseRepository) Close() error { return nil }

// Row shapes of the Supabase tables.

type contaRow struct {
	ID             string          `json:"id,omitempty"`
	Nome           string          `json:"nome"`
	Tipo           string          `json:"tipo"`
	SaldoAtual     decimal.Decimal `json:"saldo_atual"`
	IncluirNoTotal bool            `json:"incluir_no_total"`
	UserID         string          `json:"user_id,omitempty"`
	CreatedAt      *time.Time      `json:"created_at,omitempty"`
	UpdatedAt      *time.Time      `json:"updated_at,omitempty"`
}

type categoriaRow struct {
	ID              string           `json:"id,omitempty"`
	Nome            string           `json:"nome"`
	Icone           string           `json:"icone"`
	Cor             string           `json:"cor"`
	Tipo            string           `json:"tipo"`
	TagLogica       *string          `json:"tag_logica"`
	OrcamentoMensal *decimal.Decimal `json:"orcamento_mensal"`
	UserID          string           `json:"user_id,omitempty"`
	CreatedAt       *time.Time       `json:"created_at,omitempty"`
}

type cartaoRow struct {
	ID            string          `json:"id,omitempty"`
	Nome          string          `json:"nome"`
	DiaFechamento int             `json:"dia_fechamento"`
	DiaVencimento int             `json:"dia_vencimento"`
	LimiteTotal   decimal.Decimal `json:"limite_total"`
	UserID        string          `json:"user_id,omitempty"`
	CreatedAt     *time.Time      `json:"created_at,omitempty"`
}

type transacaoRow struct {
	ID             string          `json:"id,omitempty"`
	Valor          decimal.Decimal `json:"valor"`
	Descricao      string          `json:"descricao"`
	Data           model.Date      `json:"data"`
	Status         string          `json:"status"`
	ContaID        *string         `json:"conta_id"`
	CartaoID       *string         `json:"cartao_id"`
	CategoriaID    *string         `json:"categoria_id"`
	Recorrente     bool            `json:"recorrente"`
	Transferencia  bool            `json:"transferencia"`
	ContaDestinoID *string         `json:"conta_destino_id"`
	TransacaoPaiID *string         `json:"transacao_pai_id"`
	ParcelaNumero  *int            `json:"parcela_numero"`
	ParcelasTotal  *int            `json:"parcelas_total"`
	FaturaCartaoID *string         `json:"fatura_cartao_id"`
	FaturaAno      *int            `json:"fatura_ano"`
	FaturaMes      *int            `json:"fatura_mes"`
	UserID         string          `json:"user_id,omitempty"`
	CreatedAt      *time.Time      `json:"created_at,omitempty"`
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optInt(i int) *int {
	if i == 0 {
		return nil
	}
	return &i
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

func toContaRow(a model.Account) contaRow {
	return contaRow{
		Nome:           a.Name,
		Tipo:           string(a.Type),
		SaldoAtual:     a.CurrentBalance,
		IncluirNoTotal: a.IncludeInTotal,
	}
}

func (row contaRow) model() model.Account {
	return model.Account{
		ID:             row.ID,
		Name:           row.Nome,
		Type:           model.AccountType(row.Tipo),
		CurrentBalance: row.SaldoAtual,
		IncludeInTotal: row.IncluirNoTotal,
		CreatedAt:      derefTime(row.CreatedAt),
		UpdatedAt:      derefTime(row.UpdatedAt),
	}
}

func toCategoriaRow(c model.Category) categoriaRow {
	return categoriaRow{
		Nome:            c.Name,
		Icone:           c.Icon,
		Cor:             c.Color,
		Tipo:            string(c.Type),
		TagLogica:       optString(string(c.LogicTag)),
		OrcamentoMensal: c.MonthlyBudget,
	}
}

func (row categoriaRow) model() model.Category {
	tag, _ := model.ParseLogicTag(derefString(row.TagLogica))
	return model.Category{
		ID:            row.ID,
		Name:          row.Nome,
		Icon:          row.Icone,
		Color:         row.Cor,
		Type:          model.CategoryType(row.Tipo),
		LogicTag:      tag,
		MonthlyBudget: row.OrcamentoMensal,
		CreatedAt:     derefTime(row.CreatedAt),
	}
}

func toCartaoRow(c model.CreditCard) cartaoRow {
	return cartaoRow{
		Nome:          c.Name,
		DiaFechamento: c.ClosingDay,
		DiaVencimento: c.DueDay,
		LimiteTotal:   c.TotalLimit,
	}
}

func (row cartaoRow) model() model.CreditCard {
	return model.CreditCard{
		ID:         row.ID,
		Name:       row.Nome,
		ClosingDay: row.DiaFechamento,
		DueDay:     row.DiaVencimento,
		TotalLimit: row.LimiteTotal,
		CreatedAt:  derefTime(row.CreatedAt),
	}
}

func toTransacaoRow(t model.Transaction) transacaoRow {
	row := transacaoRow{
		Valor:          t.Amount,
		Descricao:      t.Description,
		Data:           t.Date,
		Status:         string(t.Status),
		ContaID:        optString(t.AccountID),
		CartaoID:       optString(t.CardID),
		CategoriaID:    optString(t.CategoryID),
		Recorrente:     t.IsRecurring,
		Transferencia:  t.IsTransfer,
		ContaDestinoID: optString(t.TransferToAccountID),
		TransacaoPaiID: optString(t.ParentTransactionID),
		ParcelaNumero:  optInt(t.InstallmentNumber),
		ParcelasTotal:  optInt(t.TotalInstallments),
	}
	if p := t.InvoicePayment; p != nil {
		row.FaturaCartaoID = optString(p.CardID)
		row.FaturaAno = optInt(p.Year)
		row.FaturaMes = optInt(int(p.Month))
	}
	return row
}

func (row transacaoRow) model() model.Transaction {
	t := model.Transaction{
		ID:                  row.ID,
		Amount:              row.Valor,
		Description:         row.Descricao,
		Date:                row.Data,
		Status:              model.Status(row.Status),
		AccountID:           derefString(row.ContaID),
		CardID:              derefString(row.CartaoID),
		CategoryID:          derefString(row.CategoriaID),
		IsRecurring:         row.Recorrente,
		IsTransfer:          row.Transferencia,
		TransferToAccountID: derefString(row.ContaDestinoID),
		ParentTransactionID: derefString(row.TransacaoPaiID),
		InstallmentNumber:   derefInt(row.ParcelaNumero),
		TotalInstallments:   derefInt(row.ParcelasTotal),
		CreatedAt:           derefTime(row.CreatedAt),
	}
	if row.FaturaCartaoID != nil && row.FaturaAno != nil && row.FaturaMes != nil {
		t.InvoicePayment = &model.InvoicePayment{
			CardID: *row.FaturaCartaoID,
			Year:   *row.FaturaAno,
			Month:  time.Month(*row.FaturaMes),
		}
	}
	return t
}

// insert writes one row and decodes the stored representation into out.
func (r *SupabaseRepository) insert(table string, row any, out any) error {
	data, _, err := r.client.From(table).Insert(row, false, "", "representation", "").Execute()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse inserted row: %w", err)
	}
	return nil
}

// selectAll fetches every row of table visible to the configured user.
func (r *SupabaseRepository) selectAll(table string, out any) error {
	query := r.client.From(table).Select("*", "", false)
	if r.userID != "" {
		query = query.Eq("user_id", r.userID)
	}
	data, _, err := query.Execute()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// update patches the row with the given id. Patches with no fields are no-ops.
func (r *SupabaseRepository) update(table, id string, payload map[string]any) error {
	if len(payload) == 0 {
		return nil
	}
	query := r.client.From(table).Update(payload, "representation", "").Eq("id", id)
	if r.userID != "" {
		query = query.Eq("user_id", r.userID)
	}
	data, _, err := query.Execute()
	if err != nil {
		return err
	}
	return expectRows(data, table, id)
}

func (r *SupabaseRepository) delete(table, id string) error {
	query := r.client.From(table).Delete("representation", "").Eq("id", id)
	if r.userID != "" {
		query = query.Eq("user_id", r.userID)
	}
	data, _, err := query.Execute()
	if err != nil {
		return err
	}
	return expectRows(data, table, id)
}

func expectRows(data []byte, table, id string) error {
	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("%s %s: %w", table, id, ErrNotFound)
	}
	return nil
}

// Accounts

func (r *SupabaseRepository) CreateAccount(ctx context.Context, account *model.Account) error {
	row := toContaRow(*account)
	row.UserID = r.userID
	var created []contaRow
	if err := r.insert(tableAccounts, row, &created); err != nil {
		r.log.Error().Err(err).Str("name", account.Name).Msg("failed to create account")
		return fmt.Errorf("failed to create account: %w", err)
	}
	if len(created) > 0 {
		*account = created[0].model()
	}
	r.log.Info().Str("account_id", account.ID).Msg("account created")
	return nil
}

func (r *SupabaseRepository) GetAccount(ctx context.Context, id string) (model.Account, error) {
	query := r.client.From(tableAccounts).Select("*", "", false).Eq("id", id)
	if r.userID != "" {
		query = query.Eq("user_id", r.userID)
	}
	data, _, err := query.Execute()
	if err != nil {
		return model.Account{}, fmt.Errorf("failed to get account: %w", err)
	}
	var rows []contaRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return model.Account{}, fmt.Errorf("failed to parse account: %w", err)
	}
	if len(rows) == 0 {
		return model.Account{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return rows[0].model(), nil
}

func (r *SupabaseRepository) ListAccounts(ctx context.Context) ([]model.Account, error) {
	var rows []contaRow
	if err := r.selectAll(tableAccounts, &rows); err != nil {
		return nil, fmt.Errorf("failed to get accounts: %w", err)
	}
	accounts := make([]model.Account, 0, len(rows))
	for _, row := range rows {
		accounts = append(accounts, row.model())
	}
	sort.SliceStable(accounts, func(i, j int) bool { return accounts[i].CreatedAt.Before(accounts[j].CreatedAt) })
	return accounts, nil
}

func (r *SupabaseRepository) UpdateAccount(ctx context.Context, id string, update model.AccountUpdate) error {
	payload := map[string]any{}
	if update.Name != nil {
		payload["nome"] = *update.Name
	}
	if update.Type != nil {
		payload["tipo"] = string(*update.Type)
	}
	if update.CurrentBalance != nil {
		payload["saldo_atual"] = *update.CurrentBalance
	}
	if update.IncludeInTotal != nil {
		payload["incluir_no_total"] = *update.IncludeInTotal
	}
	if len(payload) > 0 {
		payload["updated_at"] = time.Now().UTC()
	}
	if err := r.update(tableAccounts, id, payload); err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	return nil
}

func (r *SupabaseRepository) DeleteAccount(ctx context.Context, id string) error {
	if err := r.delete(tableAccounts, id); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	return nil
}

// Categories

func (r *SupabaseRepository) CreateCategory(ctx context.Context, category *model.Category) error {
	row := toCategoriaRow(*category)
	row.UserID = r.userID
	var created []categoriaRow
	if err := r.insert(tableCategories, row, &created); err != nil {
		r.log.Error().Err(err).Str("name", category.Name).Msg("failed to create category")
		return fmt.Errorf("failed to create category: %w", err)
	}
	if len(created) > 0 {
		*category = created[0].model()
	}
	r.log.Info().Str("category_id", category.ID).Msg("category created")
	return nil
}

func (r *SupabaseRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	var rows []categoriaRow
	if err := r.selectAll(tableCategories, &rows); err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}
	categories := make([]model.Category, 0, len(rows))
	for _, row := range rows {
		categories = append(categories, row.model())
	}
	sort.SliceStable(categories, func(i, j int) bool { return categories[i].CreatedAt.Before(categories[j].CreatedAt) })
	return categories, nil
}

func (r *SupabaseRepository) UpdateCategory(ctx context.Context, id string, update model.CategoryUpdate) error {
	payload := map[string]any{}
	if update.Name != nil {
		payload["nome"] = *update.Name
	}
	if update.Icon != nil {
		payload["icone"] = *update.Icon
	}
	if update.Color != nil {
		payload["cor"] = *update.Color
	}
	if update.Type != nil {
		payload["tipo"] = string(*update.Type)
	}
	if update.LogicTag != nil {
		payload["tag_logica"] = optString(string(*update.LogicTag))
	}
	if update.MonthlyBudget != nil {
		payload["orcamento_mensal"] = *update.MonthlyBudget
	}
	if err := r.update(tableCategories, id, payload); err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	return nil
}

func (r *SupabaseRepository) DeleteCategory(ctx context.Context, id string) error {
	if err := r.delete(tableCategories, id); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

// Credit cards

func (r *SupabaseRepository) CreateCard(ctx context.Context, card *model.CreditCard) error {
	row := toCartaoRow(*card)
	row.UserID = r.userID
	var created []cartaoRow
	if err := r.insert(tableCards, row, &created); err != nil {
		r.log.Error().Err(err).Str("name", card.Name).Msg("failed to create card")
		return fmt.Errorf("failed to create card: %w", err)
	}
	if len(created) > 0 {
		*card = created[0].model()
	}
	r.log.Info().Str("card_id", card.ID).Msg("card created")
	return nil
}

func (r *SupabaseRepository) ListCards(ctx context.Context) ([]model.CreditCard, error) {
	var rows []cartaoRow
	if err := r.selectAll(tableCards, &rows); err != nil {
		return nil, fmt.Errorf("failed to get cards: %w", err)
	}
	cards := make([]model.CreditCard, 0, len(rows))
	for _, row := range rows {
		cards = append(cards, row.model())
	}
	sort.SliceStable(cards, func(i, j int) bool { return cards[i].CreatedAt.Before(cards[j].CreatedAt) })
	return cards, nil
}

func (r *SupabaseRepository) UpdateCard(ctx context.Context, id string, update model.CardUpdate) error {
	payload := map[string]any{}
	if update.Name != nil {
		payload["nome"] = *update.Name
	}
	if update.ClosingDay != nil {
		payload["dia_fechamento"] = *update.ClosingDay
	}
	if update.DueDay != nil {
		payload["dia_vencimento"] = *update.DueDay
	}
	if update.TotalLimit != nil {
		payload["limite_total"] = *update.TotalLimit
	}
	if err := r.update(tableCards, id, payload); err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	return nil
}

func (r *SupabaseRepository) DeleteCard(ctx context.Context, id string) error {
	if err := r.delete(tableCards, id); err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	return nil
}

// Transactions

func (r *SupabaseRepository) CreateTransaction(ctx context.Context, transaction *model.Transaction) error {
	row := toTransacaoRow(*transaction)
	row.UserID = r.userID
	var created []transacaoRow
	if err := r.insert(tableTransactions, row, &created); err != nil {
		r.log.Error().Err(err).Str("description", transaction.Description).Msg("failed to create transaction")
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	if len(created) > 0 {
		*transaction = created[0].model()
	}
	r.log.Info().Str("transaction_id", transaction.ID).Msg("transaction created")
	return nil
}

func (r *SupabaseRepository) GetTransaction(ctx context.Context, id string) (model.Transaction, error) {
	query := r.client.From(tableTransactions).Select("*", "", false).Eq("id", id)
	if r.userID != "" {
		query = query.Eq("user_id", r.userID)
	}
	data, _, err := query.Execute()
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to get transaction: %w", err)
	}
	var rows []transacaoRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return model.Transaction{}, fmt.Errorf("failed to parse transaction: %w", err)
	}
	if len(rows) == 0 {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return rows[0].model(), nil
}

// ListTransactions returns matching transactions by ascending date.
func (r *SupabaseRepository) ListTransactions(ctx context.Context, filter model.TransactionFilter) ([]model.Transaction, error) {
	query := r.client.From(tableTransactions).Select("*", "", false)
	if r.userID != "" {
		query = query.Eq("user_id", r.userID)
	}
	if filter.StartDate != nil {
		query = query.Gte("data", filter.StartDate.String())
	}
	if filter.EndDate != nil {
		query = query.Lte("data", filter.EndDate.String())
	}
	if filter.CardID != "" {
		query = query.Eq("cartao_id", filter.CardID)
	}

	data, count, err := query.Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	var rows []transacaoRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse transactions: %w", err)
	}
	r.log.Debug().Int64("count", count).Int("rows", len(rows)).Msg("transactions loaded")

	transactions := make([]model.Transaction, 0, len(rows))
	for _, row := range rows {
		transactions = append(transactions, row.model())
	}
	sort.SliceStable(transactions, func(i, j int) bool {
		return transactions[i].Date.Before(transactions[j].Date.Time)
	})
	if filter.Limit > 0 && len(transactions) > filter.Limit {
		transactions = transactions[:filter.Limit]
	}
	return transactions, nil
}

func (r *SupabaseRepository) UpdateTransaction(ctx context.Context, id string, update model.TransactionUpdate) error {
	payload := map[string]any{}
	if update.Amount != nil {
		payload["valor"] = *update.Amount
	}
	if update.Description != nil {
		payload["descricao"] = *update.Description
	}
	if update.Date != nil {
		payload["data"] = *update.Date
	}
	if update.Status != nil {
		payload["status"] = string(*update.Status)
	}
	if update.CategoryID != nil {
		payload["categoria_id"] = optString(*update.CategoryID)
	}
	if update.IsRecurring != nil {
		payload["recorrente"] = *update.IsRecurring
	}
	if err := r.update(tableTransactions, id, payload); err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	return nil
}

func (r *SupabaseRepository) DeleteTransaction(ctx context.Context, id string) error {
	if err := r.delete(tableTransactions, id); err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	return nil
}
