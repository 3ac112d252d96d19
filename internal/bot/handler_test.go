package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/ivanoskov/fincontrol/internal/logger"
	"github.com/ivanoskov/fincontrol/internal/model"
	"github.com/ivanoskov/fincontrol/internal/repository"
	"github.com/ivanoskov/fincontrol/internal/service"
	"github.com/shopspring/decimal"
)

const (
	ownerID = int64(100)
	chatID  = int64(500)
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	updates  chan tgbotapi.Update
	stopped  bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

// texts returns the text of every plain message sent so far.
func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeAPI) last() string {
	texts := f.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func (f *fakeAPI) photos() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.sent {
		if _, ok := c.(tgbotapi.PhotoConfig); ok {
			n++
		}
	}
	return n
}

type botFixture struct {
	bot      *Bot
	api      *fakeAPI
	tracker  *service.Tracker
	repo     *repository.MemoryRepository
	checking model.Account
	savings  model.Account
	card     model.CreditCard
	food     model.Category
	salary   model.Category
}

func newBotFixture(t *testing.T) botFixture {
	t.Helper()
	ctx := context.Background()
	repo := repository.NewMemoryRepository()
	clock := func() time.Time { return time.Date(2024, time.March, 25, 12, 0, 0, 0, time.UTC) }
	tracker := service.NewTracker(repo, logger.Nop(), service.WithClock(clock))

	f := botFixture{api: &fakeAPI{updates: make(chan tgbotapi.Update, 4)}, tracker: tracker, repo: repo}
	f.checking = model.Account{Name: "Checking", Type: model.AccountChecking, CurrentBalance: decimal.NewFromInt(1000), IncludeInTotal: true}
	f.savings = model.Account{Name: "Savings", Type: model.AccountInvestment, CurrentBalance: decimal.Zero, IncludeInTotal: true}
	for _, a := range []*model.Account{&f.checking, &f.savings} {
		if err := tracker.CreateAccount(ctx, a); err != nil {
			t.Fatalf("CreateAccount: %v", err)
		}
	}
	f.food = model.Category{Name: "Food", Type: model.CategoryExpense, LogicTag: model.TagEssential}
	f.salary = model.Category{Name: "Salary", Type: model.CategoryIncome}
	for _, c := range []*model.Category{&f.food, &f.salary} {
		if err := tracker.CreateCategory(ctx, c); err != nil {
			t.Fatalf("CreateCategory: %v", err)
		}
	}
	f.card = model.CreditCard{Name: "Visa", ClosingDay: 10, DueDay: 20, TotalLimit: decimal.NewFromInt(1000)}
	if err := tracker.CreateCard(ctx, &f.card); err != nil {
		t.Fatalf("CreateCard: %v", err)
	}

	f.bot = newBot(f.api, tracker, ownerID, logger.Nop())
	return f
}

func (f botFixture) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	a, err := f.repo.GetAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("GetAccount: %v", err)
	}
	return a.CurrentBalance
}

func commandUpdate(from int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: from},
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		name := strings.Fields(text)[0]
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}}
	}
	return tgbotapi.Update{Message: msg}
}

func callbackUpdate(from int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: from},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}}
}

func (f botFixture) do(t *testing.T, update tgbotapi.Update) {
	t.Helper()
	if err := f.bot.handleUpdate(context.Background(), update); err != nil {
		t.Fatalf("handleUpdate: %v", err)
	}
}

func TestAddExpenseFlow(t *testing.T) {
	f := newBotFixture(t)

	f.do(t, commandUpdate(ownerID, "/add 150 Checking Lunch"))
	if !strings.Contains(f.api.last(), "Choose a category") {
		t.Fatalf("expected the category prompt, got %q", f.api.last())
	}
	sent := f.api.sent[len(f.api.sent)-1].(tgbotapi.MessageConfig)
	keyboard, ok := sent.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		t.Fatalf("prompt has no inline keyboard: %T", sent.ReplyMarkup)
	}
	// Food plus the cancel row; Salary is an income category
	if len(keyboard.InlineKeyboard) != 2 || keyboard.InlineKeyboard[0][0].Text != "Food" {
		t.Errorf("keyboard = %+v", keyboard.InlineKeyboard)
	}

	f.do(t, callbackUpdate(ownerID, callbackCategory+f.food.ID))
	if got := f.api.last(); got != "✅ Lunch: 150.00 (Food)" {
		t.Errorf("confirmation = %q", got)
	}
	if len(f.api.requests) != 1 {
		t.Errorf("callback was answered %d times, want 1", len(f.api.requests))
	}
	if got := f.balance(t, f.checking.ID); !got.Equal(decimal.NewFromInt(850)) {
		t.Errorf("balance = %s, want 850", got)
	}

	// the pending entry is consumed
	f.do(t, callbackUpdate(ownerID, callbackCategory+f.food.ID))
	if !strings.Contains(f.api.last(), "Nothing to categorize") {
		t.Errorf("second callback reply = %q", f.api.last())
	}
}

func TestIncomeDefaultsDescriptionToCategory(t *testing.T) {
	f := newBotFixture(t)

	f.do(t, commandUpdate(ownerID, "/income 200 checking"))
	f.do(t, callbackUpdate(ownerID, callbackCategory+f.salary.ID))
	if got := f.api.last(); got != "✅ Salary: 200.00 (Salary)" {
		t.Errorf("confirmation = %q", got)
	}
	if got := f.balance(t, f.checking.ID); !got.Equal(decimal.NewFromInt(1200)) {
		t.Errorf("balance = %s, want 1200", got)
	}
}

func TestCancelDropsPendingEntry(t *testing.T) {
	f := newBotFixture(t)

	f.do(t, commandUpdate(ownerID, "/add 150 Checking Lunch"))
	f.do(t, callbackUpdate(ownerID, callbackCancel))
	if f.api.last() != "Cancelled." {
		t.Errorf("cancel reply = %q", f.api.last())
	}
	if _, ok := f.bot.state(ownerID); ok {
		t.Error("pending entry survived cancel")
	}
	if got := f.balance(t, f.checking.ID); !got.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("balance = %s, want 1000", got)
	}
}

func TestInstallmentsFlow(t *testing.T) {
	f := newBotFixture(t)

	f.do(t, commandUpdate(ownerID, "/installments 3 100 Visa TV"))
	f.do(t, callbackUpdate(ownerID, callbackCategory+f.food.ID))
	if !strings.Contains(f.api.last(), "3 installments of 100.00") {
		t.Errorf("confirmation = %q", f.api.last())
	}

	snap, err := f.tracker.LoadSnapshot(context.Background())
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(snap.Transactions) != 3 {
		t.Errorf("got %d transactions, want 3", len(snap.Transactions))
	}
}

func TestUnknownSourceIsReported(t *testing.T) {
	f := newBotFixture(t)

	f.do(t, commandUpdate(ownerID, "/add 150 Amex Lunch"))
	if !strings.HasPrefix(f.api.last(), "❌ ") || !strings.Contains(f.api.last(), "Amex") {
		t.Errorf("reply = %q", f.api.last())
	}
	if _, ok := f.bot.state(ownerID); ok {
		t.Error("no pending entry should be stored for an unknown source")
	}
}

func TestTransferCommand(t *testing.T) {
	f := newBotFixture(t)

	f.do(t, commandUpdate(ownerID, "/transfer 100 Checking Savings"))
	if got := f.api.last(); got != "✅ Transfer Checking → Savings: 100.00" {
		t.Errorf("reply = %q", got)
	}
	if got := f.balance(t, f.checking.ID); !got.Equal(decimal.NewFromInt(900)) {
		t.Errorf("checking = %s, want 900", got)
	}
	if got := f.balance(t, f.savings.ID); !got.Equal(decimal.NewFromInt(100)) {
		t.Errorf("savings = %s, want 100", got)
	}

	f.do(t, commandUpdate(ownerID, "/transfer 100 Checking Checking"))
	if !strings.HasPrefix(f.api.last(), "❌ ") {
		t.Errorf("transfer to the same account reply = %q", f.api.last())
	}
}

func TestPayCommand(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	purchase := &model.Transaction{
		Amount:     decimal.NewFromInt(120),
		Date:       model.NewDate(2024, time.March, 5),
		Status:     model.StatusPaid,
		CardID:     f.card.ID,
		CategoryID: f.food.ID,
	}
	if err := f.tracker.AddTransaction(ctx, purchase); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	f.do(t, commandUpdate(ownerID, "/pay Visa 03/2024 Checking"))
	if got := f.api.last(); got != "✅ Payment for invoice Visa 03/2024: 120.00 from Checking" {
		t.Errorf("reply = %q", got)
	}
	if got := f.balance(t, f.checking.ID); !got.Equal(decimal.NewFromInt(880)) {
		t.Errorf("balance = %s, want 880", got)
	}

	f.do(t, commandUpdate(ownerID, "/pay Visa 03/2024 Checking"))
	if got := f.api.last(); got != "Nothing outstanding on Visa for 03/2024." {
		t.Errorf("second pay reply = %q", got)
	}
}

func TestStatusCommandAcceptsPrefix(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	pending := &model.Transaction{
		Amount:      decimal.NewFromInt(40),
		Description: "Gym",
		Date:        model.NewDate(2024, time.March, 20),
		Status:      model.StatusPending,
		AccountID:   f.checking.ID,
		CategoryID:  f.food.ID,
	}
	if err := f.tracker.AddTransaction(ctx, pending); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	f.do(t, commandUpdate(ownerID, "/statement gym"))
	if !strings.Contains(f.api.last(), shortID(pending.ID)) {
		t.Errorf("statement does not show the short id: %q", f.api.last())
	}

	f.do(t, commandUpdate(ownerID, "/paid "+shortID(pending.ID)))
	if !strings.HasPrefix(f.api.last(), "✅ ") {
		t.Errorf("reply = %q", f.api.last())
	}
	if got := f.balance(t, f.checking.ID); !got.Equal(decimal.NewFromInt(960)) {
		t.Errorf("balance = %s, want 960", got)
	}

	f.do(t, commandUpdate(ownerID, "/pending zzzz"))
	if !strings.Contains(f.api.last(), "no transaction with id zzzz") {
		t.Errorf("reply = %q", f.api.last())
	}
}

func TestViewCommands(t *testing.T) {
	f := newBotFixture(t)

	tests := []struct {
		text string
		want string
	}{
		{"/balance", "Total: 1000.00"},
		{buttonBalance, "Total: 1000.00"},
		{"/summary 03/2024", "📊 Summary 03/2024"},
		{"/summary 13/2024", "❌ month must look like MM/YYYY"},
		{"/today", "Available today:"},
		{"/invoices", "💳 Visa (limit 1000.00, available 1000.00)"},
		{"/budgets", "No category has a monthly budget."},
		{"/networth", "Not enough history"},
		{"/categories", "• Food (Essencial)"},
		{"/help", "/pay <card> <MM/YYYY> <account> [amount]"},
		{"/frobnicate", "Unknown command"},
		{"hello", "I did not understand that"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			f.do(t, commandUpdate(ownerID, tt.text))
			if !strings.Contains(f.api.last(), tt.want) {
				t.Errorf("reply to %q = %q, want it to contain %q", tt.text, f.api.last(), tt.want)
			}
		})
	}
}

func TestSummarySendsSplitChart(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	expense := &model.Transaction{
		Amount:     decimal.NewFromInt(80),
		Date:       model.NewDate(2024, time.March, 3),
		Status:     model.StatusPaid,
		AccountID:  f.checking.ID,
		CategoryID: f.food.ID,
	}
	if err := f.tracker.AddTransaction(ctx, expense); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	f.do(t, commandUpdate(ownerID, "/summary"))
	if f.api.photos() != 1 {
		t.Errorf("sent %d photos, want 1", f.api.photos())
	}
}

func TestStartSeedsCategories(t *testing.T) {
	api := &fakeAPI{}
	tracker := service.NewTracker(repository.NewMemoryRepository(), logger.Nop())
	b := newBot(api, tracker, ownerID, logger.Nop())

	if err := b.handleUpdate(context.Background(), commandUpdate(ownerID, "/start")); err != nil {
		t.Fatalf("handleUpdate: %v", err)
	}
	if !strings.Contains(api.last(), "default categories") {
		t.Errorf("reply = %q", api.last())
	}
	sent := api.sent[len(api.sent)-1].(tgbotapi.MessageConfig)
	if _, ok := sent.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup); !ok {
		t.Errorf("start reply has no main keyboard: %T", sent.ReplyMarkup)
	}

	// a second /start finds the categories and creates nothing
	if err := b.handleUpdate(context.Background(), commandUpdate(ownerID, "/start")); err != nil {
		t.Fatalf("handleUpdate: %v", err)
	}
	if strings.Contains(api.last(), "default categories") {
		t.Errorf("second /start seeded again: %q", api.last())
	}
}

func TestOwnerGuard(t *testing.T) {
	f := newBotFixture(t)

	f.do(t, commandUpdate(999, "/add 150 Checking Lunch"))
	if got := f.api.last(); got != "❌ This bot is private." {
		t.Errorf("reply = %q", got)
	}
	if _, ok := f.bot.state(999); ok {
		t.Error("stranger got a pending entry")
	}

	sentBefore := len(f.api.sent)
	f.do(t, callbackUpdate(999, callbackCategory+f.food.ID))
	if len(f.api.sent) != sentBefore || len(f.api.requests) != 0 {
		t.Error("callbacks from strangers should be ignored silently")
	}
}

func TestOpenBotAllowsEveryone(t *testing.T) {
	f := newBotFixture(t)
	f.bot.ownerID = 0

	f.do(t, commandUpdate(999, "/balance"))
	if !strings.Contains(f.api.last(), "Total: 1000.00") {
		t.Errorf("reply = %q", f.api.last())
	}
}

func TestHandleWebhook(t *testing.T) {
	f := newBotFixture(t)
	ctx := context.Background()

	if err := f.bot.HandleWebhook(ctx, []byte("not json")); err == nil {
		t.Error("expected an error for a malformed update")
	}

	body := fmt.Sprintf(`{"update_id":1,"message":{"message_id":1,"date":0,"from":{"id":%d,"is_bot":false,"first_name":"A"},"chat":{"id":%d,"type":"private"},"text":"/balance","entities":[{"type":"bot_command","offset":0,"length":8}]}}`, ownerID, chatID)
	if err := f.bot.HandleWebhook(ctx, []byte(body)); err != nil {
		t.Fatalf("HandleWebhook: %v", err)
	}
	if !strings.Contains(f.api.last(), "Total: 1000.00") {
		t.Errorf("reply = %q", f.api.last())
	}
}

func TestStartProcessesUpdatesUntilChannelCloses(t *testing.T) {
	f := newBotFixture(t)

	f.api.updates <- commandUpdate(ownerID, "/help")
	f.api.updates <- commandUpdate(ownerID, "/balance")
	close(f.api.updates)

	if err := f.bot.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if n := len(f.api.texts()); n != 2 {
		t.Errorf("sent %d messages, want 2", n)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	f := newBotFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := f.bot.Start(ctx); err != context.Canceled {
		t.Errorf("Start = %v, want context.Canceled", err)
	}
	if !f.api.stopped {
		t.Error("updates were not stopped")
	}
}
