package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/ivanoskov/fincontrol/internal/charts"
	"github.com/ivanoskov/fincontrol/internal/model"
	"github.com/ivanoskov/fincontrol/internal/service"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Tracker is what the bot needs from the application layer.
type Tracker interface {
	Today() model.Date
	LoadSnapshot(ctx context.Context) (model.Snapshot, error)
	SeedDefaultCategories(ctx context.Context) (int, error)
	AddTransaction(ctx context.Context, t *model.Transaction) error
	AddInstallments(ctx context.Context, base model.Transaction, n int) ([]model.Transaction, error)
	SetTransactionStatus(ctx context.Context, id string, status model.Status) (model.Transaction, error)
	PayInvoice(ctx context.Context, cardID string, key model.InvoiceKey, accountID string, amount decimal.Decimal) (*model.Transaction, error)
	Summary(ctx context.Context, year int, month time.Month) (service.MonthlySummary, error)
	Invoices(ctx context.Context) ([]service.CardInvoices, error)
	NetWorth(ctx context.Context) ([]service.NetWorthPoint, error)
	Statement(ctx context.Context, filter service.StatementFilter) ([]service.StatementGroup, error)
}

// botAPI is the subset of *tgbotapi.BotAPI the bot calls.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// UserState holds a transaction waiting for the user to pick its category.
type UserState struct {
	Pending      model.Transaction
	Installments int
}

type Bot struct {
	api     botAPI
	tracker Tracker
	charts  *charts.ChartGenerator
	ownerID int64
	log     zerolog.Logger

	mu     sync.Mutex
	states map[int64]*UserState
}

// NewBot connects to Telegram. A non-zero ownerID restricts the bot to that user.
func NewBot(token string, tracker Tracker, ownerID int64, log zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api: %w", err)
	}
	log.Info().Str("username", api.Self.UserName).Msg("authorized on telegram")
	return newBot(api, tracker, ownerID, log), nil
}

func newBot(api botAPI, tracker Tracker, ownerID int64, log zerolog.Logger) *Bot {
	return &Bot{
		api:     api,
		tracker: tracker,
		charts:  charts.NewChartGenerator(),
		ownerID: ownerID,
		log:     log.With().Str("component", "bot").Logger(),
		states:  make(map[int64]*UserState),
	}
}

// Start runs the long-polling loop until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info().Msg("listening for updates")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := b.handleUpdate(ctx, update); err != nil {
				// keep serving other updates
				b.log.Error().Err(err).Int("update_id", update.UpdateID).Msg("error handling update")
			}
		}
	}
}

// HandleWebhook processes a single update delivered by a Telegram webhook.
func (b *Bot) HandleWebhook(ctx context.Context, body []byte) error {
	var update tgbotapi.Update
	if err := json.Unmarshal(body, &update); err != nil {
		return fmt.Errorf("failed to decode update: %w", err)
	}
	return b.handleUpdate(ctx, update)
}

func (b *Bot) authorized(userID int64) bool {
	return b.ownerID == 0 || userID == b.ownerID
}

func (b *Bot) state(userID int64) (*UserState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.states[userID]
	return s, ok
}

func (b *Bot) setState(userID int64, s *UserState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if s == nil {
		delete(b.states, userID)
		return
	}
	b.states[userID] = s
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	if err := b.sendText(chatID, "❌ "+text); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send error message")
	}
}

func (b *Bot) sendPhoto(chatID int64, name string, png []byte, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: name, Bytes: png})
	photo.Caption = caption
	if _, err := b.api.Send(photo); err != nil {
		return fmt.Errorf("failed to send photo: %w", err)
	}
	return nil
}
