package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/ivanoskov/fincontrol/internal/model"
	"github.com/ivanoskov/fincontrol/internal/service"
)

const helpText = "Commands:\n\n" +
	"/balance - account balances\n" +
	"/summary [MM/YYYY] - monthly dashboard\n" +
	"/today - what you can still spend today\n" +
	"/add <amount> <account|card> [description] - expense\n" +
	"/income <amount> <account> [description] - income\n" +
	"/installments <n> <amount> <card> [description] - split purchase\n" +
	"/transfer <amount> <from> <to> - move money between accounts\n" +
	"/invoices - card invoices around this month\n" +
	"/pay <card> <MM/YYYY> <account> [amount] - pay an invoice\n" +
	"/statement [search] - latest transactions\n" +
	"/paid <id> and /pending <id> - change a transaction's status\n" +
	"/budgets - category budgets this month\n" +
	"/networth - net worth chart\n" +
	"/categories - list categories\n\n" +
	"Names with spaces are typed with underscores, e.g. My_Bank."

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	switch {
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.Message == nil {
			return nil
		}
		if !b.authorized(cb.From.ID) {
			b.log.Warn().Int64("user_id", cb.From.ID).Msg("ignoring callback from unknown user")
			return nil
		}
		return b.handleCallback(ctx, cb)
	case update.Message != nil:
		msg := update.Message
		if msg.From == nil {
			return nil
		}
		if !b.authorized(msg.From.ID) {
			b.log.Warn().Int64("user_id", msg.From.ID).Msg("ignoring message from unknown user")
			b.sendErrorMessage(msg.Chat.ID, "This bot is private.")
			return nil
		}
		if msg.IsCommand() {
			return b.handleCommand(ctx, msg, msg.Command(), msg.CommandArguments())
		}
		return b.handleMessage(ctx, msg)
	}
	return nil
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	if cmd, ok := buttonCommands[message.Text]; ok {
		return b.handleCommand(ctx, message, cmd, "")
	}
	return b.sendText(message.Chat.ID, "I did not understand that. Send /help for the list of commands.")
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message, cmd, args string) error {
	b.log.Debug().Str("command", cmd).Int64("chat_id", message.Chat.ID).Msg("handling command")

	var err error
	switch cmd {
	case "start":
		err = b.handleStart(ctx, message)
	case "help":
		err = b.sendText(message.Chat.ID, helpText)
	case "balance":
		err = b.handleBalance(ctx, message)
	case "summary":
		err = b.handleSummary(ctx, message, args)
	case "today":
		err = b.handleToday(ctx, message)
	case "add":
		err = b.handleAdd(ctx, message, args, model.CategoryExpense, 0)
	case "income":
		err = b.handleAdd(ctx, message, args, model.CategoryIncome, 0)
	case "installments":
		err = b.handleInstallments(ctx, message, args)
	case "transfer":
		err = b.handleTransfer(ctx, message, args)
	case "invoices":
		err = b.handleInvoices(ctx, message)
	case "pay":
		err = b.handlePay(ctx, message, args)
	case "statement":
		err = b.handleStatement(ctx, message, args)
	case "paid":
		err = b.handleStatus(ctx, message, args, model.StatusPaid)
	case "pending":
		err = b.handleStatus(ctx, message, args, model.StatusPending)
	case "budgets":
		err = b.handleBudgets(ctx, message)
	case "networth":
		err = b.handleNetWorth(ctx, message)
	case "categories":
		err = b.handleCategories(ctx, message)
	case "cancel":
		b.setState(message.From.ID, nil)
		err = b.sendText(message.Chat.ID, "Cancelled.")
	default:
		err = b.sendText(message.Chat.ID, "Unknown command. Send /help for the list of commands.")
	}
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Something went wrong, please try again.")
		return fmt.Errorf("command /%s: %w", cmd, err)
	}
	return nil
}

func (b *Bot) handleStart(ctx context.Context, message *tgbotapi.Message) error {
	seeded, err := b.tracker.SeedDefaultCategories(ctx)
	if err != nil {
		return err
	}
	text := "Welcome to FinControl! 💰\n\n" +
		"I keep track of your accounts, credit cards and monthly budget.\n\n" + helpText
	if seeded > 0 {
		text += fmt.Sprintf("\n\nCreated %d default categories to get you started.", seeded)
	}
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ReplyMarkup = b.getMainKeyboard()
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) handleBalance(ctx context.Context, message *tgbotapi.Message) error {
	snap, err := b.tracker.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	return b.sendText(message.Chat.ID, formatBalance(snap))
}

func (b *Bot) handleSummary(ctx context.Context, message *tgbotapi.Message, args string) error {
	key, err := parseMonth(args, b.tracker.Today())
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, err.Error())
		return nil
	}
	summary, err := b.tracker.Summary(ctx, key.Year, key.Month)
	if err != nil {
		return err
	}
	if err := b.sendText(message.Chat.ID, formatSummary(summary)); err != nil {
		return err
	}

	png, err := b.charts.LogicTagPie(summary.Split)
	if err != nil {
		b.log.Error().Err(err).Msg("failed to render logic tag chart")
		return nil
	}
	if png == nil {
		return nil
	}
	return b.sendPhoto(message.Chat.ID, "split.png", png, "Spending by logic tag")
}

func (b *Bot) handleToday(ctx context.Context, message *tgbotapi.Message) error {
	today := b.tracker.Today()
	summary, err := b.tracker.Summary(ctx, today.Year(), today.Month())
	if err != nil {
		return err
	}
	text := fmt.Sprintf("📅 %s\nAvailable today: %s\nMonthly buffer: %s",
		today, formatMoney(summary.AvailableToday), formatMoney(summary.AvailableBuffer))
	return b.sendText(message.Chat.ID, text)
}

// handleAdd records the pending transaction and asks for its category.
func (b *Bot) handleAdd(ctx context.Context, message *tgbotapi.Message, args string, kind model.CategoryType, installments int) error {
	parsed, err := parseAddArgs(args)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, usageFor(kind, err))
		return nil
	}
	return b.startPending(ctx, message, parsed, kind, installments)
}

func (b *Bot) handleInstallments(ctx context.Context, message *tgbotapi.Message, args string) error {
	n, parsed, err := parseInstallmentArgs(args)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Usage: /installments <n> <amount> <account|card> [description]\n"+err.Error())
		return nil
	}
	return b.startPending(ctx, message, parsed, model.CategoryExpense, n)
}

func usageFor(kind model.CategoryType, err error) string {
	if kind == model.CategoryIncome {
		return "Usage: /income <amount> <account> [description]\n" + err.Error()
	}
	return "Usage: /add <amount> <account|card> [description]\n" + err.Error()
}

func (b *Bot) startPending(ctx context.Context, message *tgbotapi.Message, parsed addArgs, kind model.CategoryType, installments int) error {
	snap, err := b.tracker.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	src, err := findSource(snap, parsed.Source)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, err.Error())
		return nil
	}

	pending := model.Transaction{
		Amount:      parsed.Amount,
		Description: parsed.Description,
		Date:        b.tracker.Today(),
		Status:      model.StatusPaid,
		AccountID:   src.AccountID,
		CardID:      src.CardID,
	}
	b.setState(message.From.ID, &UserState{Pending: pending, Installments: installments})

	msg := tgbotapi.NewMessage(message.Chat.ID,
		fmt.Sprintf("%s on %s. Choose a category:", formatMoney(parsed.Amount), src.Name))
	msg.ReplyMarkup = b.getCategoriesKeyboard(snap.Categories, kind)
	_, err = b.api.Send(msg)
	return err
}

func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.log.Warn().Err(err).Msg("failed to answer callback")
	}
	chatID := callback.Message.Chat.ID

	if callback.Data == callbackCancel {
		b.setState(callback.From.ID, nil)
		return b.sendText(chatID, "Cancelled.")
	}
	if !strings.HasPrefix(callback.Data, callbackCategory) {
		return nil
	}

	state, ok := b.state(callback.From.ID)
	if !ok {
		return b.sendText(chatID, "Nothing to categorize. Start with /add.")
	}
	b.setState(callback.From.ID, nil)

	snap, err := b.tracker.LoadSnapshot(ctx)
	if err != nil {
		b.sendErrorMessage(chatID, "Could not load categories.")
		return err
	}
	category, ok := snap.Category(strings.TrimPrefix(callback.Data, callbackCategory))
	if !ok {
		b.sendErrorMessage(chatID, "That category no longer exists.")
		return nil
	}

	t := state.Pending
	t.CategoryID = category.ID
	if t.Description == "" {
		t.Description = category.Name
	}

	if state.Installments > 1 {
		chain, err := b.tracker.AddInstallments(ctx, t, state.Installments)
		if err != nil {
			b.sendErrorMessage(chatID, "Could not save the installments.")
			return err
		}
		return b.sendText(chatID, fmt.Sprintf("✅ %s: %d installments of %s, first on %s",
			t.Description, len(chain), formatMoney(t.Amount), chain[0].Date))
	}

	if err := b.tracker.AddTransaction(ctx, &t); err != nil {
		b.sendErrorMessage(chatID, "Could not save the transaction.")
		return err
	}
	return b.sendText(chatID, fmt.Sprintf("✅ %s: %s (%s)", t.Description, formatMoney(t.Amount), category.Name))
}

func (b *Bot) handleTransfer(ctx context.Context, message *tgbotapi.Message, args string) error {
	parsed, err := parseTransferArgs(args)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Usage: /transfer <amount> <from> <to>\n"+err.Error())
		return nil
	}
	snap, err := b.tracker.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	from, ok := findAccount(snap, parsed.From)
	if !ok {
		b.sendErrorMessage(message.Chat.ID, "Unknown account: "+parsed.From)
		return nil
	}
	to, ok := findAccount(snap, parsed.To)
	if !ok {
		b.sendErrorMessage(message.Chat.ID, "Unknown account: "+parsed.To)
		return nil
	}

	t := model.Transaction{
		Amount:              parsed.Amount,
		Description:         fmt.Sprintf("Transfer %s → %s", from.Name, to.Name),
		Date:                b.tracker.Today(),
		Status:              model.StatusPaid,
		AccountID:           from.ID,
		IsTransfer:          true,
		TransferToAccountID: to.ID,
	}
	if err := b.tracker.AddTransaction(ctx, &t); err != nil {
		if errors.Is(err, model.ErrInvalidTransfer) {
			b.sendErrorMessage(message.Chat.ID, err.Error())
			return nil
		}
		return err
	}
	return b.sendText(message.Chat.ID, "✅ "+t.Description+": "+formatMoney(t.Amount))
}

func (b *Bot) handleInvoices(ctx context.Context, message *tgbotapi.Message) error {
	cards, err := b.tracker.Invoices(ctx)
	if err != nil {
		return err
	}
	return b.sendText(message.Chat.ID, formatInvoices(cards))
}

func (b *Bot) handlePay(ctx context.Context, message *tgbotapi.Message, args string) error {
	parsed, err := parsePayArgs(args, b.tracker.Today())
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, "Usage: /pay <card> <MM/YYYY> <account> [amount]\n"+err.Error())
		return nil
	}
	snap, err := b.tracker.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	card, ok := findCard(snap, parsed.Card)
	if !ok {
		b.sendErrorMessage(message.Chat.ID, "Unknown card: "+parsed.Card)
		return nil
	}
	account, ok := findAccount(snap, parsed.Account)
	if !ok {
		b.sendErrorMessage(message.Chat.ID, "Unknown account: "+parsed.Account)
		return nil
	}

	payment, err := b.tracker.PayInvoice(ctx, card.ID, parsed.Key, account.ID, parsed.Amount)
	if err != nil {
		return err
	}
	if payment == nil {
		return b.sendText(message.Chat.ID, fmt.Sprintf("Nothing outstanding on %s for %02d/%d.",
			card.Name, int(parsed.Key.Month), parsed.Key.Year))
	}
	return b.sendText(message.Chat.ID, fmt.Sprintf("✅ %s: %s from %s",
		payment.Description, formatMoney(payment.Amount), account.Name))
}

func (b *Bot) handleStatement(ctx context.Context, message *tgbotapi.Message, args string) error {
	groups, err := b.tracker.Statement(ctx, service.StatementFilter{Search: args, Kind: service.KindAll})
	if err != nil {
		return err
	}
	snap, err := b.tracker.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	return b.sendText(message.Chat.ID, formatStatement(groups, snap))
}

// handleStatus accepts a full transaction id or an unambiguous prefix of one,
// as printed by /statement.
func (b *Bot) handleStatus(ctx context.Context, message *tgbotapi.Message, args string, status model.Status) error {
	prefix := strings.TrimSpace(args)
	if prefix == "" {
		b.sendErrorMessage(message.Chat.ID, "Usage: /paid <id> or /pending <id>")
		return nil
	}
	snap, err := b.tracker.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	id, err := matchTransactionID(snap.Transactions, prefix)
	if err != nil {
		b.sendErrorMessage(message.Chat.ID, err.Error())
		return nil
	}
	t, err := b.tracker.SetTransactionStatus(ctx, id, status)
	if err != nil {
		return err
	}
	return b.sendText(message.Chat.ID, "✅ "+formatTransaction(t, snap))
}

func (b *Bot) handleBudgets(ctx context.Context, message *tgbotapi.Message) error {
	today := b.tracker.Today()
	summary, err := b.tracker.Summary(ctx, today.Year(), today.Month())
	if err != nil {
		return err
	}
	if err := b.sendText(message.Chat.ID, formatBudgets(summary.Budgets)); err != nil {
		return err
	}
	png, err := b.charts.BudgetChart(summary.Budgets)
	if err != nil {
		b.log.Error().Err(err).Msg("failed to render budget chart")
		return nil
	}
	if png == nil {
		return nil
	}
	return b.sendPhoto(message.Chat.ID, "budgets.png", png, "Spent per category")
}

func (b *Bot) handleNetWorth(ctx context.Context, message *tgbotapi.Message) error {
	points, err := b.tracker.NetWorth(ctx)
	if err != nil {
		return err
	}
	png, err := b.charts.NetWorthChart(points)
	if err != nil {
		return err
	}
	if png == nil {
		return b.sendText(message.Chat.ID, "Not enough history for a chart yet, at least two months are needed.")
	}
	caption := ""
	if len(points) > 0 {
		caption = "Net worth: " + formatMoney(points[len(points)-1].NetWorth)
	}
	return b.sendPhoto(message.Chat.ID, "networth.png", png, caption)
}

func (b *Bot) handleCategories(ctx context.Context, message *tgbotapi.Message) error {
	snap, err := b.tracker.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	if len(snap.Categories) == 0 {
		return b.sendText(message.Chat.ID, "No categories yet. Send /start to create the defaults.")
	}
	var sb strings.Builder
	sb.WriteString("📋 Categories\n")
	for _, kind := range []model.CategoryType{model.CategoryIncome, model.CategoryExpense} {
		sb.WriteString("\n")
		if kind == model.CategoryIncome {
			sb.WriteString("Income:\n")
		} else {
			sb.WriteString("Expense:\n")
		}
		for _, c := range snap.Categories {
			if c.Type != kind {
				continue
			}
			line := "• " + c.Name
			if c.LogicTag != model.TagNone {
				line += " (" + string(c.LogicTag) + ")"
			}
			if c.MonthlyBudget != nil {
				line += ", budget " + formatMoney(*c.MonthlyBudget)
			}
			sb.WriteString(line + "\n")
		}
	}
	return b.sendText(message.Chat.ID, strings.TrimRight(sb.String(), "\n"))
}
