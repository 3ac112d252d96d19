package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/ivanoskov/fincontrol/internal/model"
)

// Reply keyboard buttons. Each one maps to a command.
const (
	buttonBalance   = "💰 Balance"
	buttonSummary   = "📊 Summary"
	buttonInvoices  = "💳 Invoices"
	buttonStatement = "📋 Statement"
	buttonNetWorth  = "📈 Net worth"
	buttonBudgets   = "🎯 Budgets"
)

var buttonCommands = map[string]string{
	buttonBalance:   "balance",
	buttonSummary:   "summary",
	buttonInvoices:  "invoices",
	buttonStatement: "statement",
	buttonNetWorth:  "networth",
	buttonBudgets:   "budgets",
}

const (
	callbackCategory = "category_"
	callbackCancel   = "cancel"
)

func (b *Bot) getMainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonBalance),
			tgbotapi.NewKeyboardButton(buttonSummary),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonInvoices),
			tgbotapi.NewKeyboardButton(buttonStatement),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(buttonNetWorth),
			tgbotapi.NewKeyboardButton(buttonBudgets),
		),
	)
}

// getCategoriesKeyboard lists the categories of one type, two per row.
func (b *Bot) getCategoriesKeyboard(categories []model.Category, kind model.CategoryType) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton

	for _, category := range categories {
		if category.Type != kind {
			continue
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(category.Name, callbackCategory+category.ID))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("✖️ Cancel", callbackCancel),
	))

	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
