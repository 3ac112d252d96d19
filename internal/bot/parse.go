package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ivanoskov/fincontrol/internal/model"
	"github.com/shopspring/decimal"
)

var (
	errUsage         = errors.New("wrong number of arguments")
	errBadAmount     = errors.New("amount must be a positive number, e.g. 1000.50")
	errBadMonth      = errors.New("month must look like MM/YYYY")
	errUnknownSource = errors.New("no account or card with that name")
)

// parseAmount accepts "1000.50" and "1000,50".
func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
	if err != nil || !d.IsPositive() {
		return decimal.Zero, errBadAmount
	}
	return d.Round(2), nil
}

// parseMonth accepts "MM/YYYY", "YYYY-MM" or nothing (the current month).
func parseMonth(s string, today model.Date) (model.InvoiceKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return model.KeyOf(today), nil
	}
	var month, year int
	switch {
	case strings.Contains(s, "/"):
		parts := strings.SplitN(s, "/", 2)
		m, err1 := strconv.Atoi(parts[0])
		y, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return model.InvoiceKey{}, errBadMonth
		}
		month, year = m, y
	case strings.Contains(s, "-"):
		parts := strings.SplitN(s, "-", 2)
		y, err1 := strconv.Atoi(parts[0])
		m, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil {
			return model.InvoiceKey{}, errBadMonth
		}
		month, year = m, y
	default:
		return model.InvoiceKey{}, errBadMonth
	}
	if month < 1 || month > 12 || year < 1970 {
		return model.InvoiceKey{}, errBadMonth
	}
	return model.InvoiceKey{Year: year, Month: time.Month(month)}, nil
}

// nameMatches compares a user-typed name with a stored one. Underscores stand
// in for spaces so multi-word names fit in a single argument.
func nameMatches(typed, stored string) bool {
	return strings.EqualFold(strings.ReplaceAll(typed, "_", " "), stored)
}

// source is where a transaction is posted: exactly one of the ids is set.
type source struct {
	AccountID string
	CardID    string
	Name      string
}

func findSource(snap model.Snapshot, name string) (source, error) {
	for _, a := range snap.Accounts {
		if a.ID == name || nameMatches(name, a.Name) {
			return source{AccountID: a.ID, Name: a.Name}, nil
		}
	}
	for _, c := range snap.Cards {
		if c.ID == name || nameMatches(name, c.Name) {
			return source{CardID: c.ID, Name: c.Name}, nil
		}
	}
	return source{}, fmt.Errorf("%w: %s", errUnknownSource, name)
}

func findAccount(snap model.Snapshot, name string) (model.Account, bool) {
	for _, a := range snap.Accounts {
		if a.ID == name || nameMatches(name, a.Name) {
			return a, true
		}
	}
	return model.Account{}, false
}

func findCard(snap model.Snapshot, name string) (model.CreditCard, bool) {
	for _, c := range snap.Cards {
		if c.ID == name || nameMatches(name, c.Name) {
			return c, true
		}
	}
	return model.CreditCard{}, false
}

// addArgs is the parsed form of "<amount> <account|card> <description...>".
type addArgs struct {
	Amount      decimal.Decimal
	Source      string
	Description string
}

func parseAddArgs(args string) (addArgs, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return addArgs{}, errUsage
	}
	amount, err := parseAmount(fields[0])
	if err != nil {
		return addArgs{}, err
	}
	return addArgs{
		Amount:      amount,
		Source:      fields[1],
		Description: strings.Join(fields[2:], " "),
	}, nil
}

// installmentArgs is "<count> <amount> <account|card> <description...>".
func parseInstallmentArgs(args string) (int, addArgs, error) {
	fields := strings.Fields(args)
	if len(fields) < 3 {
		return 0, addArgs{}, errUsage
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 2 {
		return 0, addArgs{}, fmt.Errorf("installment count must be at least 2")
	}
	add, err := parseAddArgs(strings.Join(fields[1:], " "))
	if err != nil {
		return 0, addArgs{}, err
	}
	return n, add, nil
}

// transferArgs is "<amount> <from> <to>".
type transferArgs struct {
	Amount decimal.Decimal
	From   string
	To     string
}

func parseTransferArgs(args string) (transferArgs, error) {
	fields := strings.Fields(args)
	if len(fields) != 3 {
		return transferArgs{}, errUsage
	}
	amount, err := parseAmount(fields[0])
	if err != nil {
		return transferArgs{}, err
	}
	return transferArgs{Amount: amount, From: fields[1], To: fields[2]}, nil
}

// payArgs is "<card> <MM/YYYY> <account> [amount]". A missing amount pays the
// whole outstanding total.
type payArgs struct {
	Card    string
	Key     model.InvoiceKey
	Account string
	Amount  decimal.Decimal
}

func parsePayArgs(args string, today model.Date) (payArgs, error) {
	fields := strings.Fields(args)
	if len(fields) != 3 && len(fields) != 4 {
		return payArgs{}, errUsage
	}
	key, err := parseMonth(fields[1], today)
	if err != nil {
		return payArgs{}, err
	}
	out := payArgs{Card: fields[0], Key: key, Account: fields[2], Amount: decimal.Zero}
	if len(fields) == 4 {
		amount, err := parseAmount(fields[3])
		if err != nil {
			return payArgs{}, err
		}
		out.Amount = amount
	}
	return out, nil
}

// shortIDLen is how much of a transaction id /statement prints.
const shortIDLen = 8

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

// matchTransactionID resolves a full id or a unique id prefix.
func matchTransactionID(transactions []model.Transaction, prefix string) (string, error) {
	var match string
	for _, t := range transactions {
		if t.ID == prefix {
			return t.ID, nil
		}
		if strings.HasPrefix(t.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("id %s is ambiguous, type more characters", prefix)
			}
			match = t.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no transaction with id %s", prefix)
	}
	return match, nil
}
