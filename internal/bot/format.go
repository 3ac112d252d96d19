package bot

import (
	"fmt"
	"strings"

	"github.com/ivanoskov/fincontrol/internal/model"
	"github.com/ivanoskov/fincontrol/internal/service"
	"github.com/shopspring/decimal"
)

// statementLimit caps the lines sent in one statement message.
const statementLimit = 30

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatPercent(d decimal.Decimal) string {
	return d.StringFixed(1) + "%"
}

func formatBalance(snap model.Snapshot) string {
	if len(snap.Accounts) == 0 {
		return "No accounts yet."
	}
	var sb strings.Builder
	sb.WriteString("💰 Accounts\n\n")
	for _, a := range snap.Accounts {
		marker := ""
		if !a.IncludeInTotal {
			marker = " (not in total)"
		}
		fmt.Fprintf(&sb, "• %s: %s%s\n", a.Name, formatMoney(a.CurrentBalance), marker)
	}
	fmt.Fprintf(&sb, "\nTotal: %s", formatMoney(service.TotalBalance(snap.Accounts)))
	return sb.String()
}

func formatSummary(s service.MonthlySummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Summary %02d/%d\n\n", int(s.Month), s.Year)
	fmt.Fprintf(&sb, "Total balance: %s\n", formatMoney(s.TotalBalance))
	fmt.Fprintf(&sb, "Income: %s\n", formatMoney(s.Income))
	fmt.Fprintf(&sb, "Expenses: %s\n", formatMoney(s.Expenses))
	fmt.Fprintf(&sb, "Fixed expenses: %s\n\n", formatMoney(s.Fixed))

	fmt.Fprintf(&sb, "Investment goal (%s): %s\n", formatPercent(s.InvestmentGoal.Mul(decimal.NewFromInt(100))), formatMoney(s.InvestmentGoalValue))
	fmt.Fprintf(&sb, "Available buffer: %s\n", formatMoney(s.AvailableBuffer))
	fmt.Fprintf(&sb, "Available today: %s\n\n", formatMoney(s.AvailableToday))

	fmt.Fprintf(&sb, "Essential: %s\n", formatMoney(s.Split.Essential))
	fmt.Fprintf(&sb, "Superfluous: %s\n", formatMoney(s.Split.Superfluous))
	fmt.Fprintf(&sb, "Investment: %s\n", formatMoney(s.Split.Investment))
	fmt.Fprintf(&sb, "Invested: %s of income\n", formatPercent(s.InvestmentPercentage))
	fmt.Fprintf(&sb, "Superfluous share: %s", formatPercent(s.SuperfluousPercentage))
	if s.HighSuperfluous {
		sb.WriteString("\n⚠️ Superfluous spending is high this month")
	}
	return sb.String()
}

func formatBudgets(usage []service.BudgetUsage) string {
	if len(usage) == 0 {
		return "No category has a monthly budget."
	}
	var sb strings.Builder
	sb.WriteString("🎯 Budgets\n\n")
	for _, u := range usage {
		icon := "✅"
		if u.Over {
			icon = "🔴"
		}
		fmt.Fprintf(&sb, "%s %s: %s / %s (left %s)\n", icon, u.Category.Name,
			formatMoney(u.Spent), formatMoney(u.Budget), formatMoney(u.Remaining))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatInvoices(cards []service.CardInvoices) string {
	if len(cards) == 0 {
		return "No credit cards yet."
	}
	var sb strings.Builder
	for i, ci := range cards {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "💳 %s (limit %s, available %s)\n", ci.Card.Name,
			formatMoney(ci.Card.TotalLimit), formatMoney(ci.AvailableLimit))
		for _, st := range ci.Invoices {
			fmt.Fprintf(&sb, "%s %02d/%d: total %s, paid %s, due %s on %s\n",
				st.Label(), int(st.Invoice.Key.Month), st.Invoice.Key.Year,
				formatMoney(st.Invoice.Total), formatMoney(st.Paid),
				formatMoney(st.Outstanding), st.Invoice.DueDate)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatTransaction(t model.Transaction, snap model.Snapshot) string {
	sign := "-"
	if c, ok := snap.Category(t.CategoryID); ok && c.Type == model.CategoryIncome {
		sign = "+"
	}
	if t.IsTransfer {
		sign = "⇄"
	}

	where := ""
	if a, ok := snap.Account(t.AccountID); ok {
		where = a.Name
	} else if c, ok := snap.Card(t.CardID); ok {
		where = c.Name
	}

	line := fmt.Sprintf("%s %s %s%s %s", shortID(t.ID), t.Date, sign, formatMoney(t.Amount), t.Description)
	if where != "" {
		line += " [" + where + "]"
	}
	if t.TotalInstallments > 1 {
		line += fmt.Sprintf(" %d/%d", t.InstallmentNumber, t.TotalInstallments)
	}
	if !t.IsPaid() {
		line += " ⏳"
	}
	return line
}

func formatStatement(groups []service.StatementGroup, snap model.Snapshot) string {
	if len(groups) == 0 {
		return "No transactions found."
	}
	var sb strings.Builder
	shown := 0
	for _, g := range groups {
		if shown >= statementLimit {
			break
		}
		fmt.Fprintf(&sb, "📅 %s\n", g.Key)
		for _, t := range g.Transactions {
			if shown >= statementLimit {
				break
			}
			sb.WriteString(formatTransaction(t, snap))
			sb.WriteString("\n")
			shown++
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
