package service

import (
	"time"

	"github.com/ivanoskov/fincontrol/internal/model"
	"github.com/shopspring/decimal"
)

// LogicTagSplit is the essential/superfluous/investment breakdown of a month's expenses.
type LogicTagSplit struct {
	Essential   decimal.Decimal `json:"essential"`
	Superfluous decimal.Decimal `json:"superfluous"`
	Investment  decimal.Decimal `json:"investment"`
}

// Total is the sum of the three buckets.
func (s LogicTagSplit) Total() decimal.Decimal {
	return s.Essential.Add(s.Superfluous).Add(s.Investment)
}

// inMonth is the predicate every monthly aggregation starts from: the
// transaction happened in (year, month), is paid and is not a transfer.
func inMonth(t model.Transaction, year int, month time.Month) bool {
	return t.Date.Year() == year &&
		t.Date.Month() == month &&
		t.Status == model.StatusPaid &&
		!t.IsTransfer
}

func monthTransactions(transactions []model.Transaction, year int, month time.Month) []model.Transaction {
	out := make([]model.Transaction, 0, len(transactions))
	for _, t := range transactions {
		if inMonth(t, year, month) {
			out = append(out, t)
		}
	}
	return out
}

func sumByType(transactions []model.Transaction, categories []model.Category, year int, month time.Month, kind model.CategoryType) decimal.Decimal {
	idx := model.IndexCategories(categories)
	total := decimal.Zero
	for _, t := range monthTransactions(transactions, year, month) {
		if idx.TypeOf(t) == kind {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// TotalBalance sums the current balance of accounts flagged to count in the total.
func TotalBalance(accounts []model.Account) decimal.Decimal {
	total := decimal.Zero
	for _, a := range accounts {
		if a.IncludeInTotal {
			total = total.Add(a.CurrentBalance)
		}
	}
	return total
}

// MonthlyIncome sums the month's paid, non-transfer transactions with an Income category.
func MonthlyIncome(transactions []model.Transaction, categories []model.Category, year int, month time.Month) decimal.Decimal {
	return sumByType(transactions, categories, year, month, model.CategoryIncome)
}

// MonthlyExpenses sums the month's paid, non-transfer transactions with an Expense category.
func MonthlyExpenses(transactions []model.Transaction, categories []model.Category, year int, month time.Month) decimal.Decimal {
	return sumByType(transactions, categories, year, month, model.CategoryExpense)
}

// MonthlyFixedExpenses sums the month's recurring transactions. Rows whose
// category is Income-typed are left out so recurring salaries do not count as
// committed costs; uncategorized recurring rows still count.
func MonthlyFixedExpenses(transactions []model.Transaction, categories []model.Category, year int, month time.Month) decimal.Decimal {
	idx := model.IndexCategories(categories)
	total := decimal.Zero
	for _, t := range monthTransactions(transactions, year, month) {
		if !t.IsRecurring || idx.TypeOf(t) == model.CategoryIncome {
			continue
		}
		total = total.Add(t.Amount)
	}
	return total
}

// ExpensesByLogicTag partitions the month's expenses by their category logic tag.
// Expenses whose category has no recognized tag fall in no bucket.
func ExpensesByLogicTag(transactions []model.Transaction, categories []model.Category, year int, month time.Month) LogicTagSplit {
	idx := model.IndexCategories(categories)
	split := LogicTagSplit{
		Essential:   decimal.Zero,
		Superfluous: decimal.Zero,
		Investment:  decimal.Zero,
	}
	for _, t := range monthTransactions(transactions, year, month) {
		c, ok := idx[t.CategoryID]
		if !ok || c.Type != model.CategoryExpense {
			continue
		}
		tag, _ := model.ParseLogicTag(string(c.LogicTag))
		switch tag {
		case model.TagEssential:
			split.Essential = split.Essential.Add(t.Amount)
		case model.TagSuperfluous:
			split.Superfluous = split.Superfluous.Add(t.Amount)
		case model.TagInvestment:
			split.Investment = split.Investment.Add(t.Amount)
		}
	}
	return split
}

// BudgetUsage compares an expense category's monthly budget with what was spent.
type BudgetUsage struct {
	Category  model.Category  `json:"category"`
	Budget    decimal.Decimal `json:"budget"`
	Spent     decimal.Decimal `json:"spent"`
	Remaining decimal.Decimal `json:"remaining"`
	Over      bool            `json:"over"`
}

// CategoryBudgets reports usage for every Expense category that has a budget,
// in category order.
func CategoryBudgets(transactions []model.Transaction, categories []model.Category, year int, month time.Month) []BudgetUsage {
	spent := make(map[string]decimal.Decimal)
	for _, t := range monthTransactions(transactions, year, month) {
		if t.CategoryID != "" {
			spent[t.CategoryID] = spent[t.CategoryID].Add(t.Amount)
		}
	}

	usage := make([]BudgetUsage, 0)
	for _, c := range categories {
		if c.Type != model.CategoryExpense || c.MonthlyBudget == nil {
			continue
		}
		s := spent[c.ID]
		usage = append(usage, BudgetUsage{
			Category:  c,
			Budget:    *c.MonthlyBudget,
			Spent:     s,
			Remaining: c.MonthlyBudget.Sub(s),
			Over:      s.GreaterThan(*c.MonthlyBudget),
		})
	}
	return usage
}
