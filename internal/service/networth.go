package service

import (
	"sort"
	"time"

	"github.com/ivanoskov/fincontrol/internal/model"
	"github.com/shopspring/decimal"
)

// NetWorthPoint is the cumulative position as of the end of a month.
type NetWorthPoint struct {
	Key      string          `json:"key"`
	Year     int             `json:"year"`
	Month    time.Month      `json:"month"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	NetWorth decimal.Decimal `json:"netWorth"`
}

// NetWorthSeries folds paid, non-transfer transactions month by month in
// ascending order, accumulating income and expenses. Uncategorized rows are ignored.
func NetWorthSeries(transactions []model.Transaction, categories []model.Category) []NetWorthPoint {
	type bucket struct {
		key             model.InvoiceKey
		income, expense decimal.Decimal
	}

	idx := model.IndexCategories(categories)
	buckets := make(map[model.InvoiceKey]*bucket)
	for _, t := range transactions {
		if !t.IsPaid() || t.IsTransfer {
			continue
		}
		key := model.KeyOf(t.Date)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{key: key, income: decimal.Zero, expense: decimal.Zero}
			buckets[key] = b
		}
		switch idx.TypeOf(t) {
		case model.CategoryIncome:
			b.income = b.income.Add(t.Amount)
		case model.CategoryExpense:
			b.expense = b.expense.Add(t.Amount)
		}
	}

	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].key.Before(ordered[j].key)
	})

	series := make([]NetWorthPoint, 0, len(ordered))
	runningIncome, runningExpense := decimal.Zero, decimal.Zero
	for _, b := range ordered {
		runningIncome = runningIncome.Add(b.income)
		runningExpense = runningExpense.Add(b.expense)
		series = append(series, NetWorthPoint{
			Key:      b.key.String(),
			Year:     b.key.Year,
			Month:    b.key.Month,
			Income:   runningIncome,
			Expenses: runningExpense,
			NetWorth: runningIncome.Sub(runningExpense),
		})
	}
	return series
}
