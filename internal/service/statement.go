package service

import (
	"sort"
	"strings"

	"github.com/ivanoskov/fincontrol/internal/model"
)

type StatementKind string

const (
	KindAll      StatementKind = "all"
	KindIncome   StatementKind = "income"
	KindExpense  StatementKind = "expense"
	KindTransfer StatementKind = "transfer"
)

// StatementFilter selects statement lines. Zero values match everything.
type StatementFilter struct {
	Search     string
	Kind       StatementKind
	SourceID   string // account or card id
	CategoryID string
}

// StatementGroup holds the lines of one "YYYY-MM" month.
type StatementGroup struct {
	Key          string              `json:"key"`
	Transactions []model.Transaction `json:"transactions"`
}

// FilterStatement returns the matching transactions, newest first.
func FilterStatement(transactions []model.Transaction, categories []model.Category, f StatementFilter) []model.Transaction {
	idx := model.IndexCategories(categories)
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]model.Transaction, 0)
	for _, t := range transactions {
		if search != "" && !strings.Contains(strings.ToLower(t.Description), search) {
			continue
		}
		switch f.Kind {
		case KindTransfer:
			if !t.IsTransfer {
				continue
			}
		case KindIncome:
			if idx.TypeOf(t) != model.CategoryIncome {
				continue
			}
		case KindExpense:
			if idx.TypeOf(t) != model.CategoryExpense {
				continue
			}
		}
		if f.SourceID != "" && t.AccountID != f.SourceID && t.CardID != f.SourceID {
			continue
		}
		if f.CategoryID != "" && t.CategoryID != f.CategoryID {
			continue
		}
		out = append(out, t)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date.Time)
	})
	return out
}

// GroupByMonth buckets already-sorted transactions by month, keeping their order.
func GroupByMonth(transactions []model.Transaction) []StatementGroup {
	groups := make([]StatementGroup, 0)
	pos := make(map[string]int)
	for _, t := range transactions {
		key := t.Date.MonthKey()
		i, ok := pos[key]
		if !ok {
			i = len(groups)
			pos[key] = i
			groups = append(groups, StatementGroup{Key: key})
		}
		groups[i].Transactions = append(groups[i].Transactions, t)
	}
	return groups
}
