package model

// Snapshot is the fully materialized state every computation reads from.
// Mutations never touch a snapshot; callers reload after a write.
type Snapshot struct {
	Accounts     []Account
	Categories   []Category
	Cards        []CreditCard
	Transactions []Transaction
}

func (s Snapshot) Account(id string) (Account, bool) {
	for _, a := range s.Accounts {
		if a.ID == id {
			return a, true
		}
	}
	return Account{}, false
}

func (s Snapshot) Card(id string) (CreditCard, bool) {
	for _, c := range s.Cards {
		if c.ID == id {
			return c, true
		}
	}
	return CreditCard{}, false
}

func (s Snapshot) Category(id string) (Category, bool) {
	for _, c := range s.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// FirstExpenseCategory returns the first Expense-typed category, if any.
func (s Snapshot) FirstExpenseCategory() (Category, bool) {
	for _, c := range s.Categories {
		if c.Type == CategoryExpense {
			return c, true
		}
	}
	return Category{}, false
}

// CategoryIndex maps category ids to categories for O(1) lookups.
type CategoryIndex map[string]Category

func IndexCategories(categories []Category) CategoryIndex {
	idx := make(CategoryIndex, len(categories))
	for _, c := range categories {
		idx[c.ID] = c
	}
	return idx
}

// TypeOf returns the category type of t, or "" when t is uncategorized or its
// category is not loaded.
func (idx CategoryIndex) TypeOf(t Transaction) CategoryType {
	if t.CategoryID == "" {
		return ""
	}
	c, ok := idx[t.CategoryID]
	if !ok {
		return ""
	}
	return c.Type
}
