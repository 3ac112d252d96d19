package service

import (
	"reflect"
	"testing"
	"time"

	"github.com/ivanoskov/fincontrol/internal/model"
	"github.com/shopspring/decimal"
)

func testCategories() []model.Category {
	budget := amount("300")
	return []model.Category{
		{ID: "salary", Name: "Salary", Type: model.CategoryIncome},
		{ID: "food", Name: "Food", Type: model.CategoryExpense, LogicTag: model.TagEssential, MonthlyBudget: &budget},
		{ID: "fun", Name: "Fun", Type: model.CategoryExpense, LogicTag: "SupÃ©rfluo"},
		{ID: "stocks", Name: "Stocks", Type: model.CategoryExpense, LogicTag: model.TagInvestment},
		{ID: "misc", Name: "Misc", Type: model.CategoryExpense},
	}
}

func accountTxn(categoryID string, date model.Date, value string) model.Transaction {
	return model.Transaction{
		ID:          categoryID + "-" + date.String() + "-" + value,
		Amount:      amount(value),
		Description: categoryID,
		Date:        date,
		Status:      model.StatusPaid,
		AccountID:   "a1",
		CategoryID:  categoryID,
	}
}

func marchTransactions() []model.Transaction {
	recurringRent := accountTxn("food", d(2024, time.March, 1), "200")
	recurringRent.IsRecurring = true
	recurringSalary := accountTxn("salary", d(2024, time.March, 5), "5000")
	recurringSalary.IsRecurring = true
	pending := accountTxn("fun", d(2024, time.March, 9), "999")
	pending.Status = model.StatusPending

	return []model.Transaction{
		recurringSalary,
		recurringRent,
		accountTxn("food", d(2024, time.March, 3), "150"),
		accountTxn("fun", d(2024, time.March, 7), "120"),
		accountTxn("stocks", d(2024, time.March, 8), "500"),
		accountTxn("misc", d(2024, time.March, 10), "30"),
		accountTxn("ghost", d(2024, time.March, 11), "77"),
		pending,
		accountTxn("food", d(2024, time.April, 1), "40"),
		{
			ID: "transfer", Amount: amount("1000"), Date: d(2024, time.March, 12), Status: model.StatusPaid,
			AccountID: "a1", TransferToAccountID: "a2", IsTransfer: true,
		},
	}
}

func TestTotalBalance(t *testing.T) {
	accounts := []model.Account{
		{ID: "a1", CurrentBalance: amount("1000"), IncludeInTotal: true},
		{ID: "a2", CurrentBalance: amount("250.50"), IncludeInTotal: true},
		{ID: "a3", CurrentBalance: amount("9999"), IncludeInTotal: false},
	}
	if got := TotalBalance(accounts); !got.Equal(amount("1250.50")) {
		t.Errorf("TotalBalance = %s, want 1250.50", got)
	}
	if got := TotalBalance(nil); !got.IsZero() {
		t.Errorf("TotalBalance(nil) = %s, want 0", got)
	}
}

func TestMonthlyAggregates(t *testing.T) {
	txns := marchTransactions()
	cats := testCategories()

	tests := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"income", MonthlyIncome(txns, cats, 2024, time.March), "5000"},
		{"expenses", MonthlyExpenses(txns, cats, 2024, time.March), "1000"},
		{"fixed excludes recurring income", MonthlyFixedExpenses(txns, cats, 2024, time.March), "200"},
		{"april expenses", MonthlyExpenses(txns, cats, 2024, time.April), "40"},
		{"empty month", MonthlyIncome(txns, cats, 2023, time.March), "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.got.Equal(amount(tt.want)) {
				t.Errorf("got %s, want %s", tt.got, tt.want)
			}
		})
	}
}

func TestExpensesByLogicTag(t *testing.T) {
	txns := marchTransactions()
	cats := testCategories()

	split := ExpensesByLogicTag(txns, cats, 2024, time.March)
	if !split.Essential.Equal(amount("350")) {
		t.Errorf("Essential = %s, want 350", split.Essential)
	}
	if !split.Superfluous.Equal(amount("120")) {
		t.Errorf("Superfluous = %s, want 120", split.Superfluous)
	}
	if !split.Investment.Equal(amount("500")) {
		t.Errorf("Investment = %s, want 500", split.Investment)
	}

	expenses := MonthlyExpenses(txns, cats, 2024, time.March)
	if split.Total().GreaterThan(expenses) {
		t.Errorf("split total %s exceeds expenses %s", split.Total(), expenses)
	}
	// the untagged "misc" row is the only difference
	if !expenses.Sub(split.Total()).Equal(amount("30")) {
		t.Errorf("expenses - split = %s, want 30", expenses.Sub(split.Total()))
	}
}

func TestLogicTagPartitionEqualityWhenAllTagged(t *testing.T) {
	cats := testCategories()
	txns := []model.Transaction{
		accountTxn("food", d(2024, time.May, 1), "10"),
		accountTxn("fun", d(2024, time.May, 2), "20"),
		accountTxn("stocks", d(2024, time.May, 3), "30"),
	}
	split := ExpensesByLogicTag(txns, cats, 2024, time.May)
	if !split.Total().Equal(MonthlyExpenses(txns, cats, 2024, time.May)) {
		t.Errorf("split total %s should equal expenses", split.Total())
	}
}

func TestAggregationIdempotence(t *testing.T) {
	txns := marchTransactions()
	cats := testCategories()
	snap := model.Snapshot{
		Accounts:     []model.Account{{ID: "a1", CurrentBalance: amount("100"), IncludeInTotal: true}},
		Categories:   cats,
		Transactions: txns,
	}
	goal := decimal.NewFromFloat(0.2)

	first := BuildMonthlySummary(snap, 2024, time.March, goal)
	second := BuildMonthlySummary(snap, 2024, time.March, goal)
	if !reflect.DeepEqual(first, second) {
		t.Error("BuildMonthlySummary is not idempotent")
	}
	if !reflect.DeepEqual(NetWorthSeries(txns, cats), NetWorthSeries(txns, cats)) {
		t.Error("NetWorthSeries is not idempotent")
	}
}

func TestBudgetProjection(t *testing.T) {
	income := amount("5000")
	goalValue := InvestmentGoalValue(income, decimal.NewFromFloat(0.20))
	if !goalValue.Equal(amount("1000")) {
		t.Fatalf("InvestmentGoalValue = %s, want 1000", goalValue)
	}
	buffer := AvailableBuffer(income, amount("2000"), goalValue)
	if !buffer.Equal(amount("2000")) {
		t.Fatalf("AvailableBuffer = %s, want 2000", buffer)
	}
	if got := AvailableToday(buffer, 30).Round(2); !got.Equal(amount("66.67")) {
		t.Errorf("AvailableToday = %s, want 66.67", got)
	}

	if got := AvailableToday(amount("-300"), 30); !got.IsZero() {
		t.Errorf("AvailableToday(negative) = %s, want 0", got)
	}
	if got := AvailableBuffer(amount("100"), amount("500"), decimal.Zero); !got.Equal(amount("-400")) {
		t.Errorf("AvailableBuffer may go negative, got %s", got)
	}
}

func TestClampGoal(t *testing.T) {
	tests := []struct{ in, want string }{
		{"-0.5", "0"},
		{"0.25", "0.25"},
		{"1.5", "1"},
	}
	for _, tt := range tests {
		if got := ClampGoal(amount(tt.in)); !got.Equal(amount(tt.want)) {
			t.Errorf("ClampGoal(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestPercentages(t *testing.T) {
	split := LogicTagSplit{Essential: amount("350"), Superfluous: amount("150"), Investment: amount("500")}
	if got := InvestmentPercentage(split, amount("5000")); !got.Equal(amount("10")) {
		t.Errorf("InvestmentPercentage = %s, want 10", got)
	}
	if got := SuperfluousPercentage(split); !got.Equal(amount("15")) {
		t.Errorf("SuperfluousPercentage = %s, want 15", got)
	}
	if HighSuperfluous(amount("30")) {
		t.Error("30% is not above the warning threshold")
	}
	if !HighSuperfluous(amount("30.1")) {
		t.Error("30.1% should trigger the warning")
	}
	if got := InvestmentPercentage(split, decimal.Zero); !got.IsZero() {
		t.Errorf("InvestmentPercentage with no income = %s, want 0", got)
	}
	if got := SuperfluousPercentage(LogicTagSplit{}); !got.IsZero() {
		t.Errorf("SuperfluousPercentage with no spending = %s, want 0", got)
	}
}

func TestBuildMonthlySummary(t *testing.T) {
	snap := model.Snapshot{
		Accounts:     []model.Account{{ID: "a1", CurrentBalance: amount("1000"), IncludeInTotal: true}},
		Categories:   testCategories(),
		Transactions: marchTransactions(),
	}
	s := BuildMonthlySummary(snap, 2024, time.March, decimal.NewFromFloat(0.20))

	if s.DaysInMonth != 31 {
		t.Errorf("DaysInMonth = %d, want 31", s.DaysInMonth)
	}
	if !s.InvestmentGoalValue.Equal(amount("1000")) {
		t.Errorf("InvestmentGoalValue = %s, want 1000", s.InvestmentGoalValue)
	}
	// 5000 - 200 - 1000
	if !s.AvailableBuffer.Equal(amount("3800")) {
		t.Errorf("AvailableBuffer = %s, want 3800", s.AvailableBuffer)
	}
	if !s.TotalBalance.Equal(amount("1000")) {
		t.Errorf("TotalBalance = %s, want 1000", s.TotalBalance)
	}
	if len(s.Budgets) != 1 || s.Budgets[0].Category.ID != "food" {
		t.Fatalf("Budgets = %+v, want only food", s.Budgets)
	}
	if !s.Budgets[0].Spent.Equal(amount("350")) || !s.Budgets[0].Over {
		t.Errorf("food budget = %+v", s.Budgets[0])
	}
	if !s.Budgets[0].Remaining.Equal(amount("-50")) {
		t.Errorf("food remaining = %s, want -50", s.Budgets[0].Remaining)
	}
}

func TestCategoryBudgetsOver(t *testing.T) {
	cats := testCategories()
	txns := []model.Transaction{accountTxn("food", d(2024, time.May, 1), "301")}
	usage := CategoryBudgets(txns, cats, 2024, time.May)
	if len(usage) != 1 {
		t.Fatalf("got %d usages, want 1", len(usage))
	}
	if !usage[0].Over {
		t.Error("spending 301 of 300 should be over budget")
	}
}

func TestNetWorthSeries(t *testing.T) {
	cats := testCategories()
	txns := []model.Transaction{
		accountTxn("salary", d(2024, time.February, 5), "3000"),
		accountTxn("food", d(2024, time.January, 10), "500"),
		accountTxn("salary", d(2024, time.January, 5), "3000"),
		accountTxn("food", d(2024, time.February, 10), "1000"),
		accountTxn("ghost", d(2024, time.February, 11), "999"),
	}
	pending := accountTxn("salary", d(2024, time.March, 5), "3000")
	pending.Status = model.StatusPending
	txns = append(txns, pending)

	series := NetWorthSeries(txns, cats)
	if len(series) != 2 {
		t.Fatalf("series has %d points, want 2", len(series))
	}

	want := []struct {
		key                        string
		income, expenses, netWorth string
	}{
		{"2024-01", "3000", "500", "2500"},
		{"2024-02", "6000", "1500", "4500"},
	}
	for i, w := range want {
		p := series[i]
		if p.Key != w.key {
			t.Errorf("point %d key = %s, want %s", i, p.Key, w.key)
		}
		if !p.Income.Equal(amount(w.income)) || !p.Expenses.Equal(amount(w.expenses)) || !p.NetWorth.Equal(amount(w.netWorth)) {
			t.Errorf("point %d = %+v, want %+v", i, p, w)
		}
	}
}

func TestStatement(t *testing.T) {
	cats := testCategories()
	txns := marchTransactions()

	tests := []struct {
		name   string
		filter StatementFilter
		want   int
	}{
		{"everything", StatementFilter{Kind: KindAll}, len(txns)},
		{"income only", StatementFilter{Kind: KindIncome}, 1},
		{"transfers only", StatementFilter{Kind: KindTransfer}, 1},
		{"expenses in category", StatementFilter{Kind: KindExpense, CategoryID: "food"}, 3},
		{"search is case insensitive", StatementFilter{Search: "FOOD"}, 3},
		{"unknown source", StatementFilter{SourceID: "nope"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterStatement(txns, cats, tt.filter)
			if len(got) != tt.want {
				t.Errorf("got %d lines, want %d", len(got), tt.want)
			}
			for i := 1; i < len(got); i++ {
				if got[i].Date.After(got[i-1].Date.Time) {
					t.Fatalf("lines not newest first at %d", i)
				}
			}
		})
	}

	groups := GroupByMonth(FilterStatement(txns, cats, StatementFilter{}))
	if len(groups) != 2 || groups[0].Key != "2024-04" || groups[1].Key != "2024-03" {
		t.Errorf("groups = %+v, want 2024-04 then 2024-03", groups)
	}
}
