package service

import (
	"time"

	"github.com/ivanoskov/fincontrol/internal/model"
	"github.com/shopspring/decimal"
)

const (
	// DefaultInvestmentGoal is the share of monthly income reserved for investing.
	DefaultInvestmentGoal = 0.20
	// SuperfluousWarningPercent flags superfluous spending above this share of tagged expenses.
	SuperfluousWarningPercent = 30
)

var hundred = decimal.NewFromInt(100)

// ClampGoal bounds an investment goal fraction to [0, 1].
func ClampGoal(goal decimal.Decimal) decimal.Decimal {
	if goal.IsNegative() {
		return decimal.Zero
	}
	if goal.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return goal
}

// InvestmentGoalValue is the amount of monthly income to reserve for investing.
func InvestmentGoalValue(monthlyIncome, goal decimal.Decimal) decimal.Decimal {
	return monthlyIncome.Mul(goal)
}

// AvailableBuffer is income left after fixed costs and the investment reservation.
// It may be negative.
func AvailableBuffer(monthlyIncome, monthlyFixed, goalValue decimal.Decimal) decimal.Decimal {
	return monthlyIncome.Sub(monthlyFixed).Sub(goalValue)
}

// AvailableToday spreads the buffer over the days of the month, never below zero.
func AvailableToday(buffer decimal.Decimal, daysInMonth int) decimal.Decimal {
	if daysInMonth < 1 {
		daysInMonth = 1
	}
	perDay := buffer.Div(decimal.NewFromInt(int64(daysInMonth)))
	if perDay.IsNegative() {
		return decimal.Zero
	}
	return perDay
}

// InvestmentPercentage is the investment bucket as a percentage of income.
func InvestmentPercentage(split LogicTagSplit, monthlyIncome decimal.Decimal) decimal.Decimal {
	if monthlyIncome.IsZero() {
		return decimal.Zero
	}
	return split.Investment.Div(monthlyIncome).Mul(hundred)
}

// SuperfluousPercentage is the superfluous bucket as a percentage of all tagged expenses.
func SuperfluousPercentage(split LogicTagSplit) decimal.Decimal {
	total := split.Total()
	if total.IsZero() {
		return decimal.Zero
	}
	return split.Superfluous.Div(total).Mul(hundred)
}

// HighSuperfluous reports the "high superfluous spending" warning condition.
func HighSuperfluous(percentage decimal.Decimal) bool {
	return percentage.GreaterThan(decimal.NewFromInt(SuperfluousWarningPercent))
}

// MonthlySummary gathers every figure derived for one month.
type MonthlySummary struct {
	Year                  int             `json:"year"`
	Month                 time.Month      `json:"month"`
	DaysInMonth           int             `json:"daysInMonth"`
	TotalBalance          decimal.Decimal `json:"totalBalance"`
	Income                decimal.Decimal `json:"income"`
	Expenses              decimal.Decimal `json:"expenses"`
	Fixed                 decimal.Decimal `json:"fixed"`
	Split                 LogicTagSplit   `json:"split"`
	InvestmentGoal        decimal.Decimal `json:"investmentGoal"`
	InvestmentGoalValue   decimal.Decimal `json:"investmentGoalValue"`
	AvailableBuffer       decimal.Decimal `json:"availableBuffer"`
	AvailableToday        decimal.Decimal `json:"availableToday"`
	InvestmentPercentage  decimal.Decimal `json:"investmentPercentage"`
	SuperfluousPercentage decimal.Decimal `json:"superfluousPercentage"`
	HighSuperfluous       bool            `json:"highSuperfluous"`
	Budgets               []BudgetUsage   `json:"budgets"`
}

// BuildMonthlySummary runs the aggregation engine and budget projector over a snapshot.
func BuildMonthlySummary(s model.Snapshot, year int, month time.Month, goal decimal.Decimal) MonthlySummary {
	goal = ClampGoal(goal)
	income := MonthlyIncome(s.Transactions, s.Categories, year, month)
	fixed := MonthlyFixedExpenses(s.Transactions, s.Categories, year, month)
	split := ExpensesByLogicTag(s.Transactions, s.Categories, year, month)
	days := model.DaysInMonth(year, month)

	goalValue := InvestmentGoalValue(income, goal)
	buffer := AvailableBuffer(income, fixed, goalValue)
	superfluous := SuperfluousPercentage(split)

	return MonthlySummary{
		Year:                  year,
		Month:                 month,
		DaysInMonth:           days,
		TotalBalance:          TotalBalance(s.Accounts),
		Income:                income,
		Expenses:              MonthlyExpenses(s.Transactions, s.Categories, year, month),
		Fixed:                 fixed,
		Split:                 split,
		InvestmentGoal:        goal,
		InvestmentGoalValue:   goalValue,
		AvailableBuffer:       buffer,
		AvailableToday:        AvailableToday(buffer, days),
		InvestmentPercentage:  InvestmentPercentage(split, income),
		SuperfluousPercentage: superfluous,
		HighSuperfluous:       HighSuperfluous(superfluous),
		Budgets:               CategoryBudgets(s.Transactions, s.Categories, year, month),
	}
}
