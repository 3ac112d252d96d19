package model

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type CategoryType string

const (
	CategoryIncome  CategoryType = "Receita"
	CategoryExpense CategoryType = "Despesa"
)

func (t CategoryType) IsValid() bool {
	return t == CategoryIncome || t == CategoryExpense
}

// LogicTag classifies expense categories for the essential/superfluous/investment split.
type LogicTag string

const (
	TagNone        LogicTag = ""
	TagEssential   LogicTag = "Essencial"
	TagSuperfluous LogicTag = "Supérfluo"
	TagInvestment  LogicTag = "Investimento"
)

func (t LogicTag) IsValid() bool {
	switch t {
	case TagNone, TagEssential, TagSuperfluous, TagInvestment:
		return true
	}
	return false
}

// ParseLogicTag normalizes stored spellings, including the unaccented and
// mis-encoded variants of "Supérfluo" written by older clients.
func ParseLogicTag(s string) (LogicTag, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return TagNone, true
	}
	lower := strings.ToLower(s)
	switch {
	case lower == "essencial" || lower == "essential":
		return TagEssential, true
	case lower == "investimento" || lower == "investment":
		return TagInvestment, true
	case lower == "superfluous" || (strings.HasPrefix(lower, "sup") && strings.HasSuffix(lower, "rfluo")):
		return TagSuperfluous, true
	}
	return LogicTag(s), false
}

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Category labels transactions. Icon is an opaque key into an external icon set.
type Category struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Icon          string           `json:"icon"`
	Color         string           `json:"color"`
	Type          CategoryType     `json:"type"`
	LogicTag      LogicTag         `json:"logicTag,omitempty"`
	MonthlyBudget *decimal.Decimal `json:"monthlyBudget,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if !c.Type.IsValid() {
		return ErrInvalidCategoryType
	}
	if !c.LogicTag.IsValid() {
		return ErrInvalidLogicTag
	}
	// logic tags only classify expenses
	if c.Type == CategoryIncome && c.LogicTag != TagNone {
		return ErrInvalidLogicTag
	}
	if c.Color != "" && !hexColor.MatchString(c.Color) {
		return ErrInvalidColor
	}
	if c.MonthlyBudget != nil && c.MonthlyBudget.IsNegative() {
		return ErrInvalidBudget
	}
	return nil
}

type CategoryUpdate struct {
	Name          *string
	Icon          *string
	Color         *string
	Type          *CategoryType
	LogicTag      *LogicTag
	MonthlyBudget *decimal.Decimal
}

func (u CategoryUpdate) Apply(c Category) Category {
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Icon != nil {
		c.Icon = *u.Icon
	}
	if u.Color != nil {
		c.Color = *u.Color
	}
	if u.Type != nil {
		c.Type = *u.Type
	}
	if u.LogicTag != nil {
		c.LogicTag = *u.LogicTag
	}
	if u.MonthlyBudget != nil {
		budget := *u.MonthlyBudget
		c.MonthlyBudget = &budget
	}
	return c
}

// DefaultCategories is the starter set created for a user without categories.
func DefaultCategories() []Category {
	return []Category{
		{Name: "Alimentação", Icon: "utensils", Color: "#ef4444", Type: CategoryExpense, LogicTag: TagEssential},
		{Name: "Transporte", Icon: "car", Color: "#f97316", Type: CategoryExpense, LogicTag: TagEssential},
		{Name: "Moradia", Icon: "home", Color: "#8b5cf6", Type: CategoryExpense, LogicTag: TagEssential},
		{Name: "Lazer", Icon: "smile", Color: "#ec4899", Type: CategoryExpense, LogicTag: TagSuperfluous},
		{Name: "Compras", Icon: "shopping-bag", Color: "#a855f7", Type: CategoryExpense, LogicTag: TagSuperfluous},
		{Name: "Investimentos", Icon: "trending-up", Color: "#10b981", Type: CategoryExpense, LogicTag: TagInvestment},
		{Name: "Salário", Icon: "dollar-sign", Color: "#22c55e", Type: CategoryIncome},
		{Name: "Freelance", Icon: "briefcase", Color: "#14b8a6", Type: CategoryIncome},
	}
}
