package model

import "time"

// CategoryType indicates whether a category applies to income or expense
// transactions.
type CategoryType string

const (
	// CategoryTypeIncome represents categories for income transactions.
	CategoryTypeIncome CategoryType = "INCOME"
	// CategoryTypeExpense represents categories for expense transactions.
	CategoryTypeExpense CategoryType = "EXPENSE"
)

// Category is a row of the fixed tax taxonomy. The pipeline treats the
// taxonomy as read-only; rows are seeded by migrations or managed by an
// administrator.
type Category struct {
	CreatedAt    time.Time
	Name         string
	Type         CategoryType
	ID           int64
	IsDeductible bool
}

// MatchesDirection reports whether the category may be assigned to a
// transaction with the given direction.
func (c *Category) MatchesDirection(direction TransactionDirection) bool {
	switch direction {
	case DirectionIncome:
		return c.Type == CategoryTypeIncome
	case DirectionExpense:
		return c.Type == CategoryTypeExpense
	}
	return false
}

// CategoryRule maps a keyword pattern to a category. Rules apply only to
// expense transactions and are evaluated in stored order; the first
// substring match wins.
type CategoryRule struct {
	CreatedAt      time.Time
	KeywordPattern string
	ID             int64
	CategoryID     int64
}
