// Package model defines the core domain models used throughout the application.
package model

import "time"

// TransactionDirection indicates whether money flowed in or out.
type TransactionDirection string

const (
	// DirectionIncome represents money flowing into the account.
	DirectionIncome TransactionDirection = "INCOME"
	// DirectionExpense represents money flowing out of the account.
	DirectionExpense TransactionDirection = "EXPENSE"
)

// Transaction represents a single bank transaction as reported by the
// aggregator. ProviderID is the aggregator-assigned identifier and the
// natural key for idempotent upserts.
//
// Amount keeps the aggregator's sign convention: negative is income,
// positive is expense. Consumers must not normalize the sign.
type Transaction struct {
	Date         time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CategoryID   *int64
	ProviderID   string
	UserID       string
	Description  string // Raw transaction description from the aggregator
	MerchantName string
	AccountID    int64
	Amount       float64
	Pending      bool // Never persisted while true
	IsReviewed   bool
}

// Direction derives the transaction direction from the amount sign.
// Zero-amount transactions are treated as expenses, matching the rule
// engine's boundary.
func (t *Transaction) Direction() TransactionDirection {
	if t.Amount < 0 {
		return DirectionIncome
	}
	return DirectionExpense
}

// RemovedTransaction identifies a transaction the aggregator has withdrawn,
// typically a pending transaction that never posted.
type RemovedTransaction struct {
	ProviderID string
}

// TransactionDelta is the aggregator's incremental view: three disjoint
// sets of changes since the last sync.
type TransactionDelta struct {
	Added    []Transaction
	Modified []Transaction
	Removed  []RemovedTransaction
}
