// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/agencytax/agencytax/internal/model"
)

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Linked account operations
	UpsertAccount(ctx context.Context, account *model.LinkedAccount) error
	GetAccountByID(ctx context.Context, userID string, accountID int64) (*model.LinkedAccount, error)
	GetActiveAccounts(ctx context.Context, userID string) ([]model.LinkedAccount, error)
	CountAccountsNeedingInitialSync(ctx context.Context, userID string) (int, error)
	MarkInitialSyncComplete(ctx context.Context, accountID int64, at time.Time) error
	TouchLastSync(ctx context.Context, accountID int64, at time.Time) error
	DeactivateAccount(ctx context.Context, userID string, accountID int64) error

	// Transaction operations
	UpsertTransaction(ctx context.Context, txn *model.Transaction) error
	UpdateTransactionDetails(ctx context.Context, providerID, userID string, amount float64, date time.Time, description, merchantName string) error
	DeleteTransactionByProviderID(ctx context.Context, providerID, userID string) error
	GetTransactionByProviderID(ctx context.Context, providerID string) (*model.Transaction, error)
	GetUncategorizedTransactions(ctx context.Context, userID string, limit int) ([]model.Transaction, error)
	AssignCategory(ctx context.Context, providerID string, categoryID int64) error
	CountTransactionsByAccount(ctx context.Context, accountID int64) (int, error)

	// Category and rule operations
	GetCategories(ctx context.Context) ([]model.Category, error)
	GetCategoryByID(ctx context.Context, id int64) (*model.Category, error)
	CreateCategory(ctx context.Context, name string, categoryType model.CategoryType, deductible bool) (*model.Category, error)
	GetCategoryRules(ctx context.Context) ([]model.CategoryRule, error)
	CreateCategoryRule(ctx context.Context, keywordPattern string, categoryID int64) (*model.CategoryRule, error)

	// Audit operations
	RecordAuditEvent(ctx context.Context, event *model.AuditEvent) error

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// Vault is the encrypt/decrypt capability guarding aggregator access
// tokens at rest.
type Vault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(token string) (string, error)
}

// Classifier selects one category name from an allowed list for a
// transaction the rule engine could not match.
type Classifier interface {
	ClassifyTransaction(ctx context.Context, description, merchantName string, absAmount float64, direction model.TransactionDirection, allowedNames []string) (string, error)
}

// RetryOptions configures retry behavior for operations.
// When Linear is set the delay grows as InitialDelay multiplied by the
// attempt number instead of exponentially.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Linear       bool
}
