package aggregator

import (
	"context"
	"time"

	"github.com/agencytax/agencytax/internal/model"
)

// Account describes one bank account as reported by the aggregator.
type Account struct {
	ProviderAccountID string
	Name              string
	Type              string
	LastFour          string
}

// Fetcher defines the contract for the remote bank-data provider.
// This interface allows for easy mocking in tests and swapping data sources.
type Fetcher interface {
	// CreateLinkToken starts the account-linking flow for a user.
	CreateLinkToken(ctx context.Context, userID string) (string, error)

	// ExchangePublicToken trades a Link public token for a long-lived
	// access token and the provider item ID.
	ExchangePublicToken(ctx context.Context, publicToken string) (accessToken, itemID string, err error)

	// GetAccounts lists the accounts reachable through an access token.
	GetAccounts(ctx context.Context, accessToken string) ([]Account, error)

	// GetTransactionsPage fetches one page of full transaction history.
	// The returned total is the provider's grand total for the range;
	// callers paginate until they have accumulated that many rows.
	// A "data not ready yet" condition surfaces as a retryable error
	// wrapping common.ErrAggregatorNotReady.
	GetTransactionsPage(ctx context.Context, accessToken string, startDate, endDate time.Time, offset int32) ([]model.Transaction, int32, error)

	// SyncTransactions fetches the provider-native delta: added, modified
	// and removed transactions since the provider's last cursor.
	SyncTransactions(ctx context.Context, accessToken string) (*model.TransactionDelta, error)
}
