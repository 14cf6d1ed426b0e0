package aggregator

import (
	"context"
	"time"

	"github.com/agencytax/agencytax/internal/model"
)

// MockFetcher is a mock implementation of Fetcher for testing.
type MockFetcher struct {
	// Functions that can be set by tests to control behavior
	CreateLinkTokenFn     func(ctx context.Context, userID string) (string, error)
	ExchangePublicTokenFn func(ctx context.Context, publicToken string) (string, string, error)
	GetAccountsFn         func(ctx context.Context, accessToken string) ([]Account, error)
	GetTransactionsPageFn func(ctx context.Context, accessToken string, startDate, endDate time.Time, offset int32) ([]model.Transaction, int32, error)
	SyncTransactionsFn    func(ctx context.Context, accessToken string) (*model.TransactionDelta, error)

	// Call tracking
	GetTransactionsPageCalls []GetTransactionsPageCall
	SyncTransactionsCalls    []string
	GetAccountsCalls         []string
}

// GetTransactionsPageCall records the parameters of a GetTransactionsPage call.
type GetTransactionsPageCall struct {
	StartDate   time.Time
	EndDate     time.Time
	AccessToken string
	Offset      int32
}

// NewMockFetcher creates a new mock aggregator fetcher.
func NewMockFetcher() *MockFetcher {
	return &MockFetcher{}
}

// CreateLinkToken implements Fetcher.CreateLinkToken.
func (m *MockFetcher) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	if m.CreateLinkTokenFn != nil {
		return m.CreateLinkTokenFn(ctx, userID)
	}
	return "link-token-mock", nil
}

// ExchangePublicToken implements Fetcher.ExchangePublicToken.
func (m *MockFetcher) ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error) {
	if m.ExchangePublicTokenFn != nil {
		return m.ExchangePublicTokenFn(ctx, publicToken)
	}
	return "access-token-mock", "item-mock", nil
}

// GetAccounts implements Fetcher.GetAccounts.
func (m *MockFetcher) GetAccounts(ctx context.Context, accessToken string) ([]Account, error) {
	m.GetAccountsCalls = append(m.GetAccountsCalls, accessToken)

	if m.GetAccountsFn != nil {
		return m.GetAccountsFn(ctx, accessToken)
	}
	return []Account{}, nil
}

// GetTransactionsPage implements Fetcher.GetTransactionsPage.
func (m *MockFetcher) GetTransactionsPage(ctx context.Context, accessToken string, startDate, endDate time.Time, offset int32) ([]model.Transaction, int32, error) {
	m.GetTransactionsPageCalls = append(m.GetTransactionsPageCalls, GetTransactionsPageCall{
		AccessToken: accessToken,
		StartDate:   startDate,
		EndDate:     endDate,
		Offset:      offset,
	})

	if m.GetTransactionsPageFn != nil {
		return m.GetTransactionsPageFn(ctx, accessToken, startDate, endDate, offset)
	}
	return []model.Transaction{}, 0, nil
}

// SyncTransactions implements Fetcher.SyncTransactions.
func (m *MockFetcher) SyncTransactions(ctx context.Context, accessToken string) (*model.TransactionDelta, error) {
	m.SyncTransactionsCalls = append(m.SyncTransactionsCalls, accessToken)

	if m.SyncTransactionsFn != nil {
		return m.SyncTransactionsFn(ctx, accessToken)
	}
	return &model.TransactionDelta{}, nil
}

// Reset clears all call tracking.
func (m *MockFetcher) Reset() {
	m.GetTransactionsPageCalls = nil
	m.SyncTransactionsCalls = nil
	m.GetAccountsCalls = nil
}

// Ensure MockFetcher implements Fetcher interface.
var _ Fetcher = (*MockFetcher)(nil)
