// Package aggregator provides a client for the remote bank-data provider.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agencytax/agencytax/internal/common"
	"github.com/agencytax/agencytax/internal/model"
	"github.com/plaid/plaid-go/v20/plaid"
)

// PageSize is Plaid's maximum transactions page size.
const PageSize = int32(500)

// Config holds Plaid API configuration.
type Config struct {
	ClientID    string
	Secret      string
	Environment string // sandbox or production
	ClientName  string
}

// Validate ensures all required fields are present.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("%w: plaid client ID is required", common.ErrMissingConfig)
	}
	if c.Secret == "" {
		return fmt.Errorf("%w: plaid secret is required", common.ErrMissingConfig)
	}
	if c.Environment == "" {
		return fmt.Errorf("%w: plaid environment is required", common.ErrMissingConfig)
	}

	validEnvs := map[string]bool{
		"sandbox":    true,
		"production": true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("%w: invalid Plaid environment: must be sandbox or production", common.ErrInvalidConfig)
	}

	return nil
}

// Client implements the Fetcher interface against the Plaid API.
type Client struct {
	client     *plaid.APIClient
	logger     *slog.Logger
	clientName string
}

// NewClient creates a new Plaid-backed aggregator client.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", cfg.ClientID)
	configuration.AddDefaultHeader("PLAID-SECRET", cfg.Secret)

	switch cfg.Environment {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	}

	clientName := cfg.ClientName
	if clientName == "" {
		clientName = "AgencyTax"
	}

	return &Client{
		client:     plaid.NewAPIClient(configuration),
		clientName: clientName,
		logger:     slog.Default().With("component", "aggregator"),
	}, nil
}

// CreateLinkToken creates a Link token for the account-linking flow.
func (c *Client) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	user := plaid.LinkTokenCreateRequestUser{
		ClientUserId: userID,
	}

	request := plaid.NewLinkTokenCreateRequest(
		c.clientName,
		"en",
		[]plaid.CountryCode{plaid.COUNTRYCODE_US},
		user,
	)
	request.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})

	resp, _, err := c.client.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*request).Execute()
	if err != nil {
		return "", wrapPlaidError("failed to create link token", err)
	}

	return resp.GetLinkToken(), nil
}

// ExchangePublicToken exchanges a public token from Link for an access token.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error) {
	request := plaid.NewItemPublicTokenExchangeRequest(publicToken)
	resp, _, err := c.client.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*request).Execute()
	if err != nil {
		return "", "", wrapPlaidError("failed to exchange public token", err)
	}

	return resp.GetAccessToken(), resp.GetItemId(), nil
}

// GetAccounts fetches the accounts reachable through an access token.
func (c *Client) GetAccounts(ctx context.Context, accessToken string) ([]Account, error) {
	request := plaid.NewAccountsGetRequest(accessToken)
	resp, _, err := c.client.PlaidApi.AccountsGet(ctx).AccountsGetRequest(*request).Execute()
	if err != nil {
		return nil, wrapPlaidError("failed to fetch accounts", err)
	}

	plaidAccounts := resp.GetAccounts()
	accounts := make([]Account, 0, len(plaidAccounts))
	for _, acct := range plaidAccounts {
		accounts = append(accounts, Account{
			ProviderAccountID: acct.GetAccountId(),
			Name:              acct.GetName(),
			Type:              string(acct.GetType()),
			LastFour:          acct.GetMask(),
		})
	}

	c.logger.Info("Fetched accounts", "count", len(accounts))

	return accounts, nil
}

// GetTransactionsPage fetches one page of full transaction history.
func (c *Client) GetTransactionsPage(ctx context.Context, accessToken string, startDate, endDate time.Time, offset int32) ([]model.Transaction, int32, error) {
	if startDate.After(endDate) {
		return nil, 0, fmt.Errorf("start date must be before end date")
	}

	request := plaid.NewTransactionsGetRequest(
		accessToken,
		startDate.Format("2006-01-02"),
		endDate.Format("2006-01-02"),
	)
	options := plaid.TransactionsGetRequestOptions{
		Count:  plaid.PtrInt32(PageSize),
		Offset: plaid.PtrInt32(offset),
	}
	request.SetOptions(options)

	resp, _, err := c.client.PlaidApi.TransactionsGet(ctx).TransactionsGetRequest(*request).Execute()
	if err != nil {
		return nil, 0, wrapPlaidError("failed to fetch transactions", err)
	}

	plaidTransactions := resp.GetTransactions()
	total := resp.GetTotalTransactions()

	c.logger.Debug("Fetched transaction page",
		"count", len(plaidTransactions),
		"offset", offset,
		"total", total)

	transactions := make([]model.Transaction, 0, len(plaidTransactions))
	for _, pt := range plaidTransactions {
		transactions = append(transactions, c.mapTransaction(pt))
	}

	return transactions, total, nil
}

// SyncTransactions fetches the provider-native delta for an access token.
func (c *Client) SyncTransactions(ctx context.Context, accessToken string) (*model.TransactionDelta, error) {
	delta := &model.TransactionDelta{}
	cursor := ""

	for {
		request := plaid.NewTransactionsSyncRequest(accessToken)
		if cursor != "" {
			request.SetCursor(cursor)
		}

		resp, _, err := c.client.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(*request).Execute()
		if err != nil {
			return nil, wrapPlaidError("failed to sync transactions", err)
		}

		for _, pt := range resp.GetAdded() {
			delta.Added = append(delta.Added, c.mapTransaction(pt))
		}
		for _, pt := range resp.GetModified() {
			delta.Modified = append(delta.Modified, c.mapTransaction(pt))
		}
		for _, rt := range resp.GetRemoved() {
			delta.Removed = append(delta.Removed, model.RemovedTransaction{
				ProviderID: rt.GetTransactionId(),
			})
		}

		if !resp.GetHasMore() {
			break
		}
		cursor = resp.GetNextCursor()
	}

	c.logger.Debug("Fetched transaction delta",
		"added", len(delta.Added),
		"modified", len(delta.Modified),
		"removed", len(delta.Removed))

	return delta, nil
}

// mapTransaction converts a Plaid transaction to our internal model.
// The amount sign is passed through untouched: Plaid reports money out as
// positive and money in as negative, which is exactly the persisted
// convention.
func (c *Client) mapTransaction(pt plaid.Transaction) model.Transaction {
	date, err := time.Parse("2006-01-02", pt.GetDate())
	if err != nil {
		c.logger.Error("Failed to parse transaction date", "date", pt.GetDate(), "error", err)
		date = time.Now()
	}

	return model.Transaction{
		ProviderID:   pt.GetTransactionId(),
		Date:         date,
		Description:  pt.GetName(),
		MerchantName: pt.GetMerchantName(),
		Amount:       pt.GetAmount(),
		Pending:      pt.GetPending(),
	}
}

// wrapPlaidError translates Plaid API errors into pipeline error types.
// PRODUCT_NOT_READY maps to the retryable not-ready sentinel; everything
// else is terminal for the current account and tagged non-retryable so
// callers surface it immediately instead of backing off.
func wrapPlaidError(msg string, err error) error {
	plaidErr, convErr := plaid.ToPlaidError(err)
	if convErr != nil {
		return &common.RetryableError{
			Err:       fmt.Errorf("%s: %w", msg, err),
			Retryable: false,
		}
	}

	if plaidErr.ErrorCode == "PRODUCT_NOT_READY" {
		return &common.RetryableError{
			Err:       fmt.Errorf("%w: %s", common.ErrAggregatorNotReady, plaidErr.ErrorMessage),
			Retryable: true,
		}
	}

	return &common.RetryableError{
		Err:       fmt.Errorf("%s: plaid API error: %s - %s", msg, plaidErr.ErrorCode, plaidErr.ErrorMessage),
		Retryable: false,
	}
}

// Ensure Client implements Fetcher interface.
var _ Fetcher = (*Client)(nil)
