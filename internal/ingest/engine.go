// Package ingest pulls transactions from the bank aggregator into local
// storage. The first sync for an account walks the full paginated history;
// every sync after that applies the aggregator's incremental delta.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/agencytax/agencytax/internal/aggregator"
	"github.com/agencytax/agencytax/internal/common"
	"github.com/agencytax/agencytax/internal/model"
	"github.com/agencytax/agencytax/internal/service"
)

// DefaultHistoryStart is the lower bound of the full-history pull. The
// product only files taxes from this year forward, so older history is
// never imported.
var DefaultHistoryStart = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// defaultRetryOptions matches the aggregator's documented settle time for
// freshly linked items: linear backoff, base 1200ms, four attempts.
var defaultRetryOptions = service.RetryOptions{
	MaxAttempts:  4,
	InitialDelay: 1200 * time.Millisecond,
	Linear:       true,
}

// Engine orchestrates transaction ingestion for a user's linked accounts.
type Engine struct {
	store        service.Storage
	fetcher      aggregator.Fetcher
	vault        service.Vault
	logger       *slog.Logger
	now          func() time.Time
	historyStart time.Time
	retryOpts    service.RetryOptions
}

// Option configures an Engine.
type Option func(*Engine)

// WithHistoryStart overrides the lower bound of the full-history pull.
func WithHistoryStart(t time.Time) Option {
	return func(e *Engine) {
		if !t.IsZero() {
			e.historyStart = t
		}
	}
}

// WithRetryOptions overrides the not-ready retry policy.
func WithRetryOptions(opts service.RetryOptions) Option {
	return func(e *Engine) { e.retryOpts = opts }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger used for sync diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an ingestion engine.
func New(store service.Storage, fetcher aggregator.Fetcher, vault service.Vault, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		fetcher:      fetcher,
		vault:        vault,
		logger:       slog.Default(),
		now:          time.Now,
		historyStart: DefaultHistoryStart,
		retryOpts:    defaultRetryOptions,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Sync reconciles all of a user's active accounts. If any account has not
// finished its initial pull, every account takes the full-history path;
// otherwise the aggregator's incremental delta is applied. Per-account
// failures are collected into the result so one bad account cannot block
// the rest.
func (e *Engine) Sync(ctx context.Context, userID string) (model.SyncResult, error) {
	var result model.SyncResult

	accounts, err := e.store.GetActiveAccounts(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("loading active accounts: %w", err)
	}
	if len(accounts) == 0 {
		result.Mode = model.SyncModeNone
		return result, nil
	}
	result.Accounts = len(accounts)

	needInitial, err := e.store.CountAccountsNeedingInitialSync(ctx, userID)
	if err != nil {
		return result, fmt.Errorf("checking initial sync state: %w", err)
	}

	if needInitial > 0 {
		result.Mode = model.SyncModeFull
		start, end := e.historyStart, e.now()
		result.DateRange = &model.DateRange{Start: start, End: end}
		for _, account := range accounts {
			imported, err := e.syncAccountFull(ctx, &account, start, end)
			result.Imported += imported
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("account %s: %v", account.ProviderAccountID, err))
			}
		}
	} else {
		result.Mode = model.SyncModeIncremental
		for _, account := range accounts {
			imported, err := e.syncAccountIncremental(ctx, &account)
			result.Imported += imported
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("account %s: %v", account.ProviderAccountID, err))
			}
		}
	}

	e.logger.Info("sync complete",
		"user_id", userID,
		"mode", result.Mode,
		"accounts", result.Accounts,
		"imported", result.Imported,
		"errors", len(result.Errors))
	return result, nil
}

// syncAccountFull pulls the account's complete history page by page until
// the accumulated row count reaches the aggregator's reported total.
func (e *Engine) syncAccountFull(ctx context.Context, account *model.LinkedAccount, start, end time.Time) (int, error) {
	accessToken, err := e.vault.Decrypt(account.EncryptedAccessToken)
	if err != nil {
		return 0, fmt.Errorf("decrypting access token: %w", err)
	}

	var (
		imported int
		fetched  int32
		total    int32
	)

	for {
		var page []model.Transaction
		err := common.WithRetry(ctx, func() error {
			var pageErr error
			page, total, pageErr = e.fetcher.GetTransactionsPage(ctx, accessToken, start, end, fetched)
			// Only the aggregator's not-ready condition is worth waiting
			// out; anything else fails the account on the first attempt.
			if pageErr != nil && !common.IsRetryable(pageErr) {
				return &common.RetryableError{Err: pageErr, Retryable: false}
			}
			return pageErr
		}, e.retryOpts)
		if err != nil {
			return imported, fmt.Errorf("fetching transactions at offset %d: %w", fetched, err)
		}

		for i := range page {
			txn := page[i]
			if txn.Pending {
				continue
			}
			txn.UserID = account.UserID
			txn.AccountID = account.ID
			if err := e.store.UpsertTransaction(ctx, &txn); err != nil {
				return imported, fmt.Errorf("storing transaction %s: %w", txn.ProviderID, err)
			}
			imported++
		}

		fetched += int32(len(page))
		if fetched >= total || len(page) == 0 {
			break
		}
	}

	syncedAt := e.now()
	if err := e.store.MarkInitialSyncComplete(ctx, account.ID, syncedAt); err != nil {
		return imported, fmt.Errorf("marking initial sync complete: %w", err)
	}

	e.recordAudit(ctx, account, model.AuditActionInitialSync, map[string]any{
		"imported":   imported,
		"start_date": start.Format("2006-01-02"),
		"end_date":   end.Format("2006-01-02"),
	})

	e.logger.Info("initial sync finished",
		"account_id", account.ID,
		"imported", imported,
		"fetched", fetched)
	return imported, nil
}

// syncAccountIncremental applies the aggregator's delta since the last
// sync. The not-ready retry does not apply here: an account only reaches
// this path after a successful initial pull.
func (e *Engine) syncAccountIncremental(ctx context.Context, account *model.LinkedAccount) (int, error) {
	accessToken, err := e.vault.Decrypt(account.EncryptedAccessToken)
	if err != nil {
		return 0, fmt.Errorf("decrypting access token: %w", err)
	}

	delta, err := e.fetcher.SyncTransactions(ctx, accessToken)
	if err != nil {
		return 0, fmt.Errorf("fetching transaction delta: %w", err)
	}

	imported := 0
	for i := range delta.Added {
		txn := delta.Added[i]
		if !e.importable(txn) {
			continue
		}
		txn.UserID = account.UserID
		txn.AccountID = account.ID
		if err := e.store.UpsertTransaction(ctx, &txn); err != nil {
			return imported, fmt.Errorf("storing transaction %s: %w", txn.ProviderID, err)
		}
		imported++
	}

	// Update and delete failures are logged per entry rather than failing
	// the account: whatever did apply stays applied and the next delta
	// delivers the stragglers again.
	for i := range delta.Modified {
		txn := delta.Modified[i]
		if !e.importable(txn) {
			continue
		}
		if err := e.store.UpdateTransactionDetails(ctx, txn.ProviderID, account.UserID, txn.Amount, txn.Date, txn.Description, txn.MerchantName); err != nil {
			e.logger.Warn("failed to apply modified transaction",
				"provider_id", txn.ProviderID,
				"account_id", account.ID,
				"error", err)
		}
	}

	for _, removed := range delta.Removed {
		if err := e.store.DeleteTransactionByProviderID(ctx, removed.ProviderID, account.UserID); err != nil {
			e.logger.Warn("failed to remove transaction",
				"provider_id", removed.ProviderID,
				"account_id", account.ID,
				"error", err)
		}
	}

	if err := e.store.TouchLastSync(ctx, account.ID, e.now()); err != nil {
		return imported, fmt.Errorf("stamping last sync: %w", err)
	}

	e.recordAudit(ctx, account, model.AuditActionMonthlySync, map[string]any{
		"added":    len(delta.Added),
		"modified": len(delta.Modified),
		"removed":  len(delta.Removed),
		"imported": imported,
	})

	e.logger.Info("incremental sync finished",
		"account_id", account.ID,
		"added", len(delta.Added),
		"modified", len(delta.Modified),
		"removed", len(delta.Removed))
	return imported, nil
}

// importable filters delta entries: pending transactions are never stored
// and anything before the history lower bound is out of scope.
func (e *Engine) importable(txn model.Transaction) bool {
	return !txn.Pending && !txn.Date.Before(e.historyStart)
}

// recordAudit writes a best-effort audit entry. Failures are logged and
// swallowed: the sync that just succeeded must not be reported as failed
// because the audit table was unavailable.
func (e *Engine) recordAudit(ctx context.Context, account *model.LinkedAccount, action string, metadata map[string]any) {
	event := &model.AuditEvent{
		ActorUserID: account.UserID,
		Action:      action,
		TableName:   "linked_accounts",
		RecordID:    fmt.Sprintf("%d", account.ID),
		Metadata:    metadata,
	}
	if err := e.store.RecordAuditEvent(ctx, event); err != nil {
		e.logger.Warn("audit write failed",
			"action", action,
			"account_id", account.ID,
			"error", err)
	}
}
