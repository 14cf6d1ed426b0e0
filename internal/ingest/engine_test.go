package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agencytax/agencytax/internal/aggregator"
	"github.com/agencytax/agencytax/internal/common"
	"github.com/agencytax/agencytax/internal/model"
	"github.com/agencytax/agencytax/internal/service"
	"github.com/agencytax/agencytax/internal/storage"
	"github.com/agencytax/agencytax/internal/vault"
)

var testRetryOptions = service.RetryOptions{
	MaxAttempts:  4,
	InitialDelay: time.Millisecond,
	Linear:       true,
}

func testClock() time.Time {
	return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
}

type testEnv struct {
	store   *storage.SQLiteStorage
	fetcher *aggregator.MockFetcher
	vault   *vault.Vault
	engine  *Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Migrate(context.Background()))
	t.Cleanup(func() {
		_ = store.Close()
	})

	v, err := vault.New(bytes.Repeat([]byte{0x42}, 32))
	require.NoError(t, err)

	fetcher := aggregator.NewMockFetcher()
	engine := New(store, fetcher, v,
		WithRetryOptions(testRetryOptions),
		WithClock(testClock))

	return &testEnv{store: store, fetcher: fetcher, vault: v, engine: engine}
}

// linkAccount inserts an active account whose encrypted token decrypts to
// "access-" + providerAccountID.
func (env *testEnv) linkAccount(t *testing.T, userID, providerAccountID string, initialDone bool) *model.LinkedAccount {
	t.Helper()

	encrypted, err := env.vault.Encrypt("access-" + providerAccountID)
	require.NoError(t, err)

	account := &model.LinkedAccount{
		UserID:               userID,
		ProviderAccountID:    providerAccountID,
		EncryptedAccessToken: encrypted,
		Name:                 "Business Checking",
		Type:                 "depository",
		LastFour:             "4321",
	}
	require.NoError(t, env.store.UpsertAccount(context.Background(), account))
	if initialDone {
		require.NoError(t, env.store.MarkInitialSyncComplete(context.Background(), account.ID, testClock().Add(-24*time.Hour)))
	}
	return account
}

func historyTxn(providerID string, day int, amount float64, pending bool) model.Transaction {
	return model.Transaction{
		ProviderID:  providerID,
		Amount:      amount,
		Date:        time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC),
		Description: "TXN " + providerID,
		Pending:     pending,
	}
}

func TestSyncNoActiveAccounts(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.engine.Sync(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.SyncModeNone, result.Mode)
	assert.Zero(t, result.Accounts)
	assert.Empty(t, env.fetcher.GetTransactionsPageCalls)
	assert.Empty(t, env.fetcher.SyncTransactionsCalls)
}

func TestSyncFullHistoryPaginates(t *testing.T) {
	env := newTestEnv(t)
	env.linkAccount(t, "user-1", "acct-1", false)

	// Three transactions delivered two, then one; total reported as 3.
	pages := [][]model.Transaction{
		{historyTxn("txn-1", 1, 25.00, false), historyTxn("txn-2", 2, -900.00, false)},
		{historyTxn("txn-3", 3, 49.00, false)},
	}
	env.fetcher.GetTransactionsPageFn = func(_ context.Context, accessToken string, _, _ time.Time, offset int32) ([]model.Transaction, int32, error) {
		assert.Equal(t, "access-acct-1", accessToken)
		switch offset {
		case 0:
			return pages[0], 3, nil
		case 2:
			return pages[1], 3, nil
		default:
			t.Fatalf("unexpected offset %d", offset)
			return nil, 0, nil
		}
	}

	result, err := env.engine.Sync(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.SyncModeFull, result.Mode)
	assert.Equal(t, 3, result.Imported)
	assert.Empty(t, result.Errors)
	require.NotNil(t, result.DateRange)
	assert.Equal(t, DefaultHistoryStart, result.DateRange.Start)
	assert.Equal(t, testClock(), result.DateRange.End)
	assert.Len(t, env.fetcher.GetTransactionsPageCalls, 2)

	stored, err := env.store.GetTransactionByProviderID(context.Background(), "txn-2")
	require.NoError(t, err)
	assert.Equal(t, "user-1", stored.UserID)
	assert.Equal(t, -900.00, stored.Amount)

	accounts, err := env.store.GetActiveAccounts(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.True(t, accounts[0].IsInitialSyncComplete)
	require.NotNil(t, accounts[0].LastSync)
}

func TestSyncFullHistorySkipsPending(t *testing.T) {
	env := newTestEnv(t)
	account := env.linkAccount(t, "user-1", "acct-1", false)

	env.fetcher.GetTransactionsPageFn = func(_ context.Context, _ string, _, _ time.Time, _ int32) ([]model.Transaction, int32, error) {
		return []model.Transaction{
			historyTxn("txn-posted", 1, 10.00, false),
			historyTxn("txn-pending", 2, 20.00, true),
		}, 2, nil
	}

	result, err := env.engine.Sync(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)

	_, err = env.store.GetTransactionByProviderID(context.Background(), "txn-pending")
	assert.Error(t, err)

	count, err := env.store.CountTransactionsByAccount(context.Background(), account.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSyncFullHistoryRetriesNotReady(t *testing.T) {
	env := newTestEnv(t)
	env.linkAccount(t, "user-1", "acct-1", false)

	attempts := 0
	env.fetcher.GetTransactionsPageFn = func(_ context.Context, _ string, _, _ time.Time, _ int32) ([]model.Transaction, int32, error) {
		attempts++
		if attempts < 3 {
			return nil, 0, &common.RetryableError{
				Err:       fmt.Errorf("%w: still settling", common.ErrAggregatorNotReady),
				Retryable: true,
			}
		}
		return []model.Transaction{historyTxn("txn-1", 1, 10.00, false)}, 1, nil
	}

	result, err := env.engine.Sync(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 3, attempts)
}

func TestSyncFullHistoryRetryCeiling(t *testing.T) {
	env := newTestEnv(t)
	env.linkAccount(t, "user-1", "acct-bad", false)
	env.linkAccount(t, "user-1", "acct-good", false)

	env.fetcher.GetTransactionsPageFn = func(_ context.Context, accessToken string, _, _ time.Time, _ int32) ([]model.Transaction, int32, error) {
		if accessToken == "access-acct-bad" {
			return nil, 0, &common.RetryableError{
				Err:       fmt.Errorf("%w: never ready", common.ErrAggregatorNotReady),
				Retryable: true,
			}
		}
		return []model.Transaction{historyTxn("txn-good", 1, 10.00, false)}, 1, nil
	}

	result, err := env.engine.Sync(context.Background(), "user-1")
	require.NoError(t, err)

	// The failing account surfaces in Errors; its sibling still imports.
	assert.Equal(t, 1, result.Imported)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "acct-bad")

	// The not-ready account is retried exactly MaxAttempts times.
	badCalls := 0
	for _, call := range env.fetcher.GetTransactionsPageCalls {
		if call.AccessToken == "access-acct-bad" {
			badCalls++
		}
	}
	assert.Equal(t, testRetryOptions.MaxAttempts, badCalls)

	accounts, err := env.store.GetActiveAccounts(context.Background(), "user-1")
	require.NoError(t, err)
	for _, acct := range accounts {
		switch acct.ProviderAccountID {
		case "acct-bad":
			assert.False(t, acct.IsInitialSyncComplete)
		case "acct-good":
			assert.True(t, acct.IsInitialSyncComplete)
		}
	}
}

func TestSyncFullHistoryTerminalErrorNotRetried(t *testing.T) {
	env := newTestEnv(t)
	env.linkAccount(t, "user-1", "acct-1", false)

	env.fetcher.GetTransactionsPageFn = func(_ context.Context, _ string, _, _ time.Time, _ int32) ([]model.Transaction, int32, error) {
		return nil, 0, errors.New("plaid API error: ITEM_LOGIN_REQUIRED - the login details have changed")
	}

	result, err := env.engine.Sync(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "ITEM_LOGIN_REQUIRED")

	// A hard upstream failure surfaces after a single fetch, no backoff.
	assert.Len(t, env.fetcher.GetTransactionsPageCalls, 1)

	accounts, err := env.store.GetActiveAccounts(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.False(t, accounts[0].IsInitialSyncComplete)
}

func TestSyncDispatchFullWhenAnyAccountNeedsInitial(t *testing.T) {
	env := newTestEnv(t)
	env.linkAccount(t, "user-1", "acct-done", true)
	env.linkAccount(t, "user-1", "acct-new", false)

	env.fetcher.GetTransactionsPageFn = func(_ context.Context, _ string, _, _ time.Time, _ int32) ([]model.Transaction, int32, error) {
		return nil, 0, nil
	}

	result, err := env.engine.Sync(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.SyncModeFull, result.Mode)
	// Both accounts take the full-history path; the delta API is untouched.
	assert.Len(t, env.fetcher.GetTransactionsPageCalls, 2)
	assert.Empty(t, env.fetcher.SyncTransactionsCalls)
}

func TestSyncIncrementalAppliesDelta(t *testing.T) {
	env := newTestEnv(t)
	account := env.linkAccount(t, "user-1", "acct-1", true)

	// Pre-existing rows for the modify and remove legs.
	for _, txn := range []model.Transaction{
		{ProviderID: "txn-mod", AccountID: account.ID, UserID: "user-1", Amount: 10.00, Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Description: "OLD"},
		{ProviderID: "txn-gone", AccountID: account.ID, UserID: "user-1", Amount: 5.00, Date: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC), Description: "PENDING POSTED"},
	} {
		txn := txn
		require.NoError(t, env.store.UpsertTransaction(context.Background(), &txn))
	}

	env.fetcher.SyncTransactionsFn = func(_ context.Context, _ string) (*model.TransactionDelta, error) {
		return &model.TransactionDelta{
			Added: []model.Transaction{
				historyTxn("txn-new", 10, 30.00, false),
				historyTxn("txn-new-pending", 11, 12.00, true),
				{ProviderID: "txn-old", Amount: 7.00, Date: time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC), Description: "LAST YEAR"},
			},
			Modified: []model.Transaction{
				{ProviderID: "txn-mod", Amount: 12.50, Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), Description: "NEW DESCRIPTION"},
			},
			Removed: []model.RemovedTransaction{{ProviderID: "txn-gone"}},
		}, nil
	}

	result, err := env.engine.Sync(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.SyncModeIncremental, result.Mode)
	assert.Equal(t, 1, result.Imported)
	assert.Empty(t, result.Errors)
	assert.Nil(t, result.DateRange)

	added, err := env.store.GetTransactionByProviderID(context.Background(), "txn-new")
	require.NoError(t, err)
	assert.Equal(t, account.ID, added.AccountID)

	// Pending and out-of-range additions are dropped.
	_, err = env.store.GetTransactionByProviderID(context.Background(), "txn-new-pending")
	assert.Error(t, err)
	_, err = env.store.GetTransactionByProviderID(context.Background(), "txn-old")
	assert.Error(t, err)

	modified, err := env.store.GetTransactionByProviderID(context.Background(), "txn-mod")
	require.NoError(t, err)
	assert.Equal(t, 12.50, modified.Amount)
	assert.Equal(t, "NEW DESCRIPTION", modified.Description)

	_, err = env.store.GetTransactionByProviderID(context.Background(), "txn-gone")
	assert.Error(t, err)
}

// deltaFailingStore fails every modified/removed write while delegating
// everything else to the real store.
type deltaFailingStore struct {
	service.Storage
}

func (s *deltaFailingStore) UpdateTransactionDetails(context.Context, string, string, float64, time.Time, string, string) error {
	return errors.New("disk I/O error")
}

func (s *deltaFailingStore) DeleteTransactionByProviderID(context.Context, string, string) error {
	return errors.New("disk I/O error")
}

func TestSyncIncrementalContinuesPastDeltaWriteFailures(t *testing.T) {
	env := newTestEnv(t)
	account := env.linkAccount(t, "user-1", "acct-1", true)

	seeded := model.Transaction{
		ProviderID:  "txn-mod",
		AccountID:   account.ID,
		UserID:      "user-1",
		Amount:      10.00,
		Date:        time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Description: "OLD",
	}
	require.NoError(t, env.store.UpsertTransaction(context.Background(), &seeded))

	env.fetcher.SyncTransactionsFn = func(_ context.Context, _ string) (*model.TransactionDelta, error) {
		return &model.TransactionDelta{
			Added:    []model.Transaction{historyTxn("txn-new", 10, 30.00, false)},
			Modified: []model.Transaction{{ProviderID: "txn-mod", Amount: 12.50, Date: seeded.Date, Description: "NEW"}},
			Removed:  []model.RemovedTransaction{{ProviderID: "txn-gone"}},
		}, nil
	}

	engine := New(&deltaFailingStore{Storage: env.store}, env.fetcher, env.vault,
		WithRetryOptions(testRetryOptions),
		WithClock(testClock))

	result, err := engine.Sync(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, result.Errors)

	// The added leg still lands despite the failing update/delete legs.
	assert.Equal(t, 1, result.Imported)
	added, err := env.store.GetTransactionByProviderID(context.Background(), "txn-new")
	require.NoError(t, err)
	assert.Equal(t, account.ID, added.AccountID)

	// The modified row keeps its old values and last_sync is still stamped.
	stale, err := env.store.GetTransactionByProviderID(context.Background(), "txn-mod")
	require.NoError(t, err)
	assert.Equal(t, "OLD", stale.Description)

	accounts, err := env.store.GetActiveAccounts(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	require.NotNil(t, accounts[0].LastSync)
	assert.Equal(t, testClock().Unix(), accounts[0].LastSync.Unix())
}

func TestSyncIncrementalStampsLastSyncOnEmptyDelta(t *testing.T) {
	env := newTestEnv(t)
	env.linkAccount(t, "user-1", "acct-1", true)

	result, err := env.engine.Sync(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, model.SyncModeIncremental, result.Mode)
	assert.Zero(t, result.Imported)

	accounts, err := env.store.GetActiveAccounts(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	require.NotNil(t, accounts[0].LastSync)
	assert.Equal(t, testClock().Unix(), accounts[0].LastSync.Unix())
}

func TestSyncIncrementalDeltaError(t *testing.T) {
	env := newTestEnv(t)
	env.linkAccount(t, "user-1", "acct-1", true)

	env.fetcher.SyncTransactionsFn = func(_ context.Context, _ string) (*model.TransactionDelta, error) {
		return nil, errors.New("item login required")
	}

	result, err := env.engine.Sync(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "item login required")

	// last_sync is not stamped when the delta fetch fails.
	accounts, err := env.store.GetActiveAccounts(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	lastSync := accounts[0].LastSync
	require.NotNil(t, lastSync)
	assert.NotEqual(t, testClock().Unix(), lastSync.Unix())
}

// auditFailingStore makes every audit write fail while delegating
// everything else to the real store.
type auditFailingStore struct {
	service.Storage
}

func (s *auditFailingStore) RecordAuditEvent(context.Context, *model.AuditEvent) error {
	return errors.New("audit table unavailable")
}

func TestSyncAuditFailureIsSwallowed(t *testing.T) {
	env := newTestEnv(t)
	env.linkAccount(t, "user-1", "acct-1", false)

	env.fetcher.GetTransactionsPageFn = func(_ context.Context, _ string, _, _ time.Time, _ int32) ([]model.Transaction, int32, error) {
		return []model.Transaction{historyTxn("txn-1", 1, 10.00, false)}, 1, nil
	}

	engine := New(&auditFailingStore{Storage: env.store}, env.fetcher, env.vault,
		WithRetryOptions(testRetryOptions),
		WithClock(testClock))

	result, err := engine.Sync(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	assert.Empty(t, result.Errors)

	// The import itself still landed.
	stored, storeErr := env.store.GetTransactionByProviderID(context.Background(), "txn-1")
	require.NoError(t, storeErr)
	assert.Equal(t, "user-1", stored.UserID)
}

func TestSyncBadTokenIsPerAccountError(t *testing.T) {
	env := newTestEnv(t)
	account := env.linkAccount(t, "user-1", "acct-1", false)

	// Corrupt the stored token.
	account.EncryptedAccessToken = "not-a-token"
	require.NoError(t, env.store.UpsertAccount(context.Background(), account))

	result, err := env.engine.Sync(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "acct-1")
	assert.Empty(t, env.fetcher.GetTransactionsPageCalls)
}
