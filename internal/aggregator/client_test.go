package aggregator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/agencytax/agencytax/internal/common"
	"github.com/agencytax/agencytax/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		errMsg  string
		config  Config
		wantErr bool
	}{
		{
			name: "valid sandbox config",
			config: Config{
				ClientID:    "test-client-id",
				Secret:      "test-secret",
				Environment: "sandbox",
			},
			wantErr: false,
		},
		{
			name: "valid production config",
			config: Config{
				ClientID:    "test-client-id",
				Secret:      "test-secret",
				Environment: "production",
			},
			wantErr: false,
		},
		{
			name: "missing client ID",
			config: Config{
				Secret:      "test-secret",
				Environment: "sandbox",
			},
			wantErr: true,
			errMsg:  "plaid client ID is required",
		},
		{
			name: "missing secret",
			config: Config{
				ClientID:    "test-client-id",
				Environment: "sandbox",
			},
			wantErr: true,
			errMsg:  "plaid secret is required",
		},
		{
			name: "missing environment",
			config: Config{
				ClientID: "test-client-id",
				Secret:   "test-secret",
			},
			wantErr: true,
			errMsg:  "plaid environment is required",
		},
		{
			name: "invalid environment",
			config: Config{
				ClientID:    "test-client-id",
				Secret:      "test-secret",
				Environment: "development",
			},
			wantErr: true,
			errMsg:  "invalid Plaid environment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewClient_RejectsInvalidConfig(t *testing.T) {
	_, err := NewClient(Config{ClientID: "id"})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrMissingConfig)
}

func TestGetTransactionsPage_RejectsInvertedDateRange(t *testing.T) {
	client, err := NewClient(Config{
		ClientID:    "test-client-id",
		Secret:      "test-secret",
		Environment: "sandbox",
	})
	require.NoError(t, err)

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_, _, err = client.GetTransactionsPage(context.Background(), "access-token", start, end, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start date must be before end date")
}

func TestMockFetcher_TracksCalls(t *testing.T) {
	mock := NewMockFetcher()
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	_, _, err := mock.GetTransactionsPage(context.Background(), "token-a", start, end, 500)
	require.NoError(t, err)
	_, err = mock.SyncTransactions(context.Background(), "token-b")
	require.NoError(t, err)

	require.Len(t, mock.GetTransactionsPageCalls, 1)
	assert.Equal(t, "token-a", mock.GetTransactionsPageCalls[0].AccessToken)
	assert.Equal(t, int32(500), mock.GetTransactionsPageCalls[0].Offset)
	assert.Equal(t, []string{"token-b"}, mock.SyncTransactionsCalls)

	mock.Reset()
	assert.Empty(t, mock.GetTransactionsPageCalls)
	assert.Empty(t, mock.SyncTransactionsCalls)
}

func TestWrapPlaidError_TerminalErrorIsNotRetryable(t *testing.T) {
	err := wrapPlaidError("failed to fetch transactions", errors.New("ITEM_LOGIN_REQUIRED: the login details have changed"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ITEM_LOGIN_REQUIRED")

	// Terminal upstream failures must not be waited out.
	assert.False(t, common.IsRetryable(err))

	var retryable *common.RetryableError
	require.True(t, errors.As(err, &retryable))
	assert.False(t, retryable.Retryable)
}

func TestMockFetcher_NotReadyErrorIsRetryable(t *testing.T) {
	mock := NewMockFetcher()
	mock.GetTransactionsPageFn = func(_ context.Context, _ string, _, _ time.Time, _ int32) ([]model.Transaction, int32, error) {
		return nil, 0, &common.RetryableError{
			Err:       common.ErrAggregatorNotReady,
			Retryable: true,
		}
	}

	_, _, err := mock.GetTransactionsPage(context.Background(), "token", time.Now().AddDate(0, -1, 0), time.Now(), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrAggregatorNotReady))
	assert.True(t, common.IsRetryable(err))
}
