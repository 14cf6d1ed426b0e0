package storage

import (
	"context"
	"testing"
	"time"

	"github.com/agencytax/agencytax/internal/model"
	"github.com/stretchr/testify/require"
)

// newTestStorage creates a migrated in-memory database with cleanup.
func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)

	require.NoError(t, store.Migrate(context.Background()))

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// linkTestAccount inserts an active account and returns it with its ID set.
func linkTestAccount(t *testing.T, store *SQLiteStorage, userID, providerAccountID string) *model.LinkedAccount {
	t.Helper()

	account := &model.LinkedAccount{
		UserID:               userID,
		ProviderAccountID:    providerAccountID,
		EncryptedAccessToken: "aa:bb",
		Name:                 "Business Checking",
		Type:                 "depository",
		LastFour:             "4321",
	}
	require.NoError(t, store.UpsertAccount(context.Background(), account))
	return account
}

// categoryByName finds a seeded category.
func categoryByName(t *testing.T, store *SQLiteStorage, name string) model.Category {
	t.Helper()

	categories, err := store.GetCategories(context.Background())
	require.NoError(t, err)
	for _, cat := range categories {
		if cat.Name == name {
			return cat
		}
	}
	t.Fatalf("category %q not seeded", name)
	return model.Category{}
}

func testDate(day int) time.Time {
	return time.Date(2025, 3, day, 0, 0, 0, 0, time.UTC)
}
