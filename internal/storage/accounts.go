package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/agencytax/agencytax/internal/common"
	"github.com/agencytax/agencytax/internal/model"
)

// UpsertAccount inserts a linked account or refreshes its token and
// metadata when the provider account is already known.
func (s *SQLiteStorage) UpsertAccount(ctx context.Context, account *model.LinkedAccount) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAccount(account); err != nil {
		return err
	}

	query := `
		INSERT INTO linked_accounts (
			user_id, provider_account_id, encrypted_access_token,
			account_name, account_type, last_four
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider_account_id) DO UPDATE SET
			encrypted_access_token = excluded.encrypted_access_token,
			account_name = excluded.account_name,
			account_type = excluded.account_type,
			last_four = excluded.last_four,
			is_active = 1,
			updated_at = CURRENT_TIMESTAMP`

	if _, err := s.db.ExecContext(ctx, query,
		account.UserID,
		account.ProviderAccountID,
		account.EncryptedAccessToken,
		account.Name,
		account.Type,
		account.LastFour,
	); err != nil {
		return fmt.Errorf("failed to upsert account %s: %w", account.ProviderAccountID, err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id FROM linked_accounts WHERE provider_account_id = ?`,
		account.ProviderAccountID)
	if err := row.Scan(&account.ID); err != nil {
		return fmt.Errorf("failed to read back account id: %w", err)
	}

	return nil
}

// GetAccountByID returns one of the user's linked accounts.
func (s *SQLiteStorage) GetAccountByID(ctx context.Context, userID string, accountID int64) (*model.LinkedAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	query := accountSelect + ` WHERE id = ? AND user_id = ?`

	account, err := scanAccount(s.db.QueryRowContext(ctx, query, accountID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %d: %w", accountID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}

	return account, nil
}

// GetActiveAccounts returns all active linked accounts for a user.
func (s *SQLiteStorage) GetActiveAccounts(ctx context.Context, userID string) ([]model.LinkedAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	query := accountSelect + ` WHERE user_id = ? AND is_active = 1 ORDER BY account_name`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.LinkedAccount
	for rows.Next() {
		account, scanErr := scanAccount(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan account: %w", scanErr)
		}
		accounts = append(accounts, *account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// CountAccountsNeedingInitialSync counts the user's active accounts that
// have not completed their full-history pull yet.
func (s *SQLiteStorage) CountAccountsNeedingInitialSync(ctx context.Context, userID string) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM linked_accounts
		WHERE user_id = ? AND is_active = 1 AND is_initial_sync_complete = 0`,
		userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count accounts needing initial sync: %w", err)
	}

	return count, nil
}

// MarkInitialSyncComplete records that the full-history pull for an
// account finished successfully and stamps last_sync.
func (s *SQLiteStorage) MarkInitialSyncComplete(ctx context.Context, accountID int64, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE linked_accounts
		SET is_initial_sync_complete = 1, last_sync = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		at, accountID)
	if err != nil {
		return fmt.Errorf("failed to mark initial sync complete: %w", err)
	}

	return requireRowAffected(result, accountID)
}

// TouchLastSync stamps last_sync on an account.
func (s *SQLiteStorage) TouchLastSync(ctx context.Context, accountID int64, at time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE linked_accounts
		SET last_sync = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		at, accountID)
	if err != nil {
		return fmt.Errorf("failed to update last sync: %w", err)
	}

	return requireRowAffected(result, accountID)
}

// DeactivateAccount soft-deletes a linked account. Historical
// transactions are preserved.
func (s *SQLiteStorage) DeactivateAccount(ctx context.Context, userID string, accountID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE linked_accounts
		SET is_active = 0, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND user_id = ?`,
		accountID, userID)
	if err != nil {
		return fmt.Errorf("failed to deactivate account: %w", err)
	}

	return requireRowAffected(result, accountID)
}

const accountSelect = `
	SELECT id, user_id, provider_account_id, encrypted_access_token,
	       account_name, account_type, last_four,
	       is_active, is_initial_sync_complete, last_sync,
	       created_at, updated_at
	FROM linked_accounts`

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*model.LinkedAccount, error) {
	var account model.LinkedAccount
	var accountType, lastFour sql.NullString
	var lastSync sql.NullTime

	err := row.Scan(
		&account.ID,
		&account.UserID,
		&account.ProviderAccountID,
		&account.EncryptedAccessToken,
		&account.Name,
		&accountType,
		&lastFour,
		&account.IsActive,
		&account.IsInitialSyncComplete,
		&lastSync,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	account.Type = accountType.String
	account.LastFour = lastFour.String
	if lastSync.Valid {
		account.LastSync = &lastSync.Time
	}

	return &account, nil
}

func requireRowAffected(result sql.Result, accountID int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("account %d: %w", accountID, common.ErrNotFound)
	}
	return nil
}
