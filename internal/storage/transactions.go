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

// UpsertTransaction inserts a transaction or, when the provider ID is
// already known, refreshes amount, date, description and merchant name.
// The assigned category and reviewed flag are left untouched on conflict
// so a re-sync never discards categorization work.
func (s *SQLiteStorage) UpsertTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	query := `
		INSERT INTO transactions (
			provider_transaction_id, user_id, account_id,
			amount, transaction_date, description, merchant_name
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider_transaction_id) DO UPDATE SET
			amount = excluded.amount,
			transaction_date = excluded.transaction_date,
			description = excluded.description,
			merchant_name = excluded.merchant_name,
			updated_at = CURRENT_TIMESTAMP`

	merchant := sql.NullString{String: txn.MerchantName, Valid: txn.MerchantName != ""}

	if _, err := s.db.ExecContext(ctx, query,
		txn.ProviderID,
		txn.UserID,
		txn.AccountID,
		txn.Amount,
		txn.Date,
		txn.Description,
		merchant,
	); err != nil {
		return fmt.Errorf("failed to upsert transaction %s: %w", txn.ProviderID, err)
	}

	return nil
}

// UpdateTransactionDetails applies a modified delta to an existing
// transaction, scoped to the owning user, and bumps updated_at.
func (s *SQLiteStorage) UpdateTransactionDetails(ctx context.Context, providerID, userID string, amount float64, date time.Time, description, merchantName string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(providerID, "providerID"); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}

	merchant := sql.NullString{String: merchantName, Valid: merchantName != ""}

	_, err := s.db.ExecContext(ctx, `
		UPDATE transactions
		SET amount = ?, transaction_date = ?, description = ?, merchant_name = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE provider_transaction_id = ? AND user_id = ?`,
		amount, date, description, merchant, providerID, userID)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", providerID, err)
	}

	return nil
}

// DeleteTransactionByProviderID hard-deletes a transaction the aggregator
// reported as removed, scoped to the owning user.
func (s *SQLiteStorage) DeleteTransactionByProviderID(ctx context.Context, providerID, userID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(providerID, "providerID"); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM transactions
		WHERE provider_transaction_id = ? AND user_id = ?`,
		providerID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", providerID, err)
	}

	return nil
}

// GetTransactionByProviderID returns a single transaction by its natural key.
func (s *SQLiteStorage) GetTransactionByProviderID(ctx context.Context, providerID string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(providerID, "providerID"); err != nil {
		return nil, err
	}

	query := transactionSelect + ` WHERE provider_transaction_id = ?`

	txn, err := scanTransaction(s.db.QueryRowContext(ctx, query, providerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", providerID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction: %w", err)
	}

	return txn, nil
}

// GetUncategorizedTransactions returns up to limit transactions without a
// category, oldest first, scoped to a user.
func (s *SQLiteStorage) GetUncategorizedTransactions(ctx context.Context, userID string, limit int) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}

	query := transactionSelect + `
		WHERE user_id = ? AND category_id IS NULL
		ORDER BY transaction_date, provider_transaction_id
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query uncategorized transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, scanErr := scanTransaction(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", scanErr)
		}
		transactions = append(transactions, *txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// AssignCategory sets a transaction's category and forces is_reviewed to
// false: an auto-assigned category always needs human confirmation.
// The category's type must match the transaction's direction.
func (s *SQLiteStorage) AssignCategory(ctx context.Context, providerID string, categoryID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(providerID, "providerID"); err != nil {
		return err
	}

	txn, err := s.GetTransactionByProviderID(ctx, providerID)
	if err != nil {
		return err
	}

	category, err := s.GetCategoryByID(ctx, categoryID)
	if err != nil {
		return err
	}

	if !category.MatchesDirection(txn.Direction()) {
		return fmt.Errorf("%w: %s category %q for %s transaction %s",
			ErrDirectionMismatch, category.Type, category.Name, txn.Direction(), providerID)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE transactions
		SET category_id = ?, is_reviewed = 0, updated_at = CURRENT_TIMESTAMP
		WHERE provider_transaction_id = ?`,
		categoryID, providerID)
	if err != nil {
		return fmt.Errorf("failed to assign category to transaction %s: %w", providerID, err)
	}

	return nil
}

// CountTransactionsByAccount counts the transactions stored for an account.
func (s *SQLiteStorage) CountTransactionsByAccount(ctx context.Context, accountID int64) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE account_id = ?`,
		accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	return count, nil
}

const transactionSelect = `
	SELECT provider_transaction_id, user_id, account_id,
	       amount, transaction_date, description, merchant_name,
	       category_id, is_reviewed, created_at, updated_at
	FROM transactions`

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var merchant sql.NullString
	var categoryID sql.NullInt64

	err := row.Scan(
		&txn.ProviderID,
		&txn.UserID,
		&txn.AccountID,
		&txn.Amount,
		&txn.Date,
		&txn.Description,
		&merchant,
		&categoryID,
		&txn.IsReviewed,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	txn.MerchantName = merchant.String
	if categoryID.Valid {
		txn.CategoryID = &categoryID.Int64
	}

	return &txn, nil
}
