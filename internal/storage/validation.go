package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agencytax/agencytax/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidAccount     = errors.New("invalid linked account")
	ErrDirectionMismatch  = errors.New("category type does not match transaction direction")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateTransaction validates a transaction before persistence.
func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ProviderID == "" {
		return fmt.Errorf("%w: missing provider ID", ErrInvalidTransaction)
	}
	if txn.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	if txn.Pending {
		return fmt.Errorf("%w: pending transactions are never persisted", ErrInvalidTransaction)
	}
	return nil
}

// validateAccount validates a linked account before persistence.
func validateAccount(account *model.LinkedAccount) error {
	if account == nil {
		return fmt.Errorf("%w: account", ErrNilParameter)
	}
	if account.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidAccount)
	}
	if account.ProviderAccountID == "" {
		return fmt.Errorf("%w: missing provider account ID", ErrInvalidAccount)
	}
	return nil
}
