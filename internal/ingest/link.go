package ingest

import (
	"context"
	"fmt"

	"github.com/agencytax/agencytax/internal/model"
)

// CreateLinkToken starts the aggregator's account-linking flow and returns
// the short-lived token the link UI needs.
func (e *Engine) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	token, err := e.fetcher.CreateLinkToken(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("creating link token: %w", err)
	}
	return token, nil
}

// LinkAccount completes the linking flow: the public token from the link UI
// is exchanged for a long-lived access token, the token is encrypted at
// rest, and every account reachable through it is registered for the user.
// Accounts that fail to persist are skipped so one bad row does not lose
// the rest of the item.
func (e *Engine) LinkAccount(ctx context.Context, userID, publicToken string) ([]model.LinkedAccount, error) {
	accessToken, itemID, err := e.fetcher.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return nil, fmt.Errorf("exchanging public token: %w", err)
	}

	encrypted, err := e.vault.Encrypt(accessToken)
	if err != nil {
		return nil, fmt.Errorf("encrypting access token: %w", err)
	}

	accounts, err := e.fetcher.GetAccounts(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}

	var linked []model.LinkedAccount
	for _, acct := range accounts {
		account := model.LinkedAccount{
			UserID:               userID,
			ProviderAccountID:    acct.ProviderAccountID,
			EncryptedAccessToken: encrypted,
			Name:                 acct.Name,
			Type:                 acct.Type,
			LastFour:             acct.LastFour,
		}
		if err := e.store.UpsertAccount(ctx, &account); err != nil {
			e.logger.Warn("skipping account that failed to persist",
				"provider_account_id", acct.ProviderAccountID,
				"error", err)
			continue
		}
		linked = append(linked, account)

		e.recordAudit(ctx, &account, model.AuditActionLinkedBank, map[string]any{
			"item_id":   itemID,
			"name":      acct.Name,
			"last_four": acct.LastFour,
		})
	}

	e.logger.Info("linked bank item",
		"user_id", userID,
		"item_id", itemID,
		"accounts", len(linked))
	return linked, nil
}

// DisconnectAccount soft-deletes a linked account. Transactions already
// imported stay in place; the account just stops syncing.
func (e *Engine) DisconnectAccount(ctx context.Context, userID string, accountID int64) error {
	account, err := e.store.GetAccountByID(ctx, userID, accountID)
	if err != nil {
		return fmt.Errorf("loading account: %w", err)
	}

	if err := e.store.DeactivateAccount(ctx, userID, accountID); err != nil {
		return fmt.Errorf("deactivating account: %w", err)
	}

	e.recordAudit(ctx, account, model.AuditActionDisconnectBank, map[string]any{
		"name":      account.Name,
		"last_four": account.LastFour,
	})
	return nil
}
