package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/agencytax/agencytax/internal/aggregator"
	"github.com/agencytax/agencytax/internal/config"
	"github.com/agencytax/agencytax/internal/ingest"
	"github.com/agencytax/agencytax/internal/llm"
	"github.com/agencytax/agencytax/internal/storage"
	"github.com/agencytax/agencytax/internal/vault"
)

// initStorage opens the database and brings the schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/agencytax/agencytax.db"
	}

	// Expand tilde and environment variables
	dbPath = config.ExpandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initVault builds the token vault from the configured hex key.
func initVault() (*vault.Vault, error) {
	keyHex := viper.GetString("vault.key")
	if keyHex == "" {
		return nil, fmt.Errorf("vault.key is required (64 hex characters, AGENCYTAX_VAULT_KEY)")
	}

	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("vault.key is not valid hex: %w", err)
	}

	return vault.New(key)
}

// initFetcher builds the aggregator client from config.
func initFetcher() (aggregator.Fetcher, error) {
	cfg := aggregator.Config{
		ClientID:    viper.GetString("aggregator.client_id"),
		Secret:      viper.GetString("aggregator.secret"),
		Environment: viper.GetString("aggregator.environment"),
		ClientName:  "AgencyTax",
	}
	if cfg.Environment == "" {
		cfg.Environment = "sandbox"
	}

	return aggregator.NewClient(cfg)
}

// initClassifier builds the LLM classifier from config.
func initClassifier() (*llm.Classifier, error) {
	cfg := llm.Config{
		Provider: viper.GetString("llm.provider"),
		APIKey:   viper.GetString("llm.api_key"),
		Model:    viper.GetString("llm.model"),
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm.api_key is required (AGENCYTAX_LLM_API_KEY)")
	}

	return llm.NewClassifier(cfg)
}

// initIngestEngine wires storage, vault and aggregator into the sync engine.
func initIngestEngine(store *storage.SQLiteStorage) (*ingest.Engine, error) {
	v, err := initVault()
	if err != nil {
		return nil, err
	}

	fetcher, err := initFetcher()
	if err != nil {
		return nil, err
	}

	var opts []ingest.Option
	if start := viper.GetString("sync.history_start"); start != "" {
		t, parseErr := parseDate(start)
		if parseErr != nil {
			return nil, fmt.Errorf("invalid sync.history_start: %w", parseErr)
		}
		opts = append(opts, ingest.WithHistoryStart(t))
	}

	return ingest.New(store, fetcher, v, opts...), nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// requireUser returns the user ID the command operates on.
func requireUser() (string, error) {
	userID := viper.GetString("user")
	if userID == "" {
		return "", fmt.Errorf("a user ID is required: pass --user or set AGENCYTAX_USER")
	}
	return userID, nil
}
