package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS linked_accounts (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					provider_account_id TEXT UNIQUE NOT NULL,
					encrypted_access_token TEXT NOT NULL,
					account_name TEXT NOT NULL,
					account_type TEXT,
					last_four TEXT,
					is_active INTEGER NOT NULL DEFAULT 1,
					is_initial_sync_complete INTEGER NOT NULL DEFAULT 0,
					last_sync DATETIME,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_linked_accounts_user ON linked_accounts(user_id)`,

				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT UNIQUE NOT NULL,
					type TEXT NOT NULL CHECK (type IN ('INCOME', 'EXPENSE')),
					is_deductible INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,

				`CREATE TABLE IF NOT EXISTS category_rules (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					keyword_pattern TEXT NOT NULL,
					category_id INTEGER NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (category_id) REFERENCES categories(id)
				)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					provider_transaction_id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					account_id INTEGER NOT NULL,
					amount REAL NOT NULL,
					transaction_date DATETIME NOT NULL,
					description TEXT NOT NULL,
					merchant_name TEXT,
					category_id INTEGER,
					is_reviewed INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (account_id) REFERENCES linked_accounts(id),
					FOREIGN KEY (category_id) REFERENCES categories(id)
				)`,
				`CREATE INDEX idx_transactions_user ON transactions(user_id)`,
				`CREATE INDEX idx_transactions_account ON transactions(account_id)`,
				`CREATE INDEX idx_transactions_date ON transactions(transaction_date)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add audit log table",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS audit_logs (
					id TEXT PRIMARY KEY,
					actor_user_id TEXT NOT NULL,
					action TEXT NOT NULL,
					table_name TEXT,
					record_id TEXT,
					metadata TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_audit_logs_actor ON audit_logs(actor_user_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Seed default tax taxonomy",
		Up: func(tx *sql.Tx) error {
			seed := []struct {
				name       string
				ctype      string
				deductible bool
			}{
				{"Sales Revenue", "INCOME", false},
				{"Consulting Income", "INCOME", false},
				{"Interest Income", "INCOME", false},
				{"Other Income", "INCOME", false},
				{"Advertising & Marketing", "EXPENSE", true},
				{"Software", "EXPENSE", true},
				{"Office Supplies", "EXPENSE", true},
				{"Travel", "EXPENSE", true},
				{"Meals & Entertainment", "EXPENSE", true},
				{"Professional Services", "EXPENSE", true},
				{"Rent & Utilities", "EXPENSE", true},
				{"Insurance", "EXPENSE", true},
				{"Bank Fees", "EXPENSE", true},
				{"Payroll", "EXPENSE", true},
				{"Other Expenses", "EXPENSE", false},
			}

			stmt, err := tx.Prepare(`INSERT OR IGNORE INTO categories (name, type, is_deductible) VALUES (?, ?, ?)`)
			if err != nil {
				return fmt.Errorf("failed to prepare seed statement: %w", err)
			}
			defer func() { _ = stmt.Close() }()

			for _, cat := range seed {
				if _, err := stmt.Exec(cat.name, cat.ctype, cat.deductible); err != nil {
					return fmt.Errorf("failed to seed category %q: %w", cat.name, err)
				}
			}
			return nil
		},
	},
}

// Migrate applies any pending schema migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion reports the database's current schema version without
// applying migrations.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
