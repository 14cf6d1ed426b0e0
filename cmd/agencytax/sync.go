package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/agencytax/agencytax/internal/model"
)

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull transactions from linked bank accounts",
		Long: `Reconcile every active account with the aggregator.

Accounts syncing for the first time get their full history pulled; after
that only the aggregator's delta is applied. One failing account does not
block the others.`,
		RunE: runSync,
	}
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	userID, err := requireUser()
	if err != nil {
		return err
	}

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	engine, err := initIngestEngine(store)
	if err != nil {
		return err
	}

	result, err := engine.Sync(ctx, userID)
	if err != nil {
		return err
	}

	switch result.Mode {
	case model.SyncModeNone:
		fmt.Println("No linked accounts to sync. Run 'agencytax link' first.")
		return nil
	case model.SyncModeFull:
		fmt.Printf("Full history sync: %d transactions imported across %d accounts (%s to %s)\n",
			result.Imported, result.Accounts,
			result.DateRange.Start.Format("2006-01-02"),
			result.DateRange.End.Format("2006-01-02"))
	case model.SyncModeIncremental:
		fmt.Printf("Incremental sync: %d new transactions across %d accounts\n",
			result.Imported, result.Accounts)
	}

	for _, syncErr := range result.Errors {
		slog.Warn("Account failed to sync", "error", syncErr)
	}
	if len(result.Errors) > 0 {
		fmt.Printf("%d accounts had errors; run again or check the logs.\n", len(result.Errors))
	}

	return nil
}
