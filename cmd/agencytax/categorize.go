package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/agencytax/agencytax/internal/engine"
)

func categorizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categorize",
		Short: "Categorize imported transactions",
		Long: `Run the categorization pass over uncategorized transactions.

Keyword rules are tried first; anything they miss goes to the configured
AI classifier. Every assignment is left unreviewed so it can be checked
before filing.`,
		RunE: runCategorize,
	}

	cmd.Flags().Int("batch-size", engine.DefaultBatchSize, "maximum transactions to process in one run")

	return cmd
}

func runCategorize(cmd *cobra.Command, _ []string) error {
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

	classifier, err := initClassifier()
	if err != nil {
		return err
	}

	batchSize, _ := cmd.Flags().GetInt("batch-size")
	eng := engine.New(store, classifier, engine.WithBatchSize(batchSize))

	result, err := eng.Categorize(ctx, userID)
	if err != nil {
		return err
	}

	if result.Total == 0 {
		fmt.Println("Nothing to categorize.")
		return nil
	}

	fmt.Printf("Categorized %d of %d transactions\n", result.Categorized, result.Total)
	for _, catErr := range result.Errors {
		slog.Warn("Transaction not categorized", "error", catErr)
	}
	if remaining := result.Total - result.Categorized; remaining > 0 {
		fmt.Printf("%d transactions still need attention; add rules or run again.\n", remaining)
	}

	return nil
}
