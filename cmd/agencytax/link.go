package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func linkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "link [public-token]",
		Short: "Link a bank account through the aggregator",
		Long: `Link a bank account in two steps.

Run without arguments to create a link token, open the aggregator's Link
flow with it, and copy the public token it hands back. Then run again with
that public token to register the accounts it unlocks.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runLink,
	}
}

func runLink(cmd *cobra.Command, args []string) error {
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

	if len(args) == 0 {
		token, tokenErr := engine.CreateLinkToken(ctx, userID)
		if tokenErr != nil {
			return tokenErr
		}
		fmt.Printf("Link token: %s\n", token)
		fmt.Println("Complete the Link flow, then run: agencytax link <public-token>")
		return nil
	}

	linked, err := engine.LinkAccount(ctx, userID, args[0])
	if err != nil {
		return err
	}
	if len(linked) == 0 {
		slog.Warn("No accounts were linked")
		return nil
	}

	for _, account := range linked {
		fmt.Printf("Linked %s (%s ****%s)\n", account.Name, account.Type, account.LastFour)
	}
	fmt.Println("Run 'agencytax sync' to import transactions.")
	return nil
}
