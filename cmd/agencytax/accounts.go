package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func accountsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List linked bank accounts",
		RunE:  runAccounts,
	}

	cmd.Flags().Int64("disconnect", 0, "disconnect the account with this ID instead of listing")

	return cmd
}

func runAccounts(cmd *cobra.Command, _ []string) error {
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

	if accountID, _ := cmd.Flags().GetInt64("disconnect"); accountID != 0 {
		engine, engineErr := initIngestEngine(store)
		if engineErr != nil {
			return engineErr
		}
		if err := engine.DisconnectAccount(ctx, userID, accountID); err != nil {
			return err
		}
		fmt.Printf("Account %d disconnected. Its transactions are kept.\n", accountID)
		return nil
	}

	accounts, err := store.GetActiveAccounts(ctx, userID)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Println("No linked accounts. Run 'agencytax link' to add one.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tLAST FOUR\tTRANSACTIONS\tINITIAL SYNC\tLAST SYNC")
	for _, account := range accounts {
		count, countErr := store.CountTransactionsByAccount(ctx, account.ID)
		if countErr != nil {
			return countErr
		}
		lastSync := "never"
		if account.LastSync != nil {
			lastSync = account.LastSync.Format("2006-01-02 15:04")
		}
		initial := "pending"
		if account.IsInitialSyncComplete {
			initial = "done"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t****%s\t%d\t%s\t%s\n",
			account.ID, account.Name, account.Type, account.LastFour, count, initial, lastSync)
	}
	return w.Flush()
}
