package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agencytax/agencytax/internal/model"
	"github.com/agencytax/agencytax/internal/storage"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage keyword categorization rules",
		Long: `List or add keyword rules.

Rules apply to expense transactions only and are evaluated in creation
order; the first keyword found in a transaction's description or merchant
name assigns its category without calling the AI classifier.`,
		RunE: runRulesList,
	}

	cmd.AddCommand(rulesAddCmd())

	return cmd
}

func runRulesList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	rules, err := store.GetCategoryRules(ctx)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		fmt.Println("No rules yet. Add one with 'agencytax rules add <keyword> <category>'.")
		return nil
	}

	categories, err := store.GetCategories(ctx)
	if err != nil {
		return err
	}
	names := make(map[int64]string, len(categories))
	for _, cat := range categories {
		names[cat.ID] = cat.Name
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKEYWORD\tCATEGORY")
	for _, rule := range rules {
		fmt.Fprintf(w, "%d\t%s\t%s\n", rule.ID, rule.KeywordPattern, names[rule.CategoryID])
	}
	return w.Flush()
}

func rulesAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <keyword> <category>",
		Short: "Add a keyword rule",
		Args:  cobra.ExactArgs(2),
		RunE:  runRulesAdd,
	}
}

func runRulesAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	keyword, categoryName := args[0], args[1]

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	category, err := findCategoryByName(ctx, store, categoryName)
	if err != nil {
		return err
	}
	if category.Type != model.CategoryTypeExpense {
		return fmt.Errorf("rules only apply to expense transactions; %q is an income category", category.Name)
	}

	rule, err := store.CreateCategoryRule(ctx, keyword, category.ID)
	if err != nil {
		return err
	}

	fmt.Printf("Created rule %d: %q -> %s\n", rule.ID, rule.KeywordPattern, category.Name)
	return nil
}

func findCategoryByName(ctx context.Context, store *storage.SQLiteStorage, name string) (*model.Category, error) {
	categories, err := store.GetCategories(ctx)
	if err != nil {
		return nil, err
	}
	for i := range categories {
		if strings.EqualFold(categories[i].Name, name) {
			return &categories[i], nil
		}
	}
	return nil, fmt.Errorf("no category named %q; run 'agencytax categories' to list them", name)
}
