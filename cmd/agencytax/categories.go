package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agencytax/agencytax/internal/model"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage the tax category taxonomy",
		RunE:  runCategoriesList,
	}

	cmd.AddCommand(categoriesAddCmd())

	return cmd
}

func runCategoriesList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	categories, err := store.GetCategories(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tDEDUCTIBLE")
	for _, cat := range categories {
		deductible := ""
		if cat.IsDeductible {
			deductible = "yes"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", cat.ID, cat.Name, cat.Type, deductible)
	}
	return w.Flush()
}

func categoriesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a category to the taxonomy",
		Args:  cobra.ExactArgs(1),
		RunE:  runCategoriesAdd,
	}

	cmd.Flags().String("type", "expense", "category type (income, expense)")
	cmd.Flags().Bool("deductible", false, "mark the category as tax deductible")

	return cmd
}

func runCategoriesAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var categoryType model.CategoryType
	switch typeFlag, _ := cmd.Flags().GetString("type"); strings.ToLower(typeFlag) {
	case "income":
		categoryType = model.CategoryTypeIncome
	case "expense":
		categoryType = model.CategoryTypeExpense
	default:
		return fmt.Errorf("invalid category type %q: must be income or expense", typeFlag)
	}
	deductible, _ := cmd.Flags().GetBool("deductible")

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	category, err := store.CreateCategory(ctx, args[0], categoryType, deductible)
	if err != nil {
		return err
	}

	fmt.Printf("Created category %d: %s (%s)\n", category.ID, category.Name, category.Type)
	return nil
}
