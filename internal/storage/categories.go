package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/agencytax/agencytax/internal/common"
	"github.com/agencytax/agencytax/internal/model"
)

// GetCategories returns the full taxonomy. Row order is insertion order;
// the categorization engine's name index inherits it.
func (s *SQLiteStorage) GetCategories(ctx context.Context) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, is_deductible, created_at
		FROM categories`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		var cat model.Category
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Type, &cat.IsDeductible, &cat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}

// GetCategoryByID returns a single category.
func (s *SQLiteStorage) GetCategoryByID(ctx context.Context, id int64) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var cat model.Category
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, type, is_deductible, created_at
		FROM categories
		WHERE id = ?`, id).Scan(&cat.ID, &cat.Name, &cat.Type, &cat.IsDeductible, &cat.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}

	return &cat, nil
}

// CreateCategory adds a taxonomy row.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, name string, categoryType model.CategoryType, deductible bool) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}
	if categoryType != model.CategoryTypeIncome && categoryType != model.CategoryTypeExpense {
		return nil, fmt.Errorf("invalid category type: %s", categoryType)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (name, type, is_deductible)
		VALUES (?, ?, ?)`,
		name, string(categoryType), deductible)
	if err != nil {
		return nil, fmt.Errorf("failed to create category %q: %w", name, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get category id: %w", err)
	}

	return s.GetCategoryByID(ctx, id)
}

// GetCategoryRules returns all rules in stored order. The first matching
// rule wins, so order is significant.
func (s *SQLiteStorage) GetCategoryRules(ctx context.Context) ([]model.CategoryRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, keyword_pattern, category_id, created_at
		FROM category_rules
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query category rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.CategoryRule
	for rows.Next() {
		var rule model.CategoryRule
		if err := rows.Scan(&rule.ID, &rule.KeywordPattern, &rule.CategoryID, &rule.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category rule: %w", err)
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating category rules: %w", err)
	}

	return rules, nil
}

// CreateCategoryRule appends a keyword rule for a category.
func (s *SQLiteStorage) CreateCategoryRule(ctx context.Context, keywordPattern string, categoryID int64) (*model.CategoryRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(keywordPattern, "keywordPattern"); err != nil {
		return nil, err
	}

	if _, err := s.GetCategoryByID(ctx, categoryID); err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO category_rules (keyword_pattern, category_id)
		VALUES (?, ?)`,
		keywordPattern, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to create category rule: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get rule id: %w", err)
	}

	var rule model.CategoryRule
	err = s.db.QueryRowContext(ctx, `
		SELECT id, keyword_pattern, category_id, created_at
		FROM category_rules
		WHERE id = ?`, id).Scan(&rule.ID, &rule.KeywordPattern, &rule.CategoryID, &rule.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to read back rule: %w", err)
	}

	return &rule, nil
}
