// Package engine implements rule-then-AI categorization of imported
// transactions. A deterministic keyword pass runs first; anything it cannot
// place is sent to the configured classifier and the answer is reconciled
// against the tax taxonomy.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/agencytax/agencytax/internal/model"
	"github.com/agencytax/agencytax/internal/service"
)

// DefaultBatchSize caps how many uncategorized transactions a single
// Categorize call processes.
const DefaultBatchSize = 200

// Engine categorizes uncategorized transactions for a user.
type Engine struct {
	store      service.Storage
	classifier service.Classifier
	pacer      Pacer
	logger     *slog.Logger
	batchSize  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithBatchSize overrides the per-run transaction cap.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithPacer overrides the delay applied between classifier calls.
func WithPacer(p Pacer) Option {
	return func(e *Engine) {
		if p != nil {
			e.pacer = p
		}
	}
}

// WithLogger sets the logger used for per-transaction diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates a categorization engine backed by store and classifier.
func New(store service.Storage, classifier service.Classifier, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		classifier: classifier,
		pacer:      NewFixedDelayPacer(DefaultClassifierDelay),
		logger:     slog.Default(),
		batchSize:  DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Categorize processes up to the batch size of uncategorized transactions
// for userID. Per-transaction failures are collected into the result rather
// than aborting the batch; only failures to read the batch, taxonomy, or
// rules are returned as errors.
func (e *Engine) Categorize(ctx context.Context, userID string) (model.CategorizeResult, error) {
	var result model.CategorizeResult

	txns, err := e.store.GetUncategorizedTransactions(ctx, userID, e.batchSize)
	if err != nil {
		return result, fmt.Errorf("loading uncategorized transactions: %w", err)
	}
	result.Total = len(txns)
	if len(txns) == 0 {
		return result, nil
	}

	categories, err := e.store.GetCategories(ctx)
	if err != nil {
		return result, fmt.Errorf("loading categories: %w", err)
	}
	rules, err := e.store.GetCategoryRules(ctx)
	if err != nil {
		return result, fmt.Errorf("loading category rules: %w", err)
	}

	matcher := NewRuleMatcher(rules)
	byDirection := splitByDirection(categories)

	for _, txn := range txns {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := e.categorizeOne(ctx, matcher, byDirection, txn); err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Categorized++
	}

	e.logger.Info("categorization run complete",
		"user_id", userID,
		"total", result.Total,
		"categorized", result.Categorized,
		"errors", len(result.Errors))
	return result, nil
}

// directionIndex holds taxonomy lookups scoped to one transaction direction.
type directionIndex struct {
	resolver *CategoryResolver
	names    []string
}

func splitByDirection(categories []model.Category) map[model.TransactionDirection]directionIndex {
	split := make(map[model.TransactionDirection][]model.Category, 2)
	for _, cat := range categories {
		var dir model.TransactionDirection
		switch cat.Type {
		case model.CategoryTypeIncome:
			dir = model.DirectionIncome
		case model.CategoryTypeExpense:
			dir = model.DirectionExpense
		default:
			continue
		}
		split[dir] = append(split[dir], cat)
	}

	index := make(map[model.TransactionDirection]directionIndex, len(split))
	for dir, cats := range split {
		names := make([]string, 0, len(cats))
		for _, cat := range cats {
			names = append(names, cat.Name)
		}
		index[dir] = directionIndex{resolver: NewCategoryResolver(cats), names: names}
	}
	return index
}

func (e *Engine) categorizeOne(ctx context.Context, matcher *RuleMatcher, byDirection map[model.TransactionDirection]directionIndex, txn model.Transaction) error {
	if categoryID, ok := matcher.Match(txn); ok {
		if err := e.store.AssignCategory(ctx, txn.ProviderID, categoryID); err != nil {
			return fmt.Errorf("transaction %s: assigning rule match: %v", txn.ProviderID, err)
		}
		e.logger.Debug("rule matched transaction",
			"provider_id", txn.ProviderID,
			"category_id", categoryID)
		return nil
	}

	direction := txn.Direction()
	index, ok := byDirection[direction]
	if !ok || len(index.names) == 0 {
		return fmt.Errorf("transaction %s: no categories available for %s", txn.ProviderID, direction)
	}

	if err := e.pacer.Wait(ctx); err != nil {
		return fmt.Errorf("transaction %s: %v", txn.ProviderID, err)
	}

	predicted, err := e.classifier.ClassifyTransaction(ctx, txn.Description, txn.MerchantName, math.Abs(txn.Amount), direction, index.names)
	if err != nil {
		return fmt.Errorf("transaction %s: classifier: %v", txn.ProviderID, err)
	}

	categoryID, ok := index.resolver.Resolve(predicted)
	if !ok {
		return fmt.Errorf("transaction %s: no category match for %q", txn.ProviderID, predicted)
	}

	if err := e.store.AssignCategory(ctx, txn.ProviderID, categoryID); err != nil {
		return fmt.Errorf("transaction %s: assigning category: %v", txn.ProviderID, err)
	}
	e.logger.Debug("classifier categorized transaction",
		"provider_id", txn.ProviderID,
		"predicted", predicted,
		"category_id", categoryID)
	return nil
}
