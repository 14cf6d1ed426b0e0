package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agencytax/agencytax/internal/model"
	"github.com/agencytax/agencytax/internal/service"
)

const systemPrompt = "You are a precise categorization assistant. Return ONLY the exact category name from the list provided. No extra text."

// Config holds configuration for the LLM classifier.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Classifier implements service.Classifier using an LLM provider.
type Classifier struct {
	client Client
	logger *slog.Logger
}

// NewClassifier creates a new LLM-based classifier.
func NewClassifier(cfg Config) (*Classifier, error) {
	var client Client
	var err error

	switch strings.ToLower(cfg.Provider) {
	case "openai", "":
		client, err = newOpenAIClient(cfg)
	case "anthropic":
		client, err = newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	return &Classifier{
		client: client,
		logger: slog.Default().With("component", "llm"),
	}, nil
}

// NewClassifierWithClient builds a classifier around an existing client.
// Used by tests to inject a fake provider.
func NewClassifierWithClient(client Client) *Classifier {
	return &Classifier{
		client: client,
		logger: slog.Default().With("component", "llm"),
	}
}

// ClassifyTransaction asks the model to pick one category name from the
// allowed list. The returned name is the model's raw answer; resolving it
// against the taxonomy is the caller's job.
func (c *Classifier) ClassifyTransaction(ctx context.Context, description, merchantName string, absAmount float64, direction model.TransactionDirection, allowedNames []string) (string, error) {
	if len(allowedNames) == 0 {
		return "", fmt.Errorf("no allowed category names provided")
	}

	prompt := buildPrompt(description, merchantName, absAmount, direction, allowedNames)

	answer, err := c.client.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("classification request failed: %w", err)
	}

	c.logger.Debug("transaction classified",
		"description", description,
		"direction", direction,
		"predicted", answer)

	return answer, nil
}

// buildPrompt creates the prompt for transaction classification.
func buildPrompt(description, merchantName string, absAmount float64, direction model.TransactionDirection, allowedNames []string) string {
	merchant := merchantName
	if merchant == "" {
		merchant = "Unknown"
	}

	var categoryList strings.Builder
	for i, name := range allowedNames {
		fmt.Fprintf(&categoryList, "%d. %s\n", i+1, name)
	}

	return fmt.Sprintf(`You are a financial categorization assistant. Given a transaction, you must categorize it using ONLY one of the provided categories.

Transaction details:
- Description: %q
- Merchant: %q
- Amount: %.2f (%s)
- Transaction Type: %s

Available categories for %s transactions:
%s
Return ONLY the category name exactly as it appears in the list.

Category:`,
		description,
		merchant,
		absAmount,
		direction,
		direction,
		direction,
		categoryList.String())
}

// Ensure Classifier implements the service interface.
var _ service.Classifier = (*Classifier)(nil)
