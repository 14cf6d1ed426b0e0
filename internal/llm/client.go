// Package llm implements the language-model fallback classifier.
package llm

import "context"

// Client defines the interface for LLM providers. The response is the
// model's raw completion text, expected to be a bare category name.
type Client interface {
	Complete(ctx context.Context, systemPrompt, prompt string) (string, error)
}
