package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/agencytax/agencytax/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient returns a canned completion and records the prompt it saw.
type fakeClient struct {
	err        error
	answer     string
	lastSystem string
	lastPrompt string
}

func (f *fakeClient) Complete(_ context.Context, systemPrompt, prompt string) (string, error) {
	f.lastSystem = systemPrompt
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func TestClassifyTransaction_PromptContents(t *testing.T) {
	fake := &fakeClient{answer: "Software"}
	classifier := NewClassifierWithClient(fake)

	answer, err := classifier.ClassifyTransaction(
		context.Background(),
		"AWS INVOICE",
		"Amazon Web Services",
		49.00,
		model.DirectionExpense,
		[]string{"Software", "Travel"},
	)
	require.NoError(t, err)
	assert.Equal(t, "Software", answer)

	assert.Contains(t, fake.lastPrompt, `"AWS INVOICE"`)
	assert.Contains(t, fake.lastPrompt, `"Amazon Web Services"`)
	assert.Contains(t, fake.lastPrompt, "49.00 (EXPENSE)")
	assert.Contains(t, fake.lastPrompt, "1. Software")
	assert.Contains(t, fake.lastPrompt, "2. Travel")
	assert.Contains(t, fake.lastSystem, "Return ONLY the exact category name")
}

func TestClassifyTransaction_UnknownMerchant(t *testing.T) {
	fake := &fakeClient{answer: "Other Income"}
	classifier := NewClassifierWithClient(fake)

	_, err := classifier.ClassifyTransaction(
		context.Background(),
		"ACH DEPOSIT",
		"",
		1500.00,
		model.DirectionIncome,
		[]string{"Consulting Income", "Other Income"},
	)
	require.NoError(t, err)
	assert.Contains(t, fake.lastPrompt, `"Unknown"`)
	assert.Contains(t, fake.lastPrompt, "INCOME transactions")
}

func TestClassifyTransaction_EmptyAllowedList(t *testing.T) {
	classifier := NewClassifierWithClient(&fakeClient{answer: "anything"})

	_, err := classifier.ClassifyTransaction(
		context.Background(), "X", "", 1, model.DirectionExpense, nil)
	assert.Error(t, err)
}

func TestClassifyTransaction_TransportErrorPropagates(t *testing.T) {
	transportErr := errors.New("connection reset")
	classifier := NewClassifierWithClient(&fakeClient{err: transportErr})

	_, err := classifier.ClassifyTransaction(
		context.Background(), "X", "", 1, model.DirectionExpense, []string{"Software"})
	require.Error(t, err)
	assert.ErrorIs(t, err, transportErr)
}

func TestNewClassifier_ProviderSelection(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "openai", cfg: Config{Provider: "openai", APIKey: "k"}, wantErr: false},
		{name: "default provider is openai", cfg: Config{APIKey: "k"}, wantErr: false},
		{name: "anthropic", cfg: Config{Provider: "anthropic", APIKey: "k"}, wantErr: false},
		{name: "missing key", cfg: Config{Provider: "openai"}, wantErr: true},
		{name: "unsupported provider", cfg: Config{Provider: "bard", APIKey: "k"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClassifier(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
