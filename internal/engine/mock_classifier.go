package engine

import (
	"context"

	"github.com/agencytax/agencytax/internal/model"
)

// MockClassifier is a function-field test double for service.Classifier.
type MockClassifier struct {
	ClassifyTransactionFn func(ctx context.Context, description, merchantName string, absAmount float64, direction model.TransactionDirection, allowedNames []string) (string, error)

	// Calls records the arguments of every ClassifyTransaction invocation.
	Calls []ClassifyCall
}

// ClassifyCall captures one ClassifyTransaction invocation.
type ClassifyCall struct {
	Description  string
	MerchantName string
	Direction    model.TransactionDirection
	AllowedNames []string
	AbsAmount    float64
}

func (m *MockClassifier) ClassifyTransaction(ctx context.Context, description, merchantName string, absAmount float64, direction model.TransactionDirection, allowedNames []string) (string, error) {
	m.Calls = append(m.Calls, ClassifyCall{
		Description:  description,
		MerchantName: merchantName,
		Direction:    direction,
		AllowedNames: allowedNames,
		AbsAmount:    absAmount,
	})
	if m.ClassifyTransactionFn != nil {
		return m.ClassifyTransactionFn(ctx, description, merchantName, absAmount, direction, allowedNames)
	}
	return "", nil
}

// Reset clears recorded calls.
func (m *MockClassifier) Reset() {
	m.Calls = nil
}
