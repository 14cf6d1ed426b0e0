package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/agencytax/agencytax/internal/model"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "AWS Invoice", "aws invoice"},
		{"strips punctuation", "SQ *COFFEE-SHOP #42", "sq coffeeshop 42"},
		{"keeps digits", "Check 1042", "check 1042"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeText(tt.input))
		})
	}
}

func TestRuleMatcherFirstRuleWins(t *testing.T) {
	matcher := NewRuleMatcher([]model.CategoryRule{
		{ID: 1, KeywordPattern: "coffee", CategoryID: 10},
		{ID: 2, KeywordPattern: "shop", CategoryID: 20},
	})

	id, ok := matcher.Match(model.Transaction{Description: "COFFEE SHOP", Amount: 5.25})
	assert.True(t, ok)
	assert.Equal(t, int64(10), id)
}

func TestRuleMatcherIncludesMerchantName(t *testing.T) {
	matcher := NewRuleMatcher([]model.CategoryRule{
		{ID: 1, KeywordPattern: "delta", CategoryID: 7},
	})

	id, ok := matcher.Match(model.Transaction{
		Description:  "AIRLINE TICKET 0123",
		MerchantName: "Delta Air Lines",
		Amount:       412.40,
	})
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
}

func TestRuleMatcherSkipsIncome(t *testing.T) {
	matcher := NewRuleMatcher([]model.CategoryRule{
		{ID: 1, KeywordPattern: "payment", CategoryID: 3},
	})

	_, ok := matcher.Match(model.Transaction{Description: "CLIENT PAYMENT", Amount: -900})
	assert.False(t, ok)
}

func TestRuleMatcherNormalizesKeyword(t *testing.T) {
	matcher := NewRuleMatcher([]model.CategoryRule{
		{ID: 1, KeywordPattern: "GitHub.com", CategoryID: 5},
	})

	id, ok := matcher.Match(model.Transaction{Description: "GITHUBCOM SUBSCRIPTION", Amount: 4})
	assert.True(t, ok)
	assert.Equal(t, int64(5), id)
}

func TestRuleMatcherNoMatch(t *testing.T) {
	matcher := NewRuleMatcher([]model.CategoryRule{
		{ID: 1, KeywordPattern: "aws", CategoryID: 5},
	})

	_, ok := matcher.Match(model.Transaction{Description: "WHOLE FOODS", Amount: 60})
	assert.False(t, ok)
}
