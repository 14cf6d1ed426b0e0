package engine

import (
	"regexp"
	"strings"

	"github.com/agencytax/agencytax/internal/model"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9 ]`)

// normalizeText lowercases s and strips every character outside [a-z0-9 ]
// so keyword rules match regardless of punctuation ("AWS*Invoice" -> "awsinvoice").
func normalizeText(s string) string {
	return nonAlphanumeric.ReplaceAllString(strings.ToLower(s), "")
}

// RuleMatcher assigns categories to expense transactions by keyword lookup.
// Rules are evaluated in the order they were created and the first keyword
// found as a substring of the normalized description or merchant name wins.
type RuleMatcher struct {
	rules []model.CategoryRule
}

func NewRuleMatcher(rules []model.CategoryRule) *RuleMatcher {
	return &RuleMatcher{rules: rules}
}

// Match returns the category ID of the first matching rule. Income
// transactions never match: keyword rules only cover spending.
func (m *RuleMatcher) Match(txn model.Transaction) (int64, bool) {
	if txn.Direction() != model.DirectionExpense {
		return 0, false
	}

	haystack := normalizeText(txn.Description)
	if txn.MerchantName != "" {
		haystack += " " + normalizeText(txn.MerchantName)
	}

	for _, rule := range m.rules {
		keyword := normalizeText(rule.KeywordPattern)
		if keyword == "" {
			continue
		}
		if strings.Contains(haystack, keyword) {
			return rule.CategoryID, true
		}
	}
	return 0, false
}
