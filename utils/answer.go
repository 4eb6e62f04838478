// utils/answer.go
package utils

import "strings"

// NormalizeAnswer trims surrounding whitespace and case-folds.
func NormalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// AnswersMatch compares two answers after normalization.
func AnswersMatch(given, expected string) bool {
	return strings.EqualFold(strings.TrimSpace(given), strings.TrimSpace(expected))
}
