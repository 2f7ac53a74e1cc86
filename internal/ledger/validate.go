package ledger

import (
	"fmt"
	"strings"
)

// DefaultPlaceholderTokens mark a contact field as not-yet-provided rather
// than real data. Matched case-insensitively as substrings.
var DefaultPlaceholderTokens = []string{
	"unknown",
	"n/a",
	"not provided",
	"not available",
	"awaiting",
	"placeholder",
	"your name",
	"example.com",
	"xxx",
}

func normalizeTokens(tokens []string) []string {
	if len(tokens) == 0 {
		tokens = DefaultPlaceholderTokens
	}
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// validateContact rejects empty values and values containing a
// placeholder token.
func (l *Ledger) validateContact(field, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidContactInfo, field)
	}
	lower := strings.ToLower(trimmed)
	for _, token := range l.placeholders {
		if strings.Contains(lower, token) {
			return fmt.Errorf("%w: %s looks like a placeholder (%q)", ErrInvalidContactInfo, field, value)
		}
	}
	return nil
}
