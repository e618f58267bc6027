// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// DedupeWithLead removes duplicates and empty strings from values, preserving
// first-seen order, and places lead at the front when it is non-empty.
// Values are compared verbatim; no case folding or trimming is applied.
//
// Example:
//
//	DedupeWithLead("b", []string{"a", "b", "", "a", "c"})
//	// Returns: []string{"b", "a", "c"}
func DedupeWithLead(lead string, values []string) []string {
	result := make([]string, 0, len(values)+1)
	seen := make(map[string]struct{}, len(values)+1)
	if lead != "" {
		seen[lead] = struct{}{}
		result = append(result, lead)
	}
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}

// TrimToNil trims surrounding whitespace and returns nil for a nil or blank input.
func TrimToNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
