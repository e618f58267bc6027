package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeWithLead(t *testing.T) {
	tests := []struct {
		name     string
		lead     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice without lead",
			input:    nil,
			expected: []string{},
		},
		{
			name:     "lead only",
			lead:     "a@x.com",
			input:    nil,
			expected: []string{"a@x.com"},
		},
		{
			name:     "lead moved to front",
			lead:     "b",
			input:    []string{"a", "b", "c"},
			expected: []string{"b", "a", "c"},
		},
		{
			name:     "duplicates and empties removed in order",
			input:    []string{"111", "", "222", "111", "333", "222"},
			expected: []string{"111", "222", "333"},
		},
		{
			name:     "case is significant",
			input:    []string{"A@x.com", "a@x.com"},
			expected: []string{"A@x.com", "a@x.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeWithLead(tt.lead, tt.input))
		})
	}
}

func TestTrimToNil(t *testing.T) {
	s := func(v string) *string { return &v }

	assert.Nil(t, TrimToNil(nil))
	assert.Nil(t, TrimToNil(s("")))
	assert.Nil(t, TrimToNil(s("   ")))
	assert.Equal(t, "a@x.com", *TrimToNil(s("  a@x.com\t")))
}
