package newsletter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"user@example.com", true},
		{"USER@EXAMPLE.COM", true},
		{"first.last@sub.example.co.uk", true},
		{"o'brien@example.com", true},
		{"user+tag@example.com", true},
		{"user@[192.168.0.1]", true},
		{"  user@example.com  ", true},

		{"", false},
		{"a@", false},
		{"@example.com", false},
		{"user@localhost", false},
		{"user@@example.com", false},
		{"user example.com", false},
		{"user@example..com", false},
		{".user@example.com", false},
		{"user.@example.com", false},
		{strings.Repeat("a", 65) + "@example.com", false},
		{"user@" + strings.Repeat("a", 250) + ".com", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, ValidateEmail(tt.email), "email %q", tt.email)
	}
}

func TestExtractEmails(t *testing.T) {
	tests := []struct {
		name     string
		haystack string
		want     []string
	}{
		{
			name:     "mixed separators and junk",
			haystack: "a@b.com, bad-email; c@d.org\nfoo@bar",
			want:     []string{"a@b.com", "c@d.org"},
		},
		{
			name:     "duplicates keep first-seen order",
			haystack: "x@example.com y@example.com x@example.com",
			want:     []string{"x@example.com", "y@example.com"},
		},
		{
			name:     "quoted addresses are unwrapped",
			haystack: `"alice@example.com"; 'bob@example.org'`,
			want:     []string{"alice@example.com", "bob@example.org"},
		},
		{
			name:     "embedded in prose",
			haystack: "Please contact support@example.com or sales@example.com today.",
			want:     []string{"support@example.com", "sales@example.com"},
		},
		{
			name:     "empty input",
			haystack: "   \n\t ",
			want:     nil,
		},
		{
			name:     "no addresses at all",
			haystack: "nothing to see here",
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractEmails(tt.haystack))
		})
	}
}
