package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerification(t *testing.T) {
	tpl := NewTemplates()

	msg, err := tpl.Verification("user@example.com",
		"https://example.com/newsletter-verification/abc123", nil)
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", msg.To)
	assert.Equal(t, VerificationSubject, msg.Subject)
	assert.Contains(t, msg.HTML, "user@example.com")
	assert.Contains(t, msg.HTML, `href="https://example.com/newsletter-verification/abc123"`)
	assert.Contains(t, msg.Text, "https://example.com/newsletter-verification/abc123")
	assert.NotContains(t, msg.HTML, "{{", "all template variables must resolve")
	assert.NotContains(t, msg.Text, "{{", "all template variables must resolve")
}

func TestVerificationSubjectOverride(t *testing.T) {
	tpl := NewTemplates()

	msg, err := tpl.Verification("user@example.com", "https://example.com/v/abc123",
		map[string]string{"subject": "please confirm"})
	require.NoError(t, err)

	assert.Equal(t, "please confirm", msg.Subject)
	assert.NotContains(t, msg.HTML, "please confirm", "the subject override is not a template variable")
}
