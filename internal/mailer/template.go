package mailer

import (
	"fmt"

	"github.com/osteele/liquid"
)

// VerificationSubject is the fixed subject line of the double opt-in message.
const VerificationSubject = "subscription confirmation"

const verificationHTML = `<html>
<body style="font-family: sans-serif; max-width: 560px; margin: 0 auto;">
  <h2>Confirm your subscription</h2>
  <p>Hello,</p>
  <p>someone (hopefully you) asked to subscribe <strong>{{ to }}</strong> to our newsletter.</p>
  <p>Click the link below to confirm. If you did not request this, simply ignore this message
  and the address will be removed automatically.</p>
  <p><a href="{{ link }}">{{ link }}</a></p>
</body>
</html>`

const verificationText = `Confirm your subscription

Someone (hopefully you) asked to subscribe {{ to }} to our newsletter.
Open the link below to confirm. If you did not request this, simply ignore
this message and the address will be removed automatically.

{{ link }}`

// Templates renders e-mail bodies with the liquid template engine.
type Templates struct {
	engine *liquid.Engine
}

// NewTemplates creates the template renderer.
func NewTemplates() *Templates {
	return &Templates{engine: liquid.NewEngine()}
}

// Verification builds the double opt-in message for the given recipient and
// confirmation link. Caller-supplied overrides are merged over the defaults:
// "subject" replaces the subject line, any other key becomes a template
// variable. A rendering failure is a template-resolution error, distinct from
// a DeliveryError.
func (t *Templates) Verification(to, link string, overrides map[string]string) (Message, error) {
	vars := map[string]interface{}{
		"to":   to,
		"link": link,
	}
	subject := VerificationSubject
	for key, value := range overrides {
		if key == "subject" {
			subject = value
			continue
		}
		vars[key] = value
	}

	html, err := t.engine.ParseAndRenderString(verificationHTML, vars)
	if err != nil {
		return Message{}, fmt.Errorf("rendering verification html template: %w", err)
	}
	text, err := t.engine.ParseAndRenderString(verificationText, vars)
	if err != nil {
		return Message{}, fmt.Errorf("rendering verification text template: %w", err)
	}

	return Message{To: to, Subject: subject, HTML: html, Text: text}, nil
}
