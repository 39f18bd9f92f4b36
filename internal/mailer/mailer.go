// Package mailer delivers templated transactional e-mail through AWS SES or
// a plain SMTP relay, selected by configuration.
package mailer

import (
	"context"
	"fmt"
)

// Message is one outbound e-mail.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender hands a message to a delivery provider. Implementations wrap
// transport failures in *DeliveryError so callers can distinguish them from
// template-resolution problems.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// DeliveryError reports that the provider refused or failed to accept a
// message. The preceding database state is not rolled back on delivery
// failure; callers surface a generic "could not send" to end users.
type DeliveryError struct {
	Recipient string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("mail delivery to %s failed: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
