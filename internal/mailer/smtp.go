package mailer

import (
	"context"

	"gopkg.in/gomail.v2"

	appconfig "github.com/ignite/newsletter/internal/config"
)

// SMTPSender delivers mail through a plain SMTP relay.
type SMTPSender struct {
	dialer    *gomail.Dialer
	fromEmail string
	fromName  string
}

// NewSMTPSender creates an SMTP sender from config.
func NewSMTPSender(cfg appconfig.MailConfig) *SMTPSender {
	return &SMTPSender{
		dialer:    gomail.NewDialer(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}
}

// Send delivers one message. The context is accepted for interface symmetry;
// gomail dials synchronously and applies its own timeouts.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", m.FormatAddress(s.fromEmail, s.fromName))
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	m.AddAlternative("text/html", msg.HTML)

	if err := s.dialer.DialAndSend(m); err != nil {
		return &DeliveryError{Recipient: msg.To, Err: err}
	}
	return nil
}
