// Package mailer builds and delivers transactional notification emails.
package mailer

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/smallbiznis/seohub/internal/config"
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Provider delivers one message over a concrete transport.
type Provider interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPProvider sends via a plain-auth SMTP relay.
type SMTPProvider struct {
	cfg config.MailConfig
}

func NewSMTP(cfg config.MailConfig) *SMTPProvider {
	return &SMTPProvider{cfg: cfg}
}

func (p *SMTPProvider) Send(ctx context.Context, msg Message) error {
	auth := smtp.PlainAuth("", p.cfg.SMTPUsername, p.cfg.SMTPPassword, p.cfg.SMTPHost)
	addr := fmt.Sprintf("%s:%d", p.cfg.SMTPHost, p.cfg.SMTPPort)

	mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
	raw := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n%s\r\n%s", msg.To, msg.Subject, mime, msg.HTML))

	return smtp.SendMail(addr, auth, p.cfg.From, []string{msg.To}, raw)
}

// NoopProvider swallows messages. Used when SMTP is not configured.
type NoopProvider struct{}

func (NoopProvider) Send(ctx context.Context, msg Message) error { return nil }
