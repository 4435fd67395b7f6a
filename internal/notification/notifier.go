package notification

import (
	"LogFlowSketcher/internal/config"
	"LogFlowSketcher/internal/model"
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/rs/zerolog/log"
)

// New returns the notifier named by cfg.Alerter.Notifier.
func New(cfg *config.Config) (model.Notifier, error) {
	switch cfg.Alerter.Notifier {
	case "email":
		if cfg.SMTP.Host == "" {
			return nil, fmt.Errorf("email notifier requires smtp.host")
		}
		return NewEmailNotifier(cfg.SMTP), nil
	case "log", "":
		return NewLogNotifier(), nil
	default:
		return nil, fmt.Errorf("unknown notifier '%s'", cfg.Alerter.Notifier)
	}
}

// EmailNotifier implements the Notifier interface for sending emails.
type EmailNotifier struct {
	cfg  config.SMTPConfig
	auth smtp.Auth
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailNotifier creates a new EmailNotifier.
func NewEmailNotifier(cfg config.SMTPConfig) *EmailNotifier {
	// PlainAuth will not send credentials until the server identifies itself as a trusted one.
	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	return &EmailNotifier{cfg: cfg, auth: auth, send: smtp.SendMail}
}

// Send renders the Markdown body to HTML and mails it to the configured
// recipients.
func (n *EmailNotifier) Send(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr := fmt.Sprintf("%s:%d", n.cfg.Host, n.cfg.Port)
	recipients := strings.Split(n.cfg.To, ",")
	for i := range recipients {
		recipients[i] = strings.TrimSpace(recipients[i])
	}

	msg := buildMessage(n.cfg.From, n.cfg.To, subject, markdown.ToHTML([]byte(body), nil, nil))

	if err := n.send(addr, n.auth, n.cfg.From, recipients, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject string, html []byte) []byte {
	header := "To: " + to + "\r\n" +
		"From: " + from + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=UTF-8\r\n" +
		"\r\n"
	return append([]byte(header), html...)
}

// LogNotifier writes alerts to the process log.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(_ context.Context, subject, body string) error {
	log.Warn().Str("subject", subject).Msg(body)
	return nil
}
