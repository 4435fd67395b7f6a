package notification

import (
	"LogFlowSketcher/internal/config"
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	cfg := config.Default()

	n, err := New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &LogNotifier{}, n)

	cfg.Alerter.Notifier = "email"
	_, err = New(cfg)
	assert.ErrorContains(t, err, "smtp.host")

	cfg.SMTP = config.SMTPConfig{Host: "mail.local", Port: 25, From: "a@b", To: "c@d"}
	n, err = New(cfg)
	require.NoError(t, err)
	assert.IsType(t, &EmailNotifier{}, n)

	cfg.Alerter.Notifier = "pager"
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestEmailNotifierRendersMarkdown(t *testing.T) {
	n := NewEmailNotifier(config.SMTPConfig{Host: "mail.local", Port: 2525, From: "ops@local", To: "a@local, b@local"})

	var (
		gotAddr string
		gotTo   []string
		gotMsg  string
	)
	n.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	require.NoError(t, n.Send(context.Background(), "Alert", "### Alert: burst\n\n- **Counter:** `errors`\n"))
	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Equal(t, []string{"a@local", "b@local"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Alert\r\n")
	assert.Contains(t, gotMsg, "<h3")
	assert.Contains(t, gotMsg, "<strong>Counter:</strong>")
	assert.Contains(t, gotMsg, "<code>errors</code>")
}

func TestEmailNotifierWrapsError(t *testing.T) {
	n := NewEmailNotifier(config.SMTPConfig{Host: "mail.local", Port: 25, To: "a@local"})
	boom := errors.New("connection refused")
	n.send = func(string, smtp.Auth, string, []string, []byte) error { return boom }

	assert.ErrorIs(t, n.Send(context.Background(), "s", "b"), boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.Send(ctx, "s", "b"), context.Canceled)
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, NewLogNotifier().Send(context.Background(), "s", "b"))
}
