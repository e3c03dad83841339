package smtp

import (
	"context"
	"net/smtp"
	"testing"

	"github.com/otp-relay/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMailer_Alert(t *testing.T) {
	m := NewMailer(&config.Config{
		SMTPHost:     "mail.local",
		SMTPPort:     "2525",
		SMTPFrom:     "relay@example.com",
		AlertEmailTo: "ops@example.com",
	})
	var gotAddr string
	var gotTo []string
	var gotMsg string
	var gotAuth smtp.Auth
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotTo, gotMsg = addr, a, to, string(msg)
		return nil
	}

	require.NoError(t, m.Alert(context.Background(), "session lost", "otp disconnected"))
	assert.Equal(t, "mail.local:2525", gotAddr)
	assert.Nil(t, gotAuth)
	assert.Equal(t, []string{"ops@example.com"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: session lost\r\n")
	assert.Contains(t, gotMsg, "\r\n\r\notp disconnected")
}

func TestMailer_Alert_CancelledContext(t *testing.T) {
	m := NewMailer(&config.Config{})
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called")
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Alert(ctx, "s", "b"), context.Canceled)
}
