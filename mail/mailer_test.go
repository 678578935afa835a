package mail

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swahilipot/hubauth"
)

var _ hubauth.Notifier = (*Mailer)(nil)

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}

func (r *recordingSender) messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}

func newTestMailer(t *testing.T, sender Sender, cfg Config) *Mailer {
	t.Helper()
	m, err := New(sender, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestSendVerificationRendersLink(t *testing.T) {
	rec := &recordingSender{}
	m := newTestMailer(t, rec, Config{FrontendURL: "https://hub.example/"})

	require.NoError(t, m.SendVerification(context.Background(), "amina@hub.example", "Amina", "abc123"))
	m.Close()

	msgs := rec.messages()
	require.Len(t, msgs, 1)
	msg := msgs[0]
	assert.Equal(t, "amina@hub.example", msg.To)
	assert.Equal(t, "Verify Your Email - SwahiliPot Hub", msg.Subject)
	assert.Contains(t, msg.Text, "https://hub.example/verify-email?token=abc123")
	assert.Contains(t, msg.Text, "expires in 24 hours")
	assert.Contains(t, msg.HTML, `href="https://hub.example/verify-email?token=abc123"`)
	assert.Contains(t, msg.HTML, "<strong>Amina</strong>")
}

func TestSendPasswordResetEscapesName(t *testing.T) {
	rec := &recordingSender{}
	m := newTestMailer(t, rec, Config{FrontendURL: "https://hub.example", Brand: "Hub"})

	require.NoError(t, m.SendPasswordReset(context.Background(), "x@hub.example", "<script>x</script>", "tok"))
	m.Close()

	msgs := rec.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Password Reset - Hub", msgs[0].Subject)
	assert.Contains(t, msgs[0].Text, "https://hub.example/reset-password?token=tok")
	assert.Contains(t, msgs[0].Text, "expires in 1 hour.")
	assert.NotContains(t, msgs[0].HTML, "<script>")
	assert.Contains(t, msgs[0].HTML, "&lt;script&gt;")
}

func TestSendPasswordChanged(t *testing.T) {
	rec := &recordingSender{}
	m := newTestMailer(t, rec, Config{})

	require.NoError(t, m.SendPasswordChanged(context.Background(), "x@hub.example", "X"))
	m.Close()

	msgs := rec.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Password Changed - SwahiliPot Hub", msgs[0].Subject)
	assert.Contains(t, msgs[0].Text, "changed successfully")
}

func TestDeliveryFailureIsNotReturned(t *testing.T) {
	rec := &recordingSender{err: errors.New("relay down")}
	m := newTestMailer(t, rec, Config{})

	assert.NoError(t, m.SendPasswordChanged(context.Background(), "x@hub.example", "X"))
	m.Close()
	assert.Len(t, rec.messages(), 1)
}

func TestQueueFullDropsMessage(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{}, 1)
	sender := SenderFunc(func(context.Context, Message) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-gate
		return nil
	})
	m := newTestMailer(t, sender, Config{BufferSize: 1, DropIfFull: true})

	ctx := context.Background()
	require.NoError(t, m.SendPasswordChanged(ctx, "a@hub.example", ""))
	<-started
	require.NoError(t, m.SendPasswordChanged(ctx, "b@hub.example", ""))
	err := m.SendPasswordChanged(ctx, "c@hub.example", "")
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, uint64(1), m.Dropped())

	close(gate)
}

func TestNewRequiresSender(t *testing.T) {
	_, err := New(nil, Config{}, nil)
	assert.Error(t, err)
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "24 hours", humanDuration(24*time.Hour))
	assert.Equal(t, "1 hour", humanDuration(time.Hour))
	assert.Equal(t, "30 minutes", humanDuration(30*time.Minute))
	assert.Equal(t, "1m30s", humanDuration(90*time.Second))
}

func TestSMTPSenderBuildsMultipart(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "smtp.hub.example", Username: "u", Password: "p", From: "no-reply@hub.example"})
	require.NoError(t, err)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotBody []byte
	var gotAuth smtp.Auth
	s.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotBody = addr, a, from, to, msg
		return nil
	}
	s.now = func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }

	err = s.Send(context.Background(), Message{To: "x@hub.example", Subject: "Hi", Text: "plain body", HTML: "<p>html body</p>"})
	require.NoError(t, err)

	assert.Equal(t, "smtp.hub.example:587", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, "no-reply@hub.example", gotFrom)
	assert.Equal(t, []string{"x@hub.example"}, gotTo)

	body := string(gotBody)
	assert.Contains(t, body, "To: x@hub.example\r\n")
	assert.Contains(t, body, "Subject: Hi\r\n")
	assert.Contains(t, body, "multipart/alternative")
	assert.Contains(t, body, "plain body")
	assert.Contains(t, body, "<p>html body</p>")
	assert.Less(t, strings.Index(body, "text/plain"), strings.Index(body, "text/html"))
}

func TestSMTPSenderWrapsError(t *testing.T) {
	s, err := NewSMTPSender(SMTPConfig{Host: "localhost", Port: 2525, From: "a@b"})
	require.NoError(t, err)
	relayErr := errors.New("554 rejected")
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error { return relayErr }

	err = s.Send(context.Background(), Message{To: "x@hub.example", Text: "t"})
	assert.ErrorIs(t, err, relayErr)
	assert.Contains(t, err.Error(), "localhost:2525")
}

func TestSMTPSenderRequiresHostAndFrom(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{From: "a@b"})
	assert.Error(t, err)
	_, err = NewSMTPSender(SMTPConfig{Host: "h"})
	assert.Error(t, err)
}
