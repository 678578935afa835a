package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/swahilipot/hubauth/internal/async"
)

// ErrQueueFull is returned when a message could not be queued.
var ErrQueueFull = errors.New("mail: queue full")

// Config controls link building and the delivery queue.
type Config struct {
	// FrontendURL is the base for verification and reset links.
	FrontendURL string
	Brand       string

	// VerificationTTL and ResetTTL are only quoted in the message body.
	VerificationTTL time.Duration
	ResetTTL        time.Duration

	BufferSize int
	DropIfFull bool
	// SendTimeout bounds a single delivery attempt.
	SendTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.FrontendURL == "" {
		c.FrontendURL = "http://localhost:5173"
	}
	c.FrontendURL = strings.TrimRight(c.FrontendURL, "/")
	if c.Brand == "" {
		c.Brand = "SwahiliPot Hub"
	}
	if c.VerificationTTL <= 0 {
		c.VerificationTTL = 24 * time.Hour
	}
	if c.ResetTTL <= 0 {
		c.ResetTTL = time.Hour
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 30 * time.Second
	}
	return c
}

// Mailer renders account emails and delivers them asynchronously.
type Mailer struct {
	cfg    Config
	sender Sender
	logger *slog.Logger
	queue  *async.Dispatcher[Message]
}

// New starts the delivery goroutine. Call Close to drain it.
func New(sender Sender, cfg Config, logger *slog.Logger) (*Mailer, error) {
	if sender == nil {
		return nil, errors.New("mail: sender required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg = cfg.withDefaults()
	if _, err := url.Parse(cfg.FrontendURL); err != nil {
		return nil, fmt.Errorf("mail: frontend url: %w", err)
	}

	m := &Mailer{
		cfg:    cfg,
		sender: sender,
		logger: logger.With("component", "mail"),
	}
	m.queue = async.New(async.Config{
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
	}, m.deliver)

	return m, nil
}

func (m *Mailer) deliver(ctx context.Context, msg Message) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.SendTimeout)
	defer cancel()

	if err := m.sender.Send(ctx, msg); err != nil {
		m.logger.Error("mail delivery failed", "to", msg.To, "subject", msg.Subject, "error", err)
		return
	}
	m.logger.Debug("mail delivered", "to", msg.To, "subject", msg.Subject)
}

func (m *Mailer) SendVerification(ctx context.Context, to, name, token string) error {
	return m.enqueue(ctx, verificationTemplate, to, templateData{
		Brand: m.cfg.Brand,
		Name:  name,
		Link:  m.link("/verify-email", token),
		TTL:   humanDuration(m.cfg.VerificationTTL),
	})
}

func (m *Mailer) SendPasswordReset(ctx context.Context, to, name, token string) error {
	return m.enqueue(ctx, resetTemplate, to, templateData{
		Brand: m.cfg.Brand,
		Name:  name,
		Link:  m.link("/reset-password", token),
		TTL:   humanDuration(m.cfg.ResetTTL),
	})
}

func (m *Mailer) SendPasswordChanged(ctx context.Context, to, name string) error {
	return m.enqueue(ctx, passwordChangedTemplate, to, templateData{
		Brand: m.cfg.Brand,
		Name:  name,
	})
}

func (m *Mailer) enqueue(ctx context.Context, t template, to string, data templateData) error {
	msg, err := t.render(to, data)
	if err != nil {
		return fmt.Errorf("mail: render %s: %w", t.subject, err)
	}
	if !m.queue.Submit(ctx, msg) {
		return ErrQueueFull
	}
	return nil
}

func (m *Mailer) link(path, token string) string {
	return m.cfg.FrontendURL + path + "?token=" + url.QueryEscape(token)
}

// Close stops accepting messages and waits for queued ones to be sent.
func (m *Mailer) Close() {
	m.queue.Close()
}

// Dropped reports messages rejected by a full queue.
func (m *Mailer) Dropped() uint64 {
	return m.queue.Dropped()
}

func humanDuration(d time.Duration) string {
	switch {
	case d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
