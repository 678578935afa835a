package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/swahilipot/hubauth/internal"
)

const defaultTouchInterval = 5 * time.Minute

// Config bounds session lifetime and activity write rate.
type Config struct {
	// TTL is the absolute lifetime of a session from creation.
	TTL time.Duration
	// TouchInterval is the minimum gap between last-active writes.
	TouchInterval time.Duration
}

// Option customizes a Registry.
type Option func(*Registry)

// WithClock replaces time.Now; the returned time is converted to UTC.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// Registry implements the session lifecycle over a Store.
type Registry struct {
	store Store
	cfg   Config
	now   func() time.Time
}

// NewRegistry validates cfg and returns a Registry backed by store.
func NewRegistry(store Store, cfg Config, opts ...Option) (*Registry, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("session TTL must be > 0")
	}
	if cfg.TouchInterval < 0 {
		return nil, errors.New("session touch interval must be >= 0")
	}
	if cfg.TouchInterval == 0 {
		cfg.TouchInterval = defaultTouchInterval
	}

	r := &Registry{store: store, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Registry) clock() time.Time {
	return r.now().UTC()
}

// Create records a new session for accountID and returns it with the opaque
// token. The token is returned once and never stored in clear.
func (r *Registry) Create(ctx context.Context, accountID int64, device Device) (Session, string, error) {
	token, err := internal.NewOpaqueToken(internal.SessionTokenBytes)
	if err != nil {
		return Session{}, "", fmt.Errorf("generate session token: %w", err)
	}

	now := r.clock()
	created, err := r.store.Create(ctx, Session{
		AccountID:  accountID,
		TokenHash:  internal.HashToken(token),
		DeviceInfo: internal.DeviceLabel(device.UserAgent),
		IPAddress:  internal.NormalizeIP(device.IP),
		CreatedAt:  now,
		LastActive: now,
		ExpiresAt:  now.Add(r.cfg.TTL),
	})
	if err != nil {
		return Session{}, "", err
	}
	return created, token, nil
}

// List returns the live sessions of accountID, most recently active first.
func (r *Registry) List(ctx context.Context, accountID int64) ([]Session, error) {
	return r.store.ListActive(ctx, accountID, r.clock())
}

// Revoke revokes one session owned by accountID. Sessions of other accounts,
// unknown ids and already revoked sessions all yield ErrNotFound.
func (r *Registry) Revoke(ctx context.Context, accountID, sessionID int64) error {
	ok, err := r.store.Revoke(ctx, accountID, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// RevokeAll revokes every live session of accountID.
func (r *Registry) RevokeAll(ctx context.Context, accountID int64) (int64, error) {
	return r.store.RevokeAll(ctx, accountID)
}

// Resolve maps an opaque session token to its active session.
func (r *Registry) Resolve(ctx context.Context, token string) (*Session, error) {
	if !internal.IsHexToken(token, internal.SessionTokenBytes) {
		return nil, ErrNotFound
	}
	return r.store.GetByTokenHash(ctx, internal.HashToken(token), r.clock())
}

// Active reports whether sessionID exists, is not revoked and is unexpired.
func (r *Registry) Active(ctx context.Context, sessionID int64) (bool, error) {
	s, err := r.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.Active(r.clock()), nil
}

// Touch refreshes last-active when the stored value is older than the touch
// interval. Recent sessions are left untouched.
func (r *Registry) Touch(ctx context.Context, sessionID int64) error {
	now := r.clock()
	_, err := r.store.Touch(ctx, sessionID, now, now.Add(-r.cfg.TouchInterval))
	return err
}

// Purge deletes expired or revoked sessions.
func (r *Registry) Purge(ctx context.Context) (int64, error) {
	return r.store.Purge(ctx, r.clock())
}
