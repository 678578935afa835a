package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for unknown sessions and for sessions owned by a
// different account.
var ErrNotFound = errors.New("session not found")

// Store persists sessions. All timestamps are supplied by the caller in UTC.
type Store interface {
	// Create inserts s and returns it with ID populated.
	Create(ctx context.Context, s Session) (Session, error)
	Get(ctx context.Context, id int64) (*Session, error)
	// GetByTokenHash returns the active session for a token digest.
	GetByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*Session, error)
	// ListActive returns non-revoked, unexpired sessions, last active first.
	ListActive(ctx context.Context, accountID int64, now time.Time) ([]Session, error)
	// Revoke marks one session revoked when it belongs to accountID and is not
	// already revoked. It reports whether a row changed.
	Revoke(ctx context.Context, accountID, id int64) (bool, error)
	// RevokeAll revokes every live session of accountID and returns the count.
	RevokeAll(ctx context.Context, accountID int64) (int64, error)
	// Touch sets last_active to now when it is older than staleBefore.
	Touch(ctx context.Context, id int64, now, staleBefore time.Time) (bool, error)
	// Purge deletes expired or revoked rows and returns the count.
	Purge(ctx context.Context, now time.Time) (int64, error)
}
