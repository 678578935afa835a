package hubauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/swahilipot/hubauth/session"
)

// ListSessions returns the live sessions of accountID, most recently active
// first.
func (e *Engine) ListSessions(ctx context.Context, accountID int64) ([]session.Session, error) {
	if e.sessions == nil {
		return nil, ErrSessionTrackingDisabled
	}
	out, err := e.sessions.List(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

// RevokeSession revokes one session of accountID. Sessions that belong to
// another account are reported as ErrSessionNotFound.
func (e *Engine) RevokeSession(ctx context.Context, accountID, sessionID int64) error {
	if e.sessions == nil {
		return ErrSessionTrackingDisabled
	}
	if err := e.sessions.Revoke(ctx, accountID, sessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			e.emitAudit(ctx, auditEventSessionRevoked, accountID, sessionID, false, ErrSessionNotFound, nil)
			return ErrSessionNotFound
		}
		return fmt.Errorf("revoke session: %w", err)
	}
	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, auditEventSessionRevoked, accountID, sessionID, true, nil, nil)
	return nil
}

// RevokeAllSessions revokes every live session of accountID and returns how
// many were revoked.
func (e *Engine) RevokeAllSessions(ctx context.Context, accountID int64) (int64, error) {
	if e.sessions == nil {
		return 0, ErrSessionTrackingDisabled
	}
	n, err := e.sessions.RevokeAll(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("revoke sessions: %w", err)
	}
	e.metricInc(MetricSessionRevokedAll)
	e.metrics.Add(MetricSessionRevoked, uint64(n))
	e.emitAudit(ctx, auditEventSessionsRevokedAll, accountID, 0, true, nil, func() map[string]string {
		return map[string]string{"count": fmt.Sprint(n)}
	})
	return n, nil
}

// PurgeSessions deletes expired and revoked sessions.
func (e *Engine) PurgeSessions(ctx context.Context) (int64, error) {
	if e.sessions == nil {
		return 0, ErrSessionTrackingDisabled
	}
	n, err := e.sessions.Purge(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	e.metrics.Add(MetricSessionPurged, uint64(n))
	return n, nil
}
