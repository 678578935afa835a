package hubauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/swahilipot/hubauth/account"
	"github.com/swahilipot/hubauth/jwt"
)

// Refresh exchanges a refresh token for a new access token carrying the
// account's current role. Expired tokens return ErrRefreshTokenExpired; every
// other rejection returns ErrRefreshTokenInvalid.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, invalid("Refresh token is required")
	}

	claims, err := e.jwt.Parse(jwt.KindRefresh, refreshToken)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return nil, e.refreshFailed(ctx, 0, ErrRefreshTokenExpired)
		}
		return nil, e.refreshFailed(ctx, 0, ErrRefreshTokenInvalid)
	}

	a, err := e.accounts.GetByID(ctx, claims.UID)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, e.refreshFailed(ctx, claims.UID, ErrRefreshTokenInvalid)
		}
		return nil, fmt.Errorf("load account: %w", err)
	}

	if claims.SID != 0 && e.sessions != nil {
		active, err := e.sessions.Active(ctx, claims.SID)
		if err != nil {
			return nil, fmt.Errorf("check session: %w", err)
		}
		if !active {
			return nil, e.refreshFailed(ctx, a.ID, ErrRefreshTokenInvalid)
		}
		if err := e.sessions.Touch(ctx, claims.SID); err != nil {
			e.logger.WarnContext(ctx, "session touch failed", "session_id", claims.SID, "error", err)
		}
	}

	access, exp, err := e.jwt.Issue(jwt.KindAccess, jwt.Subject{
		AccountID: a.ID,
		Email:     a.Email,
		Role:      string(a.Role),
		SessionID: claims.SID,
	})
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, a.ID, claims.SID, true, nil, nil)
	return &RefreshResult{AccessToken: access, ExpiresAt: exp}, nil
}

func (e *Engine) refreshFailed(ctx context.Context, accountID int64, err error) error {
	if errors.Is(err, ErrRefreshTokenExpired) {
		e.metricInc(MetricRefreshExpired)
	} else {
		e.metricInc(MetricRefreshInvalid)
	}
	e.emitAudit(ctx, auditEventRefreshFailure, accountID, 0, false, err, nil)
	return err
}
