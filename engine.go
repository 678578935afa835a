package hubauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/swahilipot/hubauth/account"
	"github.com/swahilipot/hubauth/internal/audit"
	"github.com/swahilipot/hubauth/internal/limiters"
	"github.com/swahilipot/hubauth/internal/rate"
	"github.com/swahilipot/hubauth/jwt"
	"github.com/swahilipot/hubauth/password"
	"github.com/swahilipot/hubauth/session"
)

const (
	maxEmailLength = 254
	maxNameLength  = 100
)

// Engine orchestrates every authentication flow. It is safe for concurrent
// use once built and holds no per-account state in memory.
type Engine struct {
	config      Config
	accounts    account.Store
	sessions    *session.Registry
	jwt         *jwt.Manager
	hasher      password.Hasher
	dummyHash   string
	lockout     limiters.LockoutPolicy
	rate        *rate.Limiter
	totp        *totpManager
	totpLimiter *limiters.TOTPLimiter
	replay      *limiters.ReplayGuard
	notifier    Notifier
	audit       *audit.Dispatcher
	metrics     *Metrics
	logger      *slog.Logger
	now         func() time.Time
	reserved    map[string]struct{}
}

// Close drains the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Sessions exposes the registry for maintenance jobs. It is nil when no
// session store was configured.
func (e *Engine) Sessions() *session.Registry {
	if e == nil {
		return nil
	}
	return e.sessions
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

// allow applies an upstream fixed window. Redis failures are logged and let
// through: the account lockout still protects credentials.
func (e *Engine) allow(ctx context.Context, action rate.Action, keys ...string) error {
	if e.rate == nil {
		return nil
	}
	err := e.rate.Allow(ctx, action, keys...)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		e.metricInc(MetricRateLimitHit)
		e.emitAudit(ctx, auditEventRateLimited, 0, 0, false, ErrRateLimited, func() map[string]string {
			return map[string]string{"action": string(action)}
		})
		return ErrRateLimited
	default:
		e.logger.WarnContext(ctx, "rate limiter unavailable", "action", string(action), "error", err)
		return nil
	}
}

// Validate checks an access token. mode overrides the engine-wide
// ValidationMode unless it is ModeInherit. In strict mode a token bound to a
// session (sid claim) is accepted only while that session is active.
func (e *Engine) Validate(ctx context.Context, token string, mode RouteMode) (*AuthResult, error) {
	if e == nil || e.jwt == nil {
		return nil, ErrEngineNotReady
	}
	start := time.Now()
	defer func() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}()

	if mode == ModeInherit {
		mode = e.config.ValidationMode
	}

	claims, err := e.jwt.Parse(jwt.KindAccess, token)
	if err != nil {
		return nil, ErrUnauthorized
	}

	if mode == ModeStrict && claims.SID != 0 {
		if e.sessions == nil {
			return nil, ErrStrictBackendDown
		}
		active, err := e.sessions.Active(ctx, claims.SID)
		if err != nil {
			e.logger.ErrorContext(ctx, "strict session check failed", "session_id", claims.SID, "error", err)
			return nil, ErrStrictBackendDown
		}
		if !active {
			return nil, ErrUnauthorized
		}
		if err := e.sessions.Touch(ctx, claims.SID); err != nil {
			e.logger.WarnContext(ctx, "session touch failed", "session_id", claims.SID, "error", err)
		}
	}

	res := &AuthResult{
		AccountID: claims.UID,
		Email:     claims.Email,
		Role:      claims.Role,
		SessionID: claims.SID,
	}
	if claims.ExpiresAt != nil {
		res.ExpiresAt = claims.ExpiresAt.Time
	}
	return res, nil
}

// Me returns the public view of accountID.
func (e *Engine) Me(ctx context.Context, accountID int64) (*User, error) {
	a, err := e.loadAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	u := userView(a)
	return &u, nil
}

// CreateSession records a session for accountID. It does not issue tokens;
// pass the returned session ID to IssueTokens to bind them.
func (e *Engine) CreateSession(ctx context.Context, accountID int64, device session.Device) (session.Session, string, error) {
	if e.sessions == nil {
		return session.Session{}, "", ErrSessionTrackingDisabled
	}
	s, token, err := e.sessions.Create(ctx, accountID, device)
	if err != nil {
		return session.Session{}, "", fmt.Errorf("create session: %w", err)
	}
	e.metricInc(MetricSessionCreated)
	return s, token, nil
}

// IssueTokens signs an access and a refresh token for a. A non-zero
// sessionID is embedded as the sid claim.
func (e *Engine) IssueTokens(a *account.Account, sessionID int64) (TokenPair, error) {
	access, accessExp, err := e.jwt.Issue(jwt.KindAccess, jwt.Subject{
		AccountID: a.ID,
		Email:     a.Email,
		Role:      string(a.Role),
		SessionID: sessionID,
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshExp, err := e.jwt.Issue(jwt.KindRefresh, jwt.Subject{
		AccountID: a.ID,
		Email:     a.Email,
		SessionID: sessionID,
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
		SessionID:        sessionID,
	}, nil
}

// completeLogin creates a session when tracking is on and issues tokens.
func (e *Engine) completeLogin(ctx context.Context, a *account.Account) (TokenPair, error) {
	if !e.config.Session.TrackOnLogin || e.sessions == nil {
		return e.IssueTokens(a, 0)
	}

	s, sessionToken, err := e.CreateSession(ctx, a.ID, session.Device{
		UserAgent: userAgentFromContext(ctx),
		IP:        clientIPFromContext(ctx),
	})
	if err != nil {
		return TokenPair{}, err
	}
	pair, err := e.IssueTokens(a, s.ID)
	if err != nil {
		return TokenPair{}, err
	}
	pair.SessionToken = sessionToken
	return pair, nil
}

func (e *Engine) hashPassword(pw string) (string, error) {
	hash, err := e.hasher.Hash(pw)
	switch {
	case errors.Is(err, password.ErrPasswordTooLong):
		return "", invalid("Password is too long")
	case errors.Is(err, password.ErrEmptyPassword):
		return "", invalid("Password is required")
	case err != nil:
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func (e *Engine) checkPasswordPolicy(pw string) error {
	if utf8.RuneCountInString(pw) < e.config.Password.MinLength {
		return invalid(fmt.Sprintf("Password must be at least %d characters", e.config.Password.MinLength))
	}
	return nil
}

// normalizeEmailInput returns the stored form of email or a validation
// error.
func normalizeEmailInput(email string) (string, error) {
	email = account.NormalizeEmail(email)
	if email == "" {
		return "", invalid("Email is required")
	}
	if len(email) > maxEmailLength {
		return "", invalid("Valid email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return "", invalid("Valid email is required")
	}
	return email, nil
}

func (e *Engine) notifyErr(ctx context.Context, kind string, accountID int64, err error) {
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to queue email", "kind", kind, "account_id", accountID, "error", err)
	}
}
