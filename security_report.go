package hubauth

import "time"

// SecurityReport summarizes the effective security posture of an Engine.
// The server logs it once at startup.
type SecurityReport struct {
	ProductionMode        bool
	SigningAlgorithm      string
	ValidationMode        ValidationMode
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	PasswordAlgorithm     string
	LockoutThreshold      int
	LockoutDuration       time.Duration
	RevealRemaining       bool
	UniformResend         bool
	SessionTracking       bool
	RevokeSessionsOnReset bool
	RateLimitingActive    bool
	TOTPThrottleActive    bool
	TOTPReplayProtection  bool
	AuditActive           bool
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	return SecurityReport{
		ProductionMode:        e.config.Security.ProductionMode,
		SigningAlgorithm:      e.config.JWT.SigningMethod,
		ValidationMode:        e.config.ValidationMode,
		AccessTTL:             e.config.JWT.AccessTTL,
		RefreshTTL:            e.config.JWT.RefreshTTL,
		PasswordAlgorithm:     e.config.Password.Algorithm,
		LockoutThreshold:      e.config.Lockout.Threshold,
		LockoutDuration:       e.config.Lockout.Duration,
		RevealRemaining:       e.config.Lockout.RevealRemaining,
		UniformResend:         e.config.EmailVerification.UniformResend,
		SessionTracking:       e.config.Session.TrackOnLogin && e.sessions != nil,
		RevokeSessionsOnReset: e.config.PasswordReset.RevokeSessions && e.sessions != nil,
		RateLimitingActive:    e.rate != nil,
		TOTPThrottleActive:    e.totpLimiter != nil,
		TOTPReplayProtection:  e.replay != nil,
		AuditActive:           e.audit != nil,
	}
}
