package hubauth

import (
	"errors"
	"strings"
	"time"

	"github.com/swahilipot/hubauth/internal/limiters"
	"github.com/swahilipot/hubauth/password"
)

// Config is the complete Engine configuration. Start from DefaultConfig and
// override fields; Build validates the result.
type Config struct {
	JWT               JWTConfig
	Password          PasswordConfig
	Lockout           LockoutConfig
	Signup            SignupConfig
	EmailVerification EmailVerificationConfig
	PasswordReset     PasswordResetConfig
	TOTP              TOTPConfig
	Session           SessionConfig
	RateLimit         RateLimitConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
	Security          SecurityConfig
	ValidationMode    ValidationMode
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures signed tokens. With "hs256", PrivateKey is the access
// secret and RefreshKey, when set, signs refresh tokens.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	TempTTL       time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	RefreshKey    []byte
	KeyID         string
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the hashing algorithm for new hashes. Both formats
// are always accepted on verification.
type PasswordConfig struct {
	Algorithm      string // "bcrypt" (default) or "argon2id"
	BcryptCost     int
	Memory         uint32 // argon2id, in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	MinLength      int
	UpgradeOnLogin bool
}

/*
====================================
LOCKOUT / SIGNUP
====================================
*/

// LockoutConfig drives the failed-login state machine.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
	// RevealRemaining includes the remaining attempt count in failure
	// messages.
	RevealRemaining bool
}

type SignupConfig struct {
	// ReservedEmails cannot be registered through Signup. Compared
	// case-insensitively.
	ReservedEmails []string
}

/*
====================================
VERIFICATION / RESET
====================================
*/

type EmailVerificationConfig struct {
	TokenTTL time.Duration
	// UniformResend answers resend requests for verified accounts with the
	// same generic message as unknown addresses.
	UniformResend bool
}

type PasswordResetConfig struct {
	TokenTTL time.Duration
	// RevokeSessions revokes every session of the account after a reset.
	RevokeSessions bool
}

/*
====================================
TOTP / SESSION
====================================
*/

type TOTPConfig struct {
	Issuer string
	Digits int
	Period uint
	Skew   uint
	// EnforceReplayProtection rejects a code already accepted for the same
	// account inside its validity window. Requires Redis.
	EnforceReplayProtection bool
	MaxAttempts             int
	AttemptWindow           time.Duration
}

type SessionConfig struct {
	// TrackOnLogin creates a session record on every completed login and
	// binds issued tokens to it through the sid claim.
	TrackOnLogin  bool
	TouchInterval time.Duration
}

/*
====================================
RATE LIMIT / AUDIT / METRICS
====================================
*/

// RateRule is a fixed window applied per email and per client IP.
type RateRule struct {
	Limit  int
	Window time.Duration
}

// RateLimitConfig is enforced only when a Redis client is supplied.
type RateLimitConfig struct {
	Prefix         string
	Login          RateRule
	Signup         RateRule
	ForgotPassword RateRule
	Resend         RateRule
	TOTPVerify     RateRule
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

type SecurityConfig struct {
	ProductionMode bool
}

// ValidationMode selects how access tokens are checked.
type ValidationMode int

const (
	// ModeInherit defers to the engine-wide mode. Valid only per route.
	ModeInherit ValidationMode = -1
	// ModeJWTOnly trusts signature and expiry alone.
	ModeJWTOnly ValidationMode = iota
	// ModeStrict additionally requires the session named by the sid claim
	// to be active.
	ModeStrict
)

// RouteMode is the per-route override accepted by Engine.Validate.
type RouteMode = ValidationMode

func (m ValidationMode) String() string {
	switch m {
	case ModeInherit:
		return "inherit"
	case ModeStrict:
		return "strict"
	default:
		return "jwt_only"
	}
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the documented defaults. Signing keys are empty and
// must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			TempTTL:       5 * time.Minute,
			SigningMethod: "hs256",
			Issuer:        "hubauth",
		},
		Password: PasswordConfig{
			Algorithm:      "bcrypt",
			BcryptCost:     password.DefaultBcryptCost,
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			MinLength:      8,
			UpgradeOnLogin: true,
		},
		Lockout: LockoutConfig{
			Threshold:       5,
			Duration:        30 * time.Minute,
			RevealRemaining: true,
		},
		EmailVerification: EmailVerificationConfig{
			TokenTTL: 24 * time.Hour,
		},
		PasswordReset: PasswordResetConfig{
			TokenTTL:       time.Hour,
			RevokeSessions: true,
		},
		TOTP: TOTPConfig{
			Issuer:        "hubauth",
			Digits:        6,
			Period:        30,
			Skew:          1,
			MaxAttempts:   5,
			AttemptWindow: time.Minute,
		},
		Session: SessionConfig{
			TrackOnLogin:  false,
			TouchInterval: 5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Prefix:         "hubauth:rl:",
			Login:          RateRule{Limit: 20, Window: 15 * time.Minute},
			Signup:         RateRule{Limit: 5, Window: time.Hour},
			ForgotPassword: RateRule{Limit: 5, Window: time.Hour},
			Resend:         RateRule{Limit: 5, Window: time.Hour},
			TOTPVerify:     RateRule{Limit: 10, Window: 5 * time.Minute},
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		ValidationMode: ModeJWTOnly,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.JWT.RefreshKey = cloneBytes(cfg.JWT.RefreshKey)
	if cfg.Signup.ReservedEmails != nil {
		out.Signup.ReservedEmails = append([]string(nil), cfg.Signup.ReservedEmails...)
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c *Config) lockoutPolicy() limiters.LockoutPolicy {
	return limiters.LockoutPolicy{Threshold: c.Lockout.Threshold, Duration: c.Lockout.Duration}
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks internal consistency. Key material is checked by the JWT
// manager at Build time.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 || c.JWT.RefreshTTL <= 0 || c.JWT.TempTTL <= 0 {
		return errors.New("JWT TTLs must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if c.JWT.TempTTL > 15*time.Minute {
		return errors.New("JWT TempTTL must be <= 15m")
	}
	switch strings.ToLower(c.JWT.SigningMethod) {
	case "hs256", "ed25519":
	default:
		return errors.New("JWT SigningMethod must be hs256 or ed25519")
	}

	// Password
	switch c.Password.Algorithm {
	case "bcrypt", "argon2id":
	default:
		return errors.New("Password Algorithm must be bcrypt or argon2id")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}

	// Lockout
	if err := c.lockoutPolicy().Validate(); err != nil {
		return err
	}

	// Tokens
	if c.EmailVerification.TokenTTL <= 0 {
		return errors.New("EmailVerification TokenTTL must be > 0")
	}
	if c.PasswordReset.TokenTTL <= 0 {
		return errors.New("PasswordReset TokenTTL must be > 0")
	}

	// TOTP
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Period == 0 || c.TOTP.Period > 120 {
		return errors.New("TOTP Period must be in 1..120 seconds")
	}
	if c.TOTP.Skew > 3 {
		return errors.New("TOTP Skew must be <= 3")
	}
	if strings.TrimSpace(c.TOTP.Issuer) == "" {
		return errors.New("TOTP Issuer must be set")
	}

	// Session
	if c.Session.TouchInterval < 0 {
		return errors.New("Session TouchInterval must be >= 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	switch c.ValidationMode {
	case ModeJWTOnly, ModeStrict:
	default:
		return errors.New("invalid ValidationMode")
	}

	if c.Security.ProductionMode {
		if c.Lockout.Threshold > 10 {
			return errors.New("ProductionMode requires Lockout Threshold <= 10")
		}
		if c.JWT.AccessTTL > time.Hour {
			return errors.New("ProductionMode requires JWT AccessTTL <= 1h")
		}
		if c.Password.Algorithm == "bcrypt" && c.Password.BcryptCost < password.DefaultBcryptCost {
			return errors.New("ProductionMode requires Password BcryptCost >= 12")
		}
	}

	return nil
}
