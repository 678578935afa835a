package hubauth

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/swahilipot/hubauth/account"
	"github.com/swahilipot/hubauth/internal/audit"
	"github.com/swahilipot/hubauth/internal/limiters"
	"github.com/swahilipot/hubauth/internal/rate"
	"github.com/swahilipot/hubauth/jwt"
	"github.com/swahilipot/hubauth/password"
	"github.com/swahilipot/hubauth/session"
)

// Builder collects dependencies for an Engine. A Builder can be built once.
type Builder struct {
	config Config

	accounts account.Store
	sessions session.Store
	redis    redis.UniversalClient

	notifier  Notifier
	auditSink AuditSink
	logger    *slog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithAccountStore sets the credential store. Required.
func (b *Builder) WithAccountStore(store account.Store) *Builder {
	b.accounts = store
	return b
}

// WithSessionStore enables the session registry. Required for ModeStrict and
// Session.TrackOnLogin.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.sessions = store
	return b
}

// WithRedis enables rate limiting, the TOTP attempt throttle and, when
// configured, TOTP replay protection.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now for every time-dependent decision, including
// token issuance and verification.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.accounts == nil {
		return nil, errors.New("account store required")
	}
	if b.sessions == nil {
		if cfg.ValidationMode == ModeStrict {
			return nil, errors.New("Strict mode requires a session store")
		}
		if cfg.Session.TrackOnLogin {
			return nil, errors.New("Session TrackOnLogin requires a session store")
		}
	}
	if b.redis == nil && cfg.TOTP.EnforceReplayProtection {
		return nil, errors.New("TOTP EnforceReplayProtection requires redis client")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	engine := &Engine{
		config:   cloneConfig(cfg),
		accounts: b.accounts,
		lockout:  cfg.lockoutPolicy(),
		totp:     newTOTPManager(cfg.TOTP),
		metrics:  NewMetrics(cfg.Metrics),
		logger:   logger.With("component", "hubauth"),
		now:      now,
		reserved: make(map[string]struct{}, len(cfg.Signup.ReservedEmails)),
	}
	for _, email := range cfg.Signup.ReservedEmails {
		if email = account.NormalizeEmail(email); email != "" {
			engine.reserved[email] = struct{}{}
		}
	}

	engine.notifier = b.notifier
	if engine.notifier == nil {
		engine.notifier = nopNotifier{}
	}

	// -------- SESSIONS --------
	if b.sessions != nil {
		registry, err := session.NewRegistry(b.sessions, session.Config{
			TTL:           cfg.JWT.RefreshTTL,
			TouchInterval: cfg.Session.TouchInterval,
		}, session.WithClock(now))
		if err != nil {
			return nil, err
		}
		engine.sessions = registry
	}

	// -------- REDIS-BACKED LIMITERS --------
	if b.redis != nil {
		engine.rate = rate.New(b.redis, rate.Config{
			Prefix: cfg.RateLimit.Prefix,
			Rules: map[rate.Action]rate.Rule{
				rate.ActionLogin:          rate.Rule(cfg.RateLimit.Login),
				rate.ActionSignup:         rate.Rule(cfg.RateLimit.Signup),
				rate.ActionForgotPassword: rate.Rule(cfg.RateLimit.ForgotPassword),
				rate.ActionResend:         rate.Rule(cfg.RateLimit.Resend),
				rate.ActionTOTPVerify:     rate.Rule(cfg.RateLimit.TOTPVerify),
			},
		})
		engine.totpLimiter = limiters.NewTOTPLimiter(b.redis, limiters.TOTPLimiterConfig{
			MaxAttempts: cfg.TOTP.MaxAttempts,
			Cooldown:    cfg.TOTP.AttemptWindow,
		})
		if cfg.TOTP.EnforceReplayProtection {
			engine.replay = limiters.NewReplayGuard(b.redis, engine.totp.ReplayWindow())
		}
	}

	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	// -------- PASSWORDS --------
	hasher, err := newHasher(cfg.Password)
	if err != nil {
		return nil, err
	}
	engine.hasher = hasher

	// Unknown emails are verified against this hash so both paths cost the
	// same.
	dummy, err := hasher.Hash("hubauth-timing-equalizer")
	if err != nil {
		return nil, err
	}
	engine.dummyHash = dummy

	// -------- JWT --------
	jm, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.JWT.SigningMethod)),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		RefreshKey:    cloneBytes(cfg.JWT.RefreshKey),
		KeyID:         cfg.JWT.KeyID,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		TempTTL:       cfg.JWT.TempTTL,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		Now:           now,
	})
	if err != nil {
		engine.audit.Close()
		return nil, err
	}
	engine.jwt = jm

	b.built = true

	return engine, nil
}

func newHasher(cfg PasswordConfig) (password.Hasher, error) {
	bc, err := password.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	a2, err := password.NewArgon2(password.Argon2Config{
		Memory:      cfg.Memory,
		Time:        cfg.Time,
		Parallelism: cfg.Parallelism,
		SaltLength:  cfg.SaltLength,
		KeyLength:   cfg.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	multi := &password.Multi{Bcrypt: bc, Argon2: a2, Primary: bc}
	if cfg.Algorithm == "argon2id" {
		multi.Primary = a2
	}
	return multi, nil
}
