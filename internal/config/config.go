package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/swahilipot/hubauth"
)

// Config is the root configuration of hubauthd.
type Config struct {
	Production bool           `yaml:"production"`
	Server     ServerConfig   `yaml:"server"`
	Database   DatabaseConfig `yaml:"database"`
	Redis      RedisConfig    `yaml:"redis"`
	JWT        JWTConfig      `yaml:"jwt"`
	Auth       AuthConfig     `yaml:"auth"`
	Mail       MailConfig     `yaml:"mail"`
	Logging    LoggingConfig  `yaml:"logging"`
	Metrics    MetricsConfig  `yaml:"metrics"`
	Sessions   SessionsConfig `yaml:"sessions"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	TrustProxy     bool          `yaml:"trust_proxy"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	CSRFExempt     []string      `yaml:"csrf_exempt"`
}

// DatabaseConfig selects the SQL backend.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // "sqlite" or "postgres"
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// RedisConfig enables rate limiting and the TOTP throttle. Empty Addr
// disables both.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JWTConfig holds signing material. With hs256, Secret signs access tokens
// and RefreshSecret, when set, signs refresh tokens. With ed25519 the key
// files hold PEM encoded keys.
type JWTConfig struct {
	SigningMethod  string        `yaml:"signing_method"`
	Secret         string        `yaml:"secret"`
	RefreshSecret  string        `yaml:"refresh_secret"`
	PrivateKeyFile string        `yaml:"private_key_file"`
	PublicKeyFile  string        `yaml:"public_key_file"`
	Issuer         string        `yaml:"issuer"`
	AccessTTL      time.Duration `yaml:"access_ttl"`
	RefreshTTL     time.Duration `yaml:"refresh_ttl"`
}

// AuthConfig carries the account policy knobs.
type AuthConfig struct {
	ReservedEmails        []string      `yaml:"reserved_emails"`
	PasswordAlgorithm     string        `yaml:"password_algorithm"`
	LockoutThreshold      int           `yaml:"lockout_threshold"`
	LockoutDuration       time.Duration `yaml:"lockout_duration"`
	RevealRemaining       bool          `yaml:"reveal_remaining"`
	UniformResend         bool          `yaml:"uniform_resend"`
	RevokeSessionsOnReset bool          `yaml:"revoke_sessions_on_reset"`
	ValidationMode        string        `yaml:"validation_mode"` // "jwt_only" or "strict"
	TOTPIssuer            string        `yaml:"totp_issuer"`
	TOTPReplayProtection  bool          `yaml:"totp_replay_protection"`
	Audit                 bool          `yaml:"audit"`
}

// MailConfig selects the mail sender. Driver "log" writes messages to the
// logger instead of sending them.
type MailConfig struct {
	Driver      string `yaml:"driver"` // "smtp" or "log"
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	From        string `yaml:"from"`
	FrontendURL string `yaml:"frontend_url"`
	Brand       string `yaml:"brand"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SessionsConfig controls session tracking and the purge loop.
type SessionsConfig struct {
	Track         bool          `yaml:"track"`
	PurgeInterval time.Duration `yaml:"purge_interval"`
}

// Load reads the YAML file at path (skipped when path is empty), applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":3000",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxBodyBytes:   1 << 20,
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "file:hubauth.db?_busy_timeout=5000",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		JWT: JWTConfig{
			SigningMethod: "hs256",
			Issuer:        "hubauth",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
		},
		Auth: AuthConfig{
			PasswordAlgorithm:     "bcrypt",
			LockoutThreshold:      5,
			LockoutDuration:       30 * time.Minute,
			RevealRemaining:       true,
			RevokeSessionsOnReset: true,
			ValidationMode:        "jwt_only",
			TOTPIssuer:            "SwahiliPot Hub",
		},
		Mail: MailConfig{
			Driver:      "log",
			Port:        587,
			FrontendURL: "http://localhost:5173",
			Brand:       "SwahiliPot Hub",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Sessions: SessionsConfig{
			Track:         true,
			PurgeInterval: time.Hour,
		},
	}
}

// applyEnvOverrides applies HUBAUTH_SECTION_KEY variables.
func applyEnvOverrides(cfg *Config) error {
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	var errs []string
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", key, err))
				return
			}
			*dst = n
		}
	}
	list := func(key string, dst *[]string) {
		if v := os.Getenv(key); v != "" {
			var out []string
			for _, item := range strings.Split(v, ",") {
				if item = strings.TrimSpace(item); item != "" {
					out = append(out, item)
				}
			}
			*dst = out
		}
	}

	boolean("HUBAUTH_PRODUCTION", &cfg.Production)

	str("HUBAUTH_SERVER_ADDR", &cfg.Server.Addr)
	boolean("HUBAUTH_SERVER_TRUST_PROXY", &cfg.Server.TrustProxy)
	list("HUBAUTH_SERVER_ALLOWED_ORIGINS", &cfg.Server.AllowedOrigins)

	str("HUBAUTH_DATABASE_DRIVER", &cfg.Database.Driver)
	str("HUBAUTH_DATABASE_DSN", &cfg.Database.DSN)
	integer("HUBAUTH_DATABASE_MAX_OPEN_CONNS", &cfg.Database.MaxOpenConns)

	str("HUBAUTH_REDIS_ADDR", &cfg.Redis.Addr)
	str("HUBAUTH_REDIS_PASSWORD", &cfg.Redis.Password)

	str("HUBAUTH_JWT_SECRET", &cfg.JWT.Secret)
	str("HUBAUTH_JWT_REFRESH_SECRET", &cfg.JWT.RefreshSecret)
	str("HUBAUTH_JWT_PRIVATE_KEY_FILE", &cfg.JWT.PrivateKeyFile)
	str("HUBAUTH_JWT_PUBLIC_KEY_FILE", &cfg.JWT.PublicKeyFile)

	list("HUBAUTH_AUTH_RESERVED_EMAILS", &cfg.Auth.ReservedEmails)
	str("HUBAUTH_AUTH_VALIDATION_MODE", &cfg.Auth.ValidationMode)

	str("HUBAUTH_MAIL_DRIVER", &cfg.Mail.Driver)
	str("HUBAUTH_MAIL_HOST", &cfg.Mail.Host)
	integer("HUBAUTH_MAIL_PORT", &cfg.Mail.Port)
	str("HUBAUTH_MAIL_USERNAME", &cfg.Mail.Username)
	str("HUBAUTH_MAIL_PASSWORD", &cfg.Mail.Password)
	str("HUBAUTH_MAIL_FROM", &cfg.Mail.From)
	str("HUBAUTH_MAIL_FRONTEND_URL", &cfg.Mail.FrontendURL)

	str("HUBAUTH_LOGGING_LEVEL", &cfg.Logging.Level)
	str("HUBAUTH_LOGGING_FORMAT", &cfg.Logging.Format)

	if len(errs) > 0 {
		return fmt.Errorf("environment overrides: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the configuration for errors and unsafe production
// settings.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Addr == "" {
		errs = append(errs, "server.addr is required")
	}

	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "sqlite3", "postgres", "postgresql", "pgx":
	default:
		errs = append(errs, "database.driver must be sqlite or postgres")
	}
	if c.Database.DSN == "" {
		errs = append(errs, "database.dsn is required")
	}

	switch strings.ToLower(c.JWT.SigningMethod) {
	case "hs256":
		const minSecretLength = 32
		if len(c.JWT.Secret) < minSecretLength {
			errs = append(errs, "jwt.secret must be at least 32 characters (set HUBAUTH_JWT_SECRET)")
		}
		if c.JWT.RefreshSecret != "" && len(c.JWT.RefreshSecret) < minSecretLength {
			errs = append(errs, "jwt.refresh_secret must be at least 32 characters")
		}
	case "ed25519":
		if c.JWT.PrivateKeyFile == "" || c.JWT.PublicKeyFile == "" {
			errs = append(errs, "jwt.private_key_file and jwt.public_key_file are required for ed25519")
		}
	default:
		errs = append(errs, "jwt.signing_method must be hs256 or ed25519")
	}

	if _, err := parseValidationMode(c.Auth.ValidationMode); err != nil {
		errs = append(errs, err.Error())
	}
	if strings.EqualFold(c.Auth.ValidationMode, "strict") && !c.Sessions.Track {
		errs = append(errs, "auth.validation_mode strict requires sessions.track")
	}

	switch strings.ToLower(c.Mail.Driver) {
	case "log":
	case "smtp":
		if c.Mail.Host == "" || c.Mail.From == "" {
			errs = append(errs, "mail.host and mail.from are required for the smtp driver")
		}
	default:
		errs = append(errs, "mail.driver must be smtp or log")
	}

	if c.Production {
		if strings.EqualFold(c.Mail.Driver, "log") {
			errs = append(errs, "mail.driver log is not allowed in production")
		}
		if c.Redis.Addr == "" {
			errs = append(errs, "redis.addr is required in production")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func parseValidationMode(s string) (hubauth.ValidationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "jwt_only", "jwt-only":
		return hubauth.ModeJWTOnly, nil
	case "strict":
		return hubauth.ModeStrict, nil
	default:
		return 0, fmt.Errorf("auth.validation_mode must be jwt_only or strict, got %q", s)
	}
}

// EngineConfig translates the file settings into a hubauth.Config, reading
// key files as needed.
func (c *Config) EngineConfig() (hubauth.Config, error) {
	cfg := hubauth.DefaultConfig()

	cfg.JWT.SigningMethod = strings.ToLower(c.JWT.SigningMethod)
	cfg.JWT.Issuer = c.JWT.Issuer
	cfg.JWT.AccessTTL = c.JWT.AccessTTL
	cfg.JWT.RefreshTTL = c.JWT.RefreshTTL
	switch cfg.JWT.SigningMethod {
	case "ed25519":
		priv, err := os.ReadFile(c.JWT.PrivateKeyFile)
		if err != nil {
			return hubauth.Config{}, fmt.Errorf("reading jwt private key: %w", err)
		}
		pub, err := os.ReadFile(c.JWT.PublicKeyFile)
		if err != nil {
			return hubauth.Config{}, fmt.Errorf("reading jwt public key: %w", err)
		}
		cfg.JWT.PrivateKey = priv
		cfg.JWT.PublicKey = pub
	default:
		cfg.JWT.PrivateKey = []byte(c.JWT.Secret)
		if c.JWT.RefreshSecret != "" {
			cfg.JWT.RefreshKey = []byte(c.JWT.RefreshSecret)
		}
	}

	if c.Auth.PasswordAlgorithm != "" {
		cfg.Password.Algorithm = c.Auth.PasswordAlgorithm
	}
	cfg.Lockout.Threshold = c.Auth.LockoutThreshold
	cfg.Lockout.Duration = c.Auth.LockoutDuration
	cfg.Lockout.RevealRemaining = c.Auth.RevealRemaining
	cfg.Signup.ReservedEmails = append([]string(nil), c.Auth.ReservedEmails...)
	cfg.EmailVerification.UniformResend = c.Auth.UniformResend
	cfg.PasswordReset.RevokeSessions = c.Auth.RevokeSessionsOnReset
	if c.Auth.TOTPIssuer != "" {
		cfg.TOTP.Issuer = c.Auth.TOTPIssuer
	}
	cfg.TOTP.EnforceReplayProtection = c.Auth.TOTPReplayProtection
	cfg.Audit.Enabled = c.Auth.Audit
	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Session.TrackOnLogin = c.Sessions.Track
	cfg.Security.ProductionMode = c.Production

	mode, err := parseValidationMode(c.Auth.ValidationMode)
	if err != nil {
		return hubauth.Config{}, err
	}
	cfg.ValidationMode = mode

	if err := cfg.Validate(); err != nil {
		return hubauth.Config{}, errors.Join(errors.New("engine config"), err)
	}
	return cfg, nil
}
