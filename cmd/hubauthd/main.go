// hubauthd serves the hubauth engine over HTTP.
//
// Configuration is read from the YAML file named by -config (optional) and
// HUBAUTH_* environment variables. With -purge it removes dead sessions
// once and exits instead of serving.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/swahilipot/hubauth"
	"github.com/swahilipot/hubauth/httpapi"
	"github.com/swahilipot/hubauth/internal/config"
	"github.com/swahilipot/hubauth/internal/logging"
	"github.com/swahilipot/hubauth/mail"
	"github.com/swahilipot/hubauth/metrics/export/prometheus"
	"github.com/swahilipot/hubauth/session"
	"github.com/swahilipot/hubauth/sqlstore"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv("HUBAUTH_CONFIG"), "path to the YAML config file")
	purge := flag.Bool("purge", false, "purge expired and revoked sessions, then exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configPath, *purge); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string, purgeOnly bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, version)
	log.Info("starting hubauthd", "config", configPath, "production", cfg.Production)

	engineCfg, err := cfg.EngineConfig()
	if err != nil {
		return err
	}

	dialect, err := sqlstore.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return err
	}
	db, err := sqlstore.Open(ctx, sqlstore.Config{
		Dialect:         dialect,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database ready", "driver", dialect)

	builder := hubauth.New().
		WithConfig(engineCfg).
		WithAccountStore(db.Accounts()).
		WithLogger(log)
	if cfg.Sessions.Track {
		builder.WithSessionStore(db.Sessions())
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		if pingErr := rdb.Ping(ctx).Err(); pingErr != nil {
			// Rate limiting fails open, so a cold Redis is not fatal.
			log.Warn("redis unreachable at startup", "addr", cfg.Redis.Addr, "error", pingErr)
		}
		builder.WithRedis(rdb)
	}

	if engineCfg.Audit.Enabled {
		builder.WithAuditSink(hubauth.NewSlogSink(log.With("component", "audit")))
	}

	mailer, err := newMailer(cfg, engineCfg, log)
	if err != nil {
		return err
	}
	defer mailer.Close()
	builder.WithNotifier(mailer)

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}
	defer engine.Close()

	logSecurityReport(log, engine.SecurityReport())

	if purgeOnly {
		n, err := engine.PurgeSessions(ctx)
		if err != nil {
			return fmt.Errorf("purging sessions: %w", err)
		}
		log.Info("session purge complete", "count", n)
		return nil
	}

	if registry := engine.Sessions(); registry != nil {
		janitor := session.NewJanitor(registry, cfg.Sessions.PurgeInterval, log.With("component", "janitor"))
		go janitor.Run(ctx)
	}

	deps := httpapi.Deps{
		Config: httpapi.Config{
			Addr:         cfg.Server.Addr,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
			TrustProxy:   cfg.Server.TrustProxy,
			CORS:         httpapi.CORSConfig{AllowedOrigins: cfg.Server.AllowedOrigins},
			CSRF: httpapi.CSRFConfig{
				SecureCookie: cfg.Production,
				ExemptPaths:  cfg.Server.CSRFExempt,
			},
		},
		Engine:  engine,
		DB:      db.Conn(),
		Logger:  log,
		Version: version,
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = prometheus.NewExporter(engine).Handler()
	}

	srv, err := httpapi.New(deps)
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	log.Info("shutdown signal received")

	if err := srv.Close(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func newMailer(cfg *config.Config, engineCfg hubauth.Config, log *slog.Logger) (*mail.Mailer, error) {
	var sender mail.Sender
	switch strings.ToLower(cfg.Mail.Driver) {
	case "smtp":
		smtpSender, err := mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
		if err != nil {
			return nil, err
		}
		sender = smtpSender
	default:
		sender = mail.LogSender{Logger: log.With("component", "mail")}
	}

	return mail.New(sender, mail.Config{
		FrontendURL:     cfg.Mail.FrontendURL,
		Brand:           cfg.Mail.Brand,
		VerificationTTL: engineCfg.EmailVerification.TokenTTL,
		ResetTTL:        engineCfg.PasswordReset.TokenTTL,
		DropIfFull:      true,
		SendTimeout:     30 * time.Second,
	}, log)
}

func logSecurityReport(log *slog.Logger, r hubauth.SecurityReport) {
	log.Info("security posture",
		"production_mode", r.ProductionMode,
		"signing_algorithm", r.SigningAlgorithm,
		"validation_mode", r.ValidationMode.String(),
		"access_ttl", r.AccessTTL,
		"refresh_ttl", r.RefreshTTL,
		"password_algorithm", r.PasswordAlgorithm,
		"lockout_threshold", r.LockoutThreshold,
		"lockout_duration", r.LockoutDuration,
		"session_tracking", r.SessionTracking,
		"rate_limiting", r.RateLimitingActive,
		"totp_throttle", r.TOTPThrottleActive,
		"totp_replay_protection", r.TOTPReplayProtection,
		"audit", r.AuditActive,
	)
	if !r.RateLimitingActive {
		log.Warn("rate limiting disabled: no redis configured")
	}
}
