package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/swahilipot/hubauth"
)

// gracefulShutdownTimeout bounds how long Close waits for in-flight
// requests.
const gracefulShutdownTimeout = 10 * time.Second

const defaultMaxBodyBytes = 1 << 20

// Config holds listener and browser-facing settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	MaxBodyBytes int64

	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxy bool

	CORS CORSConfig
	CSRF CSRFConfig
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type CSRFConfig struct {
	SecureCookie bool
	ExemptPaths  []string
}

// Pinger is the health check against the backing database. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps holds what the server needs. Engine is required. DB and Metrics are
// optional: without DB /health always reports ok, without Metrics the
// /metrics route is not mounted.
type Deps struct {
	Config  Config
	Engine  *hubauth.Engine
	DB      Pinger
	Metrics http.Handler
	Logger  *slog.Logger
	Version string
}

// Server is the HTTP front of the engine.
type Server struct {
	cfg     Config
	engine  *hubauth.Engine
	db      Pinger
	metrics http.Handler
	logger  *slog.Logger
	version string
	started time.Time

	handler http.Handler
	server  *http.Server
}

// New wires the router. The listener is not opened until Start.
func New(deps Deps) (*Server, error) {
	if deps.Engine == nil {
		return nil, errors.New("httpapi: engine is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg := deps.Config
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	s := &Server{
		cfg:     cfg,
		engine:  deps.Engine,
		db:      deps.DB,
		metrics: deps.Metrics,
		logger:  logger.With("component", "http"),
		version: deps.Version,
		started: time.Now(),
	}
	s.handler = s.buildRouter()

	return s, nil
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start binds the listener and serves in the background. Bind errors are
// returned; serve errors after that are logged.
func (s *Server) Start(ctx context.Context) error {
	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen %s: %w", s.cfg.Addr, err)
	}

	s.server = &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	s.logger.Info("API server starting", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close waits up to ten seconds for in-flight requests, then gives up.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.ErrorContext(r.Context(), "health check failed", "error", err, "request_id", RequestID(r.Context()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":   "error",
				"database": "disconnected",
				"message":  "Database connection failed.",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"database":   "connected",
		"serverTime": time.Now().UTC().Format(time.RFC3339),
		"uptime":     int64(time.Since(s.started).Seconds()),
		"version":    s.version,
	})
}
