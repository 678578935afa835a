package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/swahilipot/hubauth"
	"github.com/swahilipot/hubauth/csrf"
	"github.com/swahilipot/hubauth/middleware"
)

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	if s.cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)
	r.Use(middleware.ClientInfo)
	r.Use(csrf.Middleware(csrf.Config{
		Secure:      s.cfg.CSRF.SecureCookie,
		ExemptPaths: s.cfg.CSRF.ExemptPaths,
		Logger:      s.logger,
	}))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	r.Get("/health", s.handleHealth)
	r.Get("/api/csrf-token", csrf.TokenHandler)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Post("/signup", s.handleSignup)
	r.Post("/login", s.handleLogin)
	r.Post("/verify-email", s.handleVerifyEmail)
	r.Post("/resend-verification", s.handleResendVerification)
	r.Post("/forgot-password", s.handleForgotPassword)
	r.Post("/reset-password", s.handleResetPassword)
	r.Post("/refresh-token", s.handleRefresh)
	r.Post("/auth/2fa/verify", s.handleVerify2FA)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Guard(s.engine, hubauth.ModeInherit))

		r.Get("/me", s.handleMe)

		r.Post("/auth/2fa/setup", s.handleSetup2FA)
		r.Post("/auth/2fa/enable", s.handleEnable2FA)
		r.Post("/auth/2fa/disable", s.handleDisable2FA)

		r.Get("/auth/sessions", s.handleListSessions)
		r.Delete("/auth/sessions", s.handleRevokeAllSessions)
		r.Delete("/auth/sessions/{id}", s.handleRevokeSession)
	})

	return r
}
