package csrf

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/swahilipot/hubauth/internal"
)

const (
	DefaultCookieName = "csrf_token"
	DefaultHeaderName = "X-CSRF-Token"
	DefaultMaxAge     = 24 * time.Hour

	CodeMissing = "CSRF_TOKEN_MISSING"
	CodeInvalid = "CSRF_TOKEN_INVALID"
)

// Config controls the cookie and the exempt paths. Zero values fall back to
// the defaults above.
type Config struct {
	CookieName string
	HeaderName string
	MaxAge     time.Duration
	// Secure marks the cookie Secure. Set it in production.
	Secure bool
	// ExemptPaths are matched exactly against r.URL.Path.
	ExemptPaths []string
	// OnReject writes the 403 response. The default writes
	// {"error": message, "code": code}.
	OnReject func(w http.ResponseWriter, r *http.Request, code, message string)
	Logger   *slog.Logger
}

type tokenContextKey struct{}

// Token returns the token in effect for the request: the cookie value, or
// the one minted by Middleware when the request carried none.
func Token(ctx context.Context) string {
	v, _ := ctx.Value(tokenContextKey{}).(string)
	return v
}

// NewToken returns a fresh random token.
func NewToken() (string, error) {
	return internal.NewOpaqueToken(internal.CSRFTokenBytes)
}

// Middleware mints the cookie when missing and enforces the double-submit
// check on every method except GET, HEAD and OPTIONS.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	cfg = withDefaults(cfg)
	exempt := make(map[string]struct{}, len(cfg.ExemptPaths))
	for _, p := range cfg.ExemptPaths {
		exempt[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var cookieToken string
			if c, err := r.Cookie(cfg.CookieName); err == nil {
				cookieToken = c.Value
			}

			effective := cookieToken
			if effective == "" {
				minted, err := NewToken()
				if err != nil {
					cfg.Logger.ErrorContext(r.Context(), "csrf token generation failed", "error", err)
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				setCookie(w, cfg, minted)
				effective = minted
			}
			r = r.WithContext(context.WithValue(r.Context(), tokenContextKey{}, effective))

			if safeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := exempt[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			headerToken := r.Header.Get(cfg.HeaderName)
			if cookieToken == "" || headerToken == "" {
				cfg.OnReject(w, r, CodeMissing, "CSRF token missing. Please include X-CSRF-Token header.")
				return
			}
			if !wellFormed(cookieToken) || !wellFormed(headerToken) {
				cfg.OnReject(w, r, CodeInvalid, "Invalid CSRF token format.")
				return
			}
			if subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) != 1 {
				cfg.Logger.WarnContext(r.Context(), "csrf validation failed", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
				cfg.OnReject(w, r, CodeInvalid, "Invalid CSRF token.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenHandler serves {"csrfToken": value}. It must be mounted behind
// Middleware so that a token is always available.
func TokenHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(map[string]string{"csrfToken": Token(r.Context())})
}

func withDefaults(cfg Config) Config {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.OnReject == nil {
		cfg.OnReject = writeJSONError
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

func setCookie(w http.ResponseWriter, cfg Config, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(cfg.MaxAge / time.Second),
		HttpOnly: false,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func wellFormed(token string) bool {
	if len(token) != internal.CSRFTokenBytes*2 {
		return false
	}
	_, err := hex.DecodeString(token)
	return err == nil
}

func writeJSONError(w http.ResponseWriter, _ *http.Request, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
