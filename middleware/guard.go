package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/swahilipot/hubauth"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the identity stored by Guard.
func AuthResultFromContext(ctx context.Context) (*hubauth.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*hubauth.AuthResult)
	return res, ok
}

// WithAuthResult stores res the way Guard does. Handlers under test use it
// to skip token validation.
func WithAuthResult(ctx context.Context, res *hubauth.AuthResult) context.Context {
	return context.WithValue(ctx, authResultContextKey{}, res)
}

// Guard requires a valid bearer access token. routeMode overrides the
// engine-wide validation mode unless it is hubauth.ModeInherit.
func Guard(engine *hubauth.Engine, routeMode hubauth.RouteMode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, http.StatusUnauthorized, "Access token required", "UNAUTHORIZED")
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, "Access token required", "UNAUTHORIZED")
				return
			}

			res, err := engine.Validate(r.Context(), token, routeMode)
			if err != nil {
				if errors.Is(err, hubauth.ErrStrictBackendDown) {
					writeError(w, http.StatusServiceUnavailable, "Session validation unavailable", "SERVICE_UNAVAILABLE")
					return
				}
				writeError(w, http.StatusUnauthorized, "Invalid or expired token", "UNAUTHORIZED")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAuthResult(r.Context(), res)))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
