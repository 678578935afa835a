package middleware

import (
	"net/http"

	"github.com/swahilipot/hubauth"
)

// RequireJWTOnly validates signature and expiry only, regardless of the
// engine-wide mode. No store is consulted.
func RequireJWTOnly(engine *hubauth.Engine) func(http.Handler) http.Handler {
	return Guard(engine, hubauth.ModeJWTOnly)
}
