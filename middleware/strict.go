package middleware

import (
	"net/http"

	"github.com/swahilipot/hubauth"
)

// RequireStrict also requires the token's session to be active. Tokens
// without a sid claim are checked as in JWT-only mode.
func RequireStrict(engine *hubauth.Engine) func(http.Handler) http.Handler {
	return Guard(engine, hubauth.ModeStrict)
}
