package middleware

import (
	"net"
	"net/http"

	"github.com/swahilipot/hubauth"
)

// ClientInfo copies the client address and user agent into the request
// context for audit events, rate-limit keys and session records. Put
// chi's RealIP in front of it when running behind a trusted proxy.
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		ctx := hubauth.WithClientIP(r.Context(), ip)
		ctx = hubauth.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
