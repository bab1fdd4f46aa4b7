package httpx

import (
	"context"
	"net"
	"net/http"

	"github.com/rs/zerolog"
)

// Limiter is satisfied by *redisx.RateLimiter.
type Limiter interface {
	Allow(ctx context.Context, client string) (bool, error)
}

// rateLimit rejects clients over their window with 429. A limiter error
// lets the request through: checkout must not depend on redis being up.
func rateLimit(l Limiter, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, err := l.Allow(r.Context(), clientIP(r))
			if err != nil {
				log.Warn().Err(err).Msg("rate limiter unavailable")
			} else if !ok {
				w.Header().Set("Retry-After", "60")
				writeJSON(w, http.StatusTooManyRequests, errorResp{ErrorMessage: "too many checkout attempts, try again shortly"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP relies on middleware.RealIP having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
