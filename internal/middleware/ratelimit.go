package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Raj-Randive/chatdocs/internal/ratelimit"

	"github.com/rs/zerolog"
)

// RateLimitMiddleware limits authenticated users per window. Redis errors
// let the request through so an outage does not take chat down with it.
func RateLimitMiddleware(limiter ratelimit.Limiter, window time.Duration, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := UserID(r.Context())
			if key == "" {
				key = "ip:" + r.RemoteAddr
			}
			ok, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Error().Err(err).Msg("Rate limiter unavailable; allowing request")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
