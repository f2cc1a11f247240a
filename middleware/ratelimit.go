package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/authcore/internal/rate"
)

// RateLimit enforces rule per client IP through a shared limiter. Limiter
// outages let the request through and are logged.
func RateLimit(limiter *rate.Limiter, rule rate.Rule, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := limiter.Allow(r.Context(), rule, ClientIP(r))
			switch {
			case errors.Is(err, rate.ErrRateLimited):
				writeTooManyRequests(w, d.RetryAfter)
				return
			case err != nil:
				logger.Warn("rate limiter unavailable", "rule", rule.Name, "err", err)
			}
			next.ServeHTTP(w, r)
		})
	}
}
