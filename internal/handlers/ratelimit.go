package handlers

import (
	"net/http"

	"linkfolio/internal/apperr"
	applog "linkfolio/internal/log"
	"linkfolio/internal/ratelimit"
)

// RateLimit throttles requests per client address under policy. When the
// limiter itself fails the request is let through.
func RateLimit(policy ratelimit.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			decision, err := limiter.Allow(r.Context(), ip, policy)
			if err != nil {
				applog.Warn(r.Context(), "rate limiter unavailable", "policy", policy.Name, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !decision.Allowed {
				appMetrics.RateLimited.WithLabelValues(policy.Name).Inc()
				applog.Info(r.Context(), "rate limit exceeded", "policy", policy.Name, "ip", ip)
				writeError(w, r, apperr.RateLimited(decision.RetryAfter))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
