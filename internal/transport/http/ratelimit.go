package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/cimillas/perishable-market/internal/obs"
	ratelimit "github.com/cimillas/perishable-market/internal/storage/redis"
)

// RateLimiter is the minimal interface needed to throttle a caller.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Decision, error)
}

// RateLimit throttles each principal (or remote address when anonymous).
// When the limiter store is unreachable requests pass through.
func RateLimit(limiter RateLimiter, limit int, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = obs.Discard()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := principalFromContext(r.Context()).ID
			if key == "" {
				key = r.RemoteAddr
			}

			d, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("rate_limit_unavailable", "error", err, "request_id", RequestIDFromContext(r.Context()))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				secs := int(d.ResetIn.Seconds())
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				writeError(w, http.StatusTooManyRequests, codeRateLimited, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
