package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/hopline/hopline/internal/cache"
)

// RateLimit returns middleware that enforces a fixed-window request limit
// per client IP. It is applied to the redirect and unlock routes, where
// anonymous traffic lands.
//
// The limiter fails open: if the cache is unreachable the request proceeds
// and the failure is logged, so a Redis outage never blocks redirects.
func RateLimit(c *cache.Cache, maxRequests int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := getClientIP(r)

			result, err := c.CheckRateLimit(r.Context(), ip, maxRequests, window)
			if err != nil {
				logger.Warn("rate limit check failed, allowing request",
					slog.String("error", err.Error()),
					slog.String("ip", ip),
					slog.String("request_id", GetRequestID(r.Context())),
				)
			}

			setRateLimitHeaders(w, result)

			if !result.Allowed {
				logger.Warn("rate limit exceeded",
					slog.String("ip", ip),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int64("retry_after_seconds", int64(result.RetryAfter.Seconds())),
					slog.String("request_id", GetRequestID(r.Context())),
				)

				w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
				writeRateLimitError(w, result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// setRateLimitHeaders sets standard rate limit response headers. They are
// sent on every limited route, not just refusals, so clients can pace
// themselves.
func setRateLimitHeaders(w http.ResponseWriter, result *cache.RateLimitResult) {
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// writeRateLimitError writes a 429 Too Many Requests response using the
// same flat error shape as the handler layer.
func writeRateLimitError(w http.ResponseWriter, retryAfter time.Duration) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	msg := `{"error":"Rate limit exceeded. Retry after ` +
		strconv.Itoa(int(retryAfter.Seconds())) + ` seconds.","code":"RATE_LIMITED"}`
	_, _ = w.Write([]byte(msg))
}

// getClientIP extracts the client IP from the request.
// Checks X-Forwarded-For and X-Real-IP headers for proxied requests.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For may contain multiple IPs; the first is the client.
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		for i := range xff {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}

	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return xri
	}

	// RemoteAddr carries the ephemeral source port; keyed verbatim it
	// would give every connection its own rate limit window.
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ClientIP exposes the proxy-aware client IP extraction to handlers that
// record it, such as mapping creation and click tracking.
func ClientIP(r *http.Request) string {
	return getClientIP(r)
}
