package middleware

import (
	"net"
	"net/http"

	"go.uber.org/zap"

	"graphengine/pkg/common"
	"graphengine/pkg/ratelimit"
)

// RateLimit rejects clients that run out of tokens with 429. Keys are the
// client IP, so chi's RealIP should run first.
func RateLimit(limiter *ratelimit.IPRateLimiter, logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			allowed, err := limiter.Allow(r.Context(), ip)
			if err != nil {
				logger.Warn("Rate limiter failed", zap.String("ip", ip), zap.Error(err))
				common.RespondError(w, http.StatusServiceUnavailable, common.StandardErrorCodes.ServiceUnavailable, "rate limiter unavailable")
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", "1")
				common.RespondError(w, http.StatusTooManyRequests, common.StandardErrorCodes.TooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
