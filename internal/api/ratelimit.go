package api

import (
	"encoding/json/v2"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	domainerrors "github.com/rewireapp/rewire-server/internal/errors"
	"github.com/rewireapp/rewire-server/internal/ratelimit"
)

// RateLimitMiddleware limits mutating requests per client IP. Reads and the
// event stream are never limited. Returns 429 with Retry-After when a client
// is over budget.
func RateLimitMiddleware(limiter *ratelimit.KeyedRateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isMutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			key := clientIP(r)
			ok, retryAfter := limiter.Reserve(key)
			if !ok {
				logger.Warn("rate limit exceeded", "ip", key, "path", r.URL.Path)
				writeRateLimited(w, retryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		secs := int((retryAfter + time.Second - 1) / time.Second)
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.MarshalWrite(w, Envelope{
		Version: EnvelopeVersion,
		Error: &APIError{
			status:  http.StatusTooManyRequests,
			Code:    string(domainerrors.CodeRateLimited),
			Message: "Too many requests. Please try again later.",
		},
	})
}

// clientIP extracts the client IP from the request. RealIP middleware has
// usually already rewritten RemoteAddr from the forwarding headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
