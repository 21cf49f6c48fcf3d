package middleware

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/personacore/personacore/pkg/api/response"
)

// RateLimit returns a middleware that enforces a global request rate.
// A non-positive limit disables limiting entirely.
func RateLimit(limit float64, burst int) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if burst < 1 {
		burst = 1
	}

	limiter := rate.NewLimiter(rate.Limit(limit), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				requestID := GetRequestID(r.Context())
				response.Error(w,
					http.StatusTooManyRequests,
					response.ErrCodeTooManyRequests,
					"Rate limit exceeded",
					requestID,
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
