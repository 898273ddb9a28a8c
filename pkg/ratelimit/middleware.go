package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/tendant/simple-trust/pkg/client"
	"github.com/tendant/simple-trust/pkg/errors"
)

// PerIP rejects requests with RATE_LIMITED once the client address has used
// up its bucket
func PerIP(l *Limiter) func(http.Handler) http.Handler {
	retryAfter := "60"
	if l.perMinute > 0 {
		retryAfter = strconv.Itoa(int(math.Ceil(60 / l.perMinute)))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := client.ClientIP(r)
			if !l.Allow(ip) {
				slog.Warn("Rate limit exceeded", "ip", ip, "method", r.Method, "path", r.URL.Path)
				w.Header().Set("Retry-After", retryAfter)
				errors.Render(w, r, errors.RateLimited())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
