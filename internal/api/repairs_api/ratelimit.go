package repairs_api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/BearBump/RepairBox/internal/metrics"
)

// publicRateLimit caps public lookups per client IP per minute. A limiter
// failure lets the request through.
func (a *RepairsAPI) publicRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.rl == nil {
			next.ServeHTTP(w, r)
			return
		}

		minuteKey := fmt.Sprintf("rl:track:%s:%s", clientIP(r), time.Now().UTC().Format("200601021504"))
		allowed, n, err := a.rl.Allow(r.Context(), minuteKey, a.publicPerMinute, 70*time.Second)
		if err != nil {
			slog.Warn("public rate limiter", "error", err.Error())
			next.ServeHTTP(w, r)
			return
		}
		if !allowed {
			metrics.PublicLookups.WithLabelValues("limited").Inc()
			slog.Warn("public tracking rate limit exceeded", "ip", clientIP(r), "count", n)
			w.Header().Set("Retry-After", strconv.Itoa(60-time.Now().UTC().Second()))
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP expects middleware.RealIP in front when running behind a proxy.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
