package gateway

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/securevault/securevault/internal/ports"
)

const rateWindow = time.Minute

// RateLimitConfig carries the per-class fixed-window limits.
type RateLimitConfig struct {
	GeneralLimit int64
	LoginLimit   int64
}

// RateLimiter is the first filter stage: a fixed-window counter per
// (class, client IP, minute bucket). The window TTL is set by whichever
// request observes count==1, so concurrent first requests cannot reset
// the window for each other.
type RateLimiter struct {
	counters ports.RateCounterStore
	cfg      RateLimitConfig
	logger   *slog.Logger
	nowFn    func() time.Time
}

func NewRateLimiter(counters ports.RateCounterStore, cfg RateLimitConfig, logger *slog.Logger) *RateLimiter {
	if cfg.GeneralLimit <= 0 {
		cfg.GeneralLimit = 100
	}
	if cfg.LoginLimit <= 0 {
		cfg.LoginLimit = 10
	}
	return &RateLimiter{
		counters: counters,
		cfg:      cfg,
		logger:   logger,
		nowFn:    time.Now,
	}
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		class, limit := l.classify(r.URL.Path)
		now := l.nowFn()
		bucket := now.Unix() / int64(rateWindow/time.Second)
		key := fmt.Sprintf("%s:%s:%d", class, clientIP(r), bucket)

		count, err := l.counters.Increment(r.Context(), key, rateWindow)
		if err != nil {
			// Fail open: a counter-store outage must not take the edge down
			// with it. The request proceeds uncounted.
			l.logger.Warn("rate counter unavailable",
				"operation", "rate_limit",
				"outcome", "fail_open",
				"class", class,
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}

		reset := (bucket + 1) * int64(rateWindow/time.Second)
		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))

		if count > limit {
			retryAfter := reset - now.Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
			gatewayRateLimitedTotal.WithLabelValues(class).Inc()
			writeGatewayError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) classify(path string) (string, int64) {
	switch path {
	case "/api/auth/login", "/api/auth/2fa/verify-login":
		return "login", l.cfg.LoginLimit
	default:
		return "general", l.cfg.GeneralLimit
	}
}

// clientIP trusts the first hop of X-Forwarded-For, falling back to the
// connection peer.
func clientIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host := strings.TrimSpace(r.RemoteAddr)
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}
