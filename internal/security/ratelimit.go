package security

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// FixedWindowLimiter counts requests per key in Redis and allows at most
// Limit of them in every Window.
type FixedWindowLimiter struct {
	Redis  *redis.Client
	Prefix string
	Limit  int
	Window time.Duration

	now func() time.Time
}

func NewFixedWindowLimiter(rdb *redis.Client, prefix string, perMinute int) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		Redis:  rdb,
		Prefix: prefix,
		Limit:  perMinute,
		Window: time.Minute,
	}
}

func (l *FixedWindowLimiter) key(raw string, bucket int64) string {
	k := fmt.Sprintf("ratelimit:%s:%d", raw, bucket)
	if l.Prefix == "" {
		return k
	}
	return l.Prefix + ":" + k
}

// Allow records a hit for rawKey and reports whether it is within the limit,
// along with the number of requests left in the current window.
func (l *FixedWindowLimiter) Allow(ctx context.Context, rawKey string) (bool, int, error) {
	if l.Redis == nil || l.Limit <= 0 {
		return true, 0, nil
	}

	window := l.Window
	if window <= 0 {
		window = time.Minute
	}
	now := time.Now
	if l.now != nil {
		now = l.now
	}
	k := l.key(rawKey, now().UnixNano()/int64(window))

	var incr *redis.IntCmd
	_, err := l.Redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		p.Expire(ctx, k, window)
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("failed to count request: %w", err)
	}

	count := int(incr.Val())
	remaining := l.Limit - count
	if remaining < 0 {
		remaining = 0
	}
	return count <= l.Limit, remaining, nil
}

func RateLimitMiddleware(l *FixedWindowLimiter, keyFn func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ""
			if keyFn != nil {
				key = keyFn(r)
			}
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, remaining, err := l.Allow(r.Context(), key)
			if err != nil {
				WriteJSONError(w, r, http.StatusServiceUnavailable, "rate_limiter_unavailable")
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !allowed {
				WriteJSONError(w, r, http.StatusTooManyRequests, "rate_limited")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func RateLimitKeyByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return ""
	}
	return "ip:" + host
}
