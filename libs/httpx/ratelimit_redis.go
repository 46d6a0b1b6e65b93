package httpx

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimiter counts requests per client in fixed windows stored in
// Redis, so every replica of a service draws from one budget.
type RedisRateLimiter struct {
	rdb    redis.Cmdable
	limit  int64
	window time.Duration
	prefix string
	now    func() time.Time
}

func NewRedisRateLimiter(rdb redis.Cmdable, limit int, window time.Duration, prefix string) *RedisRateLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window < time.Second {
		window = time.Minute
	}
	if prefix == "" {
		prefix = "staffsync:rl"
	}
	return &RedisRateLimiter{rdb: rdb, limit: int64(limit), window: window, prefix: prefix, now: time.Now}
}

// Middleware rejects clients over budget with 429. When Redis fails the
// request is let through if failOpen, otherwise answered with 503.
func (rl *RedisRateLimiter) Middleware(logger *slog.Logger, failOpen bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count, reset, err := rl.hit(r.Context(), clientKey(r))
			if err != nil {
				logger.Warn("redis rate limiter error", "err", err)
				if failOpen {
					next.ServeHTTP(w, r)
					return
				}
				WriteError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "rate limiter unavailable")
				return
			}

			remaining := max(rl.limit-count, 0)
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(rl.limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if count > rl.limit {
				w.Header().Set("Retry-After", strconv.Itoa(int(reset.Round(time.Second).Seconds())))
				WriteError(w, r, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Ping reports whether Redis is reachable; used as a readiness check.
func (rl *RedisRateLimiter) Ping(ctx context.Context) error {
	return rl.rdb.Ping(ctx).Err()
}

// hit counts one request for client in the current window and returns the
// window's total and the time until it resets.
func (rl *RedisRateLimiter) hit(ctx context.Context, client string) (int64, time.Duration, error) {
	now := rl.now()
	size := rl.window.Milliseconds()
	slot := now.UnixMilli() / size
	key := fmt.Sprintf("%s:%s:%d", rl.prefix, client, slot)

	pipe := rl.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.PExpire(ctx, key, rl.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("rate limit incr: %w", err)
	}
	reset := time.Duration((slot+1)*size-now.UnixMilli()) * time.Millisecond
	return incr.Val(), reset, nil
}
