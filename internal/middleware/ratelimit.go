package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitConfig defines a fixed-window rate limit.
type RateLimitConfig struct {
	// RequestsPerWindow is the maximum number of requests allowed per window.
	// Must be > 0.
	RequestsPerWindow int
	// WindowDuration is the time window for the rate limit. Must be > 0.
	WindowDuration time.Duration
}

// Validate checks that the RateLimitConfig has valid values.
func (c RateLimitConfig) Validate() error {
	if c.RequestsPerWindow <= 0 {
		return fmt.Errorf("RequestsPerWindow must be > 0 (got %d)", c.RequestsPerWindow)
	}
	if c.WindowDuration <= 0 {
		return fmt.Errorf("WindowDuration must be > 0 (got %s)", c.WindowDuration)
	}
	return nil
}

// DefaultSubmissionLimit is the default limit for permit submission
// endpoints (10 requests per minute per client).
func DefaultSubmissionLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerWindow: 10, WindowDuration: time.Minute}
}

// DefaultGlobalLimit is the default global limit (100 requests per minute
// per client).
func DefaultGlobalLimit() RateLimitConfig {
	return RateLimitConfig{RequestsPerWindow: 100, WindowDuration: time.Minute}
}

// RateLimitStore defines the interface for rate limit state storage.
// This allows for different backends (in-memory, Redis).
type RateLimitStore interface {
	// Allow checks if a request from the given key should be allowed.
	// The second return value is the number of seconds until the limit resets.
	Allow(ctx context.Context, key string, config RateLimitConfig) (allowed bool, retryAfter int)
}

// memoryWindow tracks request counts for one key in one window.
type memoryWindow struct {
	count       int
	windowStart time.Time
}

// MemoryRateLimitStore is an in-memory fixed-window store. Suitable for a
// single instance; use the Redis store when running more than one replica.
type MemoryRateLimitStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

// NewMemoryRateLimitStore creates a new in-memory rate limit store.
func NewMemoryRateLimitStore() *MemoryRateLimitStore {
	return &MemoryRateLimitStore{
		windows: make(map[string]*memoryWindow),
		now:     time.Now,
	}
}

// Allow checks and counts a request under the fixed-window algorithm.
func (s *MemoryRateLimitStore) Allow(_ context.Context, key string, config RateLimitConfig) (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || now.Sub(w.windowStart) >= config.WindowDuration {
		s.windows[key] = &memoryWindow{count: 1, windowStart: now}
		return true, 0
	}

	if w.count >= config.RequestsPerWindow {
		retryAfter := int(config.WindowDuration.Seconds() - now.Sub(w.windowStart).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		return false, retryAfter
	}

	w.count++
	return true, 0
}

// RedisRateLimitStore implements RateLimitStore backed by Redis INCR with a
// window-length TTL, so limits are shared across instances.
type RedisRateLimitStore struct {
	client *redis.Client
}

// NewRedisRateLimitStore creates a new Redis-backed rate limit store.
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

// Allow checks and counts a request. Fails open: if Redis is unreachable the
// request is allowed, since blocking citizens on a cache outage is worse
// than briefly losing the limit.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int) {
	redisKey := "ratelimit:" + key

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		slog.WarnContext(ctx, "rate limit redis error, allowing request", "error", err)
		return true, 0
	}
	if count == 1 {
		if err := s.client.Expire(ctx, redisKey, config.WindowDuration).Err(); err != nil {
			slog.WarnContext(ctx, "rate limit expire failed", "key", redisKey, "error", err)
		}
	}

	if count > int64(config.RequestsPerWindow) {
		ttl, err := s.client.TTL(ctx, redisKey).Result()
		if err != nil || ttl <= 0 {
			return false, int(config.WindowDuration.Seconds())
		}
		return false, int(ttl.Seconds())
	}
	return true, 0
}

// clientKey derives the rate limit key: authenticated user ID when
// available, otherwise the client IP.
func clientKey(r *http.Request) string {
	if id := GetIdentity(r.Context()); id.UserID != "" {
		return "user:" + id.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// RateLimit is a middleware enforcing the given config against the store.
// Limited requests receive 429 with a Retry-After header.
func RateLimit(store RateLimitStore, config RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter := store.Allow(r.Context(), clientKey(r), config)
			if !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"code":"rate_limited","message":"Too many requests"}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
