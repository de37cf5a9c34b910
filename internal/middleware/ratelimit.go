package middleware

import (
	"context"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig defines a token bucket per client key.
// A non-positive RequestsPerSecond disables limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the steady-state refill rate.
	RequestsPerSecond float64
	// Burst is the bucket size. Must be >= 1 when limiting is enabled.
	Burst int
}

// Enabled reports whether the config limits anything.
func (c RateLimitConfig) Enabled() bool {
	return c.RequestsPerSecond > 0
}

// Validate checks that the RateLimitConfig has usable values.
func (c RateLimitConfig) Validate() error {
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("RequestsPerSecond must be >= 0 (got %v)", c.RequestsPerSecond)
	}
	if c.Enabled() && c.Burst < 1 {
		return fmt.Errorf("Burst must be >= 1 when limiting is enabled (got %d)", c.Burst)
	}
	return nil
}

// RateLimitStore defines the interface for rate limit state storage.
type RateLimitStore interface {
	// Allow reports whether a request for key may proceed. When it may not,
	// retryAfter is the number of whole seconds until a token is available.
	Allow(ctx context.Context, key string, config RateLimitConfig) (allowed bool, retryAfter int)
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// TokenBucketStore implements RateLimitStore with one rate.Limiter per key.
// Thread-safe for concurrent access.
type TokenBucketStore struct {
	mu       sync.Mutex
	now      func() time.Time
	visitors map[string]*visitor
}

// NewTokenBucketStore creates an empty in-memory token bucket store.
func NewTokenBucketStore() *TokenBucketStore {
	return &TokenBucketStore{
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
}

// Allow implements RateLimitStore.
func (s *TokenBucketStore) Allow(_ context.Context, key string, config RateLimitConfig) (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	v, ok := s.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst)}
		s.visitors[key] = v
	}
	v.lastSeen = now

	r := v.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 1
	}
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}

	// Give the token back; this request is rejected, not queued.
	r.CancelAt(now)
	retryAfter := int(math.Ceil(delay.Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return false, retryAfter
}

// Cleanup drops limiters that have been idle for longer than maxIdle.
// Call it periodically to keep memory bounded.
func (s *TokenBucketStore) Cleanup(maxIdle time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, v := range s.visitors {
		if now.Sub(v.lastSeen) > maxIdle {
			delete(s.visitors, key)
		}
	}
}

// Len returns the number of tracked keys.
func (s *TokenBucketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visitors)
}

// KeyFunc extracts a rate limit key from an HTTP request.
type KeyFunc func(r *http.Request) string

// IPKeyFunc returns a KeyFunc that uses the client's IP address.
func IPKeyFunc() KeyFunc {
	return func(r *http.Request) string {
		// Use the first hop of X-Forwarded-For for proxied requests
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if idx := strings.Index(xff, ","); idx != -1 {
				return strings.TrimSpace(xff[:idx])
			}
			return strings.TrimSpace(xff)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			// RemoteAddr might not have a port
			return r.RemoteAddr
		}
		return host
	}
}

// RateLimiter is a middleware that limits request rates per key.
// It returns HTTP 429 Too Many Requests with a Retry-After header when the
// bucket is empty. metrics may be nil.
func RateLimiter(store RateLimitStore, config RateLimitConfig, keyFunc KeyFunc, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !config.Enabled() {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := normalizePath(r.URL.Path)
			if metrics != nil {
				metrics.IncRateLimitRequests(path)
			}

			allowed, retryAfter := store.Allow(r.Context(), keyFunc(r), config)
			if !allowed {
				if metrics != nil {
					metrics.IncRateLimitBlocked(path)
				}
				SetErrorCode(r.Context(), "rate_limited")

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":{"code":"rate_limited","message":"Too many requests"}}` + "\n"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
