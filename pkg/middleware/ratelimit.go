package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Suhaibinator/SBlog/pkg/response"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// RateLimitConfig defines configuration for rate limiting
type RateLimitConfig struct {
	// BucketName identifies the bucket. Routes sharing a BucketName share the limit.
	BucketName string

	// Limit is the maximum number of requests allowed per client in Window.
	Limit int

	// Window is the length of the counting window. Zero means one second.
	Window time.Duration

	// Smooth spaces requests out evenly across the window (leaky bucket) before
	// they are counted, instead of letting a burst through and then rejecting.
	Smooth bool
}

// RateLimiter decides whether a request identified by key may proceed.
type RateLimiter interface {
	// Allow reports whether the request is allowed, the remaining budget in the
	// current window and the time until the window resets.
	Allow(key string, limit int, window time.Duration, smooth bool) (bool, int, time.Duration)
}

// bucket is the per-key state of UberRateLimiter.
type bucket struct {
	mu          sync.Mutex
	pacer       ratelimit.Limiter
	window      time.Duration
	windowStart time.Time
	count       int
	evicted     bool
}

// expired reports whether the bucket's window has ended. Callers hold b.mu.
func (b *bucket) expired(now time.Time) bool {
	return now.Sub(b.windowStart) >= b.window
}

// DefaultSweepInterval is how often UberRateLimiter drops buckets whose window ended.
const DefaultSweepInterval = time.Minute

// UberRateLimiter counts requests per key in fixed windows and, when smoothing is
// requested, paces them with Uber's leaky-bucket limiter first. Buckets of clients
// that stay quiet past their window are dropped on a later call.
type UberRateLimiter struct {
	buckets       sync.Map // map[string]*bucket
	now           func() time.Time
	sweepInterval time.Duration

	sweepMu   sync.Mutex
	lastSweep time.Time
}

// NewUberRateLimiter creates a new rate limiter using Uber's ratelimit library
func NewUberRateLimiter() *UberRateLimiter {
	return &UberRateLimiter{now: time.Now, sweepInterval: DefaultSweepInterval}
}

func (u *UberRateLimiter) bucketFor(key string, limit int, window time.Duration, now time.Time) *bucket {
	if b, ok := u.buckets.Load(key); ok {
		return b.(*bucket)
	}
	rps := int(float64(limit) / window.Seconds())
	if rps < 1 {
		rps = 1
	}
	b, _ := u.buckets.LoadOrStore(key, &bucket{pacer: ratelimit.New(rps), window: window, windowStart: now})
	return b.(*bucket)
}

// sweep drops expired buckets, at most once per sweep interval.
func (u *UberRateLimiter) sweep(now time.Time) {
	u.sweepMu.Lock()
	if now.Sub(u.lastSweep) < u.sweepInterval {
		u.sweepMu.Unlock()
		return
	}
	u.lastSweep = now
	u.sweepMu.Unlock()

	u.buckets.Range(func(key, value any) bool {
		b := value.(*bucket)
		b.mu.Lock()
		if b.expired(now) {
			b.evicted = true
			u.buckets.CompareAndDelete(key, b)
		}
		b.mu.Unlock()
		return true
	})
}

// size returns the number of live buckets.
func (u *UberRateLimiter) size() int {
	n := 0
	u.buckets.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

// Allow implements RateLimiter.
func (u *UberRateLimiter) Allow(key string, limit int, window time.Duration, smooth bool) (bool, int, time.Duration) {
	if window <= 0 {
		window = time.Second
	}
	if limit <= 0 {
		limit = 1
	}

	u.sweep(u.now())

	for {
		b := u.bucketFor(key, limit, window, u.now())
		if smooth {
			b.pacer.Take()
		}

		b.mu.Lock()
		if b.evicted {
			// Dropped by a sweep after lookup; count against the replacement.
			b.mu.Unlock()
			continue
		}

		now := u.now()
		if b.expired(now) {
			b.windowStart = now
			b.count = 0
		}
		reset := window - now.Sub(b.windowStart)

		if b.count >= limit {
			b.mu.Unlock()
			return false, 0, reset
		}
		b.count++
		remaining := limit - b.count
		b.mu.Unlock()
		return true, remaining, reset
	}
}

// RateLimit creates a middleware that enforces config using limiter.
func RateLimit(config *RateLimitConfig, limiter RateLimiter, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		if config == nil || limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientIP(r)
			if key == "" {
				key = cleanIP(r.RemoteAddr)
			}

			allowed, remaining, reset := limiter.Allow(config.BucketName+":"+key, config.Limit, config.Window, config.Smooth)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(reset).Unix(), 10))

			if !allowed {
				retry := int64(reset.Seconds())
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))

				logger.Warn("Rate limit exceeded",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("key", key),
					zap.Int("limit", config.Limit),
					zap.String("trace_id", GetTraceID(r)),
				)

				_ = response.Error(w, response.NewHTTPError(http.StatusTooManyRequests, response.KindRateLimited, "Too Many Requests"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
