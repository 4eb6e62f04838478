// middleware/ratelimit.go
package middleware

import (
	"strings"
	"sync"
	"time"

	"studyhub/config"

	"github.com/gofiber/fiber/v2"
)

// Token bucket rate limiter implementation
type TokenBucket struct {
	tokens         float64
	maxTokens      float64
	refillRate     float64 // tokens per second
	lastRefillTime time.Time
	mu             sync.Mutex
}

func NewTokenBucket(maxTokens, refillRate float64) *TokenBucket {
	return &TokenBucket{
		tokens:         maxTokens,
		maxTokens:      maxTokens,
		refillRate:     refillRate,
		lastRefillTime: time.Now(),
	}
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefillTime).Seconds()
	tb.tokens += elapsed * tb.refillRate
	if tb.tokens > tb.maxTokens {
		tb.tokens = tb.maxTokens
	}
	tb.lastRefillTime = now

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// RateLimiter keeps one bucket per client key.
type RateLimiter struct {
	buckets map[string]*TokenBucket
	mu      sync.Mutex

	maxRequests   int
	windowSeconds int
}

func NewRateLimiter(maxRequests, windowSeconds int) *RateLimiter {
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	return &RateLimiter{
		buckets:       make(map[string]*TokenBucket),
		maxRequests:   maxRequests,
		windowSeconds: windowSeconds,
	}
}

func (rl *RateLimiter) getBucket(key string) *TokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, exists := rl.buckets[key]
	if !exists {
		refillRate := float64(rl.maxRequests) / float64(rl.windowSeconds)
		bucket = NewTokenBucket(float64(rl.maxRequests), refillRate)
		rl.buckets[key] = bucket
	}
	return bucket
}

func (rl *RateLimiter) Allow(key string) bool {
	return rl.getBucket(key).Allow()
}

// Cleanup drops buckets idle for longer than maxIdle.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, bucket := range rl.buckets {
		bucket.mu.Lock()
		if now.Sub(bucket.lastRefillTime) > maxIdle {
			delete(rl.buckets, key)
		}
		bucket.mu.Unlock()
	}
}

// RunCleanup sweeps idle buckets every interval until stop is closed.
func (rl *RateLimiter) RunCleanup(interval, maxIdle time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Cleanup(maxIdle)
		case <-stop:
			return
		}
	}
}

// RateLimit builds the general and auth limiters from configuration.
type RateLimit struct {
	enabled bool
	general *RateLimiter
	auth    *RateLimiter
}

func NewRateLimit(cfg config.RateLimitConfig) *RateLimit {
	return &RateLimit{
		enabled: cfg.Enabled,
		general: NewRateLimiter(cfg.MaxRequests, cfg.WindowSeconds),
		auth:    NewRateLimiter(cfg.AuthMaxRequests, cfg.AuthWindowSeconds),
	}
}

// Start runs the bucket sweepers until stop is closed.
func (r *RateLimit) Start(stop <-chan struct{}) {
	go r.general.RunCleanup(10*time.Minute, 30*time.Minute, stop)
	go r.auth.RunCleanup(10*time.Minute, 30*time.Minute, stop)
}

// General applies the per-IP limit to everything except health checks and
// static assets.
func (r *RateLimit) General() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !r.enabled {
			return c.Next()
		}
		path := c.Path()
		if path == "/health" || path == "/metrics" ||
			strings.HasPrefix(path, "/assets") ||
			strings.HasPrefix(path, "/static") {
			return c.Next()
		}

		if !r.general.Allow(c.IP()) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "Rate limit exceeded. Please try again later.",
			})
		}
		return c.Next()
	}
}

// Auth is the stricter limit for login and registration.
func (r *RateLimit) Auth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !r.enabled {
			return c.Next()
		}
		if !r.auth.Allow(c.IP()) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"error":   "Too many authentication attempts. Please try again in 5 minutes.",
			})
		}
		return c.Next()
	}
}
