// Package ratelimit throttles callers of the HTTP adapter per client key.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RateLimiter provides rate limiting functionality
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Reset(ctx context.Context, key string) error
}

// TokenBucketLimiter implements token bucket rate limiting. Each key starts
// with a full bucket of burst tokens that refills at rate tokens per second.
type TokenBucketLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	rate        float64
	burst       float64
	idleTTL     time.Duration
	lastCleanup time.Time
	now         func() time.Time
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// Option configures a TokenBucketLimiter
type Option func(*TokenBucketLimiter)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(l *TokenBucketLimiter) { l.now = now }
}

// WithIdleTTL sets how long an untouched bucket is kept
func WithIdleTTL(d time.Duration) Option {
	return func(l *TokenBucketLimiter) { l.idleTTL = d }
}

// NewTokenBucketLimiter creates a new token bucket rate limiter. A burst
// below one is raised to one.
func NewTokenBucketLimiter(rate float64, burst int, opts ...Option) *TokenBucketLimiter {
	if burst < 1 {
		burst = 1
	}
	l := &TokenBucketLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   float64(burst),
		idleTTL: time.Hour,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.lastCleanup = l.now()
	return l
}

// Allow checks if a request is allowed
func (l *TokenBucketLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.cleanup(now)

	b, exists := l.buckets[key]
	if !exists {
		b = &bucket{tokens: l.burst, lastRefill: now}
		l.buckets[key] = b
	}

	// Refill tokens based on time elapsed
	if elapsed := now.Sub(b.lastRefill); elapsed > 0 {
		b.tokens = min(b.tokens+elapsed.Seconds()*l.rate, l.burst)
		b.lastRefill = now
	}

	if b.tokens >= 1 {
		b.tokens--
		return true, nil
	}
	return false, nil
}

// Reset resets the rate limit for a key
func (l *TokenBucketLimiter) Reset(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.buckets, key)
	return nil
}

// Len returns the number of tracked keys
func (l *TokenBucketLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// cleanup drops idle buckets at most once per idle period. Caller holds mu.
func (l *TokenBucketLimiter) cleanup(now time.Time) {
	if now.Sub(l.lastCleanup) < l.idleTTL {
		return
	}
	for key, b := range l.buckets {
		if now.Sub(b.lastRefill) > l.idleTTL {
			delete(l.buckets, key)
		}
	}
	l.lastCleanup = now
}

// IPRateLimiter wraps a rate limiter for IP-based limiting
type IPRateLimiter struct {
	limiter RateLimiter
}

// NewIPRateLimiter creates a new IP-based rate limiter
func NewIPRateLimiter(limiter RateLimiter) *IPRateLimiter {
	return &IPRateLimiter{limiter: limiter}
}

// Allow checks if a request from an IP is allowed
func (l *IPRateLimiter) Allow(ctx context.Context, ip string) (bool, error) {
	return l.limiter.Allow(ctx, fmt.Sprintf("ip:%s", ip))
}

// Reset clears the bucket of an IP
func (l *IPRateLimiter) Reset(ctx context.Context, ip string) error {
	return l.limiter.Reset(ctx, fmt.Sprintf("ip:%s", ip))
}
