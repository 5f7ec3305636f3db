package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTokenBucketLimiter_Allow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewTokenBucketLimiter(2, 3, WithClock(clock.now))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "a")
		require.NoError(t, err)
		assert.True(t, ok, "request %d within burst", i)
	}
	ok, _ := l.Allow(ctx, "a")
	assert.False(t, ok, "burst exhausted")

	ok, _ = l.Allow(ctx, "b")
	assert.True(t, ok, "keys have separate buckets")

	clock.advance(500 * time.Millisecond)
	ok, _ = l.Allow(ctx, "a")
	assert.True(t, ok, "one token refilled")
	ok, _ = l.Allow(ctx, "a")
	assert.False(t, ok)

	clock.advance(time.Minute)
	for i := 0; i < 3; i++ {
		ok, _ = l.Allow(ctx, "a")
		assert.True(t, ok, "refill is capped at burst")
	}
	ok, _ = l.Allow(ctx, "a")
	assert.False(t, ok)
}

func TestTokenBucketLimiter_ResetAndCleanup(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewTokenBucketLimiter(0, 1, WithClock(clock.now), WithIdleTTL(time.Minute))
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "a")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "a")
	assert.False(t, ok, "zero rate never refills")

	require.NoError(t, l.Reset(ctx, "a"))
	ok, _ = l.Allow(ctx, "a")
	assert.True(t, ok)

	_, _ = l.Allow(ctx, "b")
	assert.Equal(t, 2, l.Len())

	clock.advance(2 * time.Minute)
	_, _ = l.Allow(ctx, "c")
	assert.Equal(t, 1, l.Len(), "idle buckets are dropped")
}

func TestTokenBucketLimiter_CancelledContext(t *testing.T) {
	l := NewTokenBucketLimiter(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ok, err := l.Allow(ctx, "a")
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIPRateLimiter(t *testing.T) {
	inner := NewTokenBucketLimiter(0, 1)
	l := NewIPRateLimiter(inner)
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "10.0.0.1")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "10.0.0.1")
	assert.False(t, ok)
	ok, _ = inner.Allow(ctx, "10.0.0.1")
	assert.True(t, ok, "keys are prefixed")

	require.NoError(t, l.Reset(ctx, "10.0.0.1"))
	ok, _ = l.Allow(ctx, "10.0.0.1")
	assert.True(t, ok)
}
