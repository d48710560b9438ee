package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the interface for pacing outbound remote calls
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request or the
	// context is cancelled
	Wait(ctx context.Context) error
	// Reset resets the limiter state
	Reset()
}

// TokenBucket implements a token bucket rate limiter
type TokenBucket struct {
	capacity     int           // Maximum number of tokens
	tokens       int           // Current number of tokens
	refillPeriod time.Duration // Period after which bucket is refilled
	lastRefill   time.Time     // Last time the bucket was refilled
	mu           sync.Mutex
}

// NewTokenBucket creates a new token bucket rate limiter
func NewTokenBucket(capacity int, refillPeriod time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:     capacity,
		tokens:       capacity,
		refillPeriod: refillPeriod,
		lastRefill:   time.Now(),
	}
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}

	return false
}

// Wait blocks until a token is available or the context is cancelled
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for !tb.Allow() {
		tb.mu.Lock()
		timeUntilRefill := tb.refillPeriod - time.Since(tb.lastRefill)
		tb.mu.Unlock()

		if timeUntilRefill <= 0 {
			// Small sleep to prevent busy waiting
			timeUntilRefill = 100 * time.Millisecond
		}

		timer := time.NewTimer(timeUntilRefill)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return nil
}

// Reset resets the token bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = time.Now()
}

// refill adds tokens based on elapsed time
func (tb *TokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)

	if elapsed >= tb.refillPeriod {
		tb.tokens = tb.capacity
		tb.lastRefill = now
	}
}

// IntervalLimiter enforces a fixed minimum delay between consecutive calls.
// Used for APIs that document a per-request delay rather than a quota.
type IntervalLimiter struct {
	interval time.Duration
	lastCall time.Time
	mu       sync.Mutex
}

// NewIntervalLimiter creates a limiter with a fixed delay between calls
func NewIntervalLimiter(interval time.Duration) *IntervalLimiter {
	return &IntervalLimiter{interval: interval}
}

// Allow reports whether enough time has passed since the last call and, if
// so, records the call
func (il *IntervalLimiter) Allow() bool {
	il.mu.Lock()
	defer il.mu.Unlock()

	now := time.Now()
	if il.lastCall.IsZero() || now.Sub(il.lastCall) >= il.interval {
		il.lastCall = now
		return true
	}
	return false
}

// Wait blocks until the interval has elapsed or the context is cancelled
func (il *IntervalLimiter) Wait(ctx context.Context) error {
	il.mu.Lock()
	var wait time.Duration
	now := time.Now()
	if !il.lastCall.IsZero() {
		if elapsed := now.Sub(il.lastCall); elapsed < il.interval {
			wait = il.interval - elapsed
		}
	}
	il.lastCall = now.Add(wait)
	il.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset clears the last-call timestamp
func (il *IntervalLimiter) Reset() {
	il.mu.Lock()
	defer il.mu.Unlock()
	il.lastCall = time.Time{}
}
