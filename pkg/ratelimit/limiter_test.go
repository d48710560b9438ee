package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucketAllow(t *testing.T) {
	tb := NewTokenBucket(3, time.Hour)

	for i := 0; i < 3; i++ {
		if !tb.Allow() {
			t.Errorf("Request %d should be allowed", i+1)
		}
	}
	if tb.Allow() {
		t.Error("Request beyond capacity should be denied")
	}
}

func TestTokenBucketRefill(t *testing.T) {
	tb := NewTokenBucket(1, 20*time.Millisecond)

	if !tb.Allow() {
		t.Fatal("First request should be allowed")
	}
	if tb.Allow() {
		t.Fatal("Second request should be denied")
	}

	time.Sleep(30 * time.Millisecond)
	if !tb.Allow() {
		t.Error("Request after refill period should be allowed")
	}
}

func TestTokenBucketReset(t *testing.T) {
	tb := NewTokenBucket(1, time.Hour)
	tb.Allow()
	tb.Reset()
	if !tb.Allow() {
		t.Error("Request after reset should be allowed")
	}
}

func TestIntervalLimiterAllow(t *testing.T) {
	il := NewIntervalLimiter(50 * time.Millisecond)

	if !il.Allow() {
		t.Fatal("First call should be allowed")
	}
	if il.Allow() {
		t.Fatal("Immediate second call should be denied")
	}

	time.Sleep(60 * time.Millisecond)
	if !il.Allow() {
		t.Error("Call after interval should be allowed")
	}
}

func TestIntervalLimiterWaitPaces(t *testing.T) {
	il := NewIntervalLimiter(30 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := il.Wait(ctx); err != nil {
			t.Fatalf("Wait failed: %v", err)
		}
	}

	// Three calls need at least two full intervals between them
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("Three calls completed in %v, want >= 60ms", elapsed)
	}
}

func TestIntervalLimiterWaitCancellation(t *testing.T) {
	il := NewIntervalLimiter(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	if err := il.Wait(ctx); err != nil {
		t.Fatalf("First wait failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- il.Wait(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after cancellation")
	}
}

func TestIntervalLimiterReset(t *testing.T) {
	il := NewIntervalLimiter(time.Hour)
	il.Allow()
	il.Reset()
	if !il.Allow() {
		t.Error("Call after reset should be allowed")
	}
}
