package mq

import (
	"context"
	"testing"
	"time"
)

func TestTokenLimiterBoundsInFlight(t *testing.T) {
	limiter := NewTokenLimiter(2)
	ctx := context.Background()

	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("second acquire: %v", err)
	}

	// The third acquire must block until a token comes back.
	blocked, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := limiter.Acquire(blocked); err == nil {
		t.Fatal("expected acquire to block at capacity")
	}

	limiter.Release()
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
}

func TestTokenLimiterCanceledContext(t *testing.T) {
	limiter := NewTokenLimiter(1)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if err := limiter.Acquire(canceled); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTokenLimiterMinimumCapacity(t *testing.T) {
	limiter := NewTokenLimiter(0)
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("zero capacity should clamp to one token: %v", err)
	}
}

func TestTokenLimiterExtraReleaseIgnored(t *testing.T) {
	limiter := NewTokenLimiter(1)
	// Releasing without holding a token must not grow capacity.
	limiter.Release()
	limiter.Release()

	ctx := context.Background()
	if err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	blocked, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := limiter.Acquire(blocked); err == nil {
		t.Fatal("capacity must stay fixed after spurious releases")
	}
}
