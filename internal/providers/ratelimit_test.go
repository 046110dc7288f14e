package providers

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterTryConsume(t *testing.T) {
	rl := NewRateLimiter(2)

	if !rl.TryConsume() {
		t.Fatal("first TryConsume() = false, bucket starts full")
	}
	if !rl.TryConsume() {
		t.Fatal("second TryConsume() = false")
	}
	if rl.TryConsume() {
		t.Error("third TryConsume() = true, bucket should be empty")
	}
}

func TestRateLimiterWait(t *testing.T) {
	t.Run("immediate when tokens available", func(t *testing.T) {
		rl := NewRateLimiter(60)
		start := time.Now()
		if err := rl.Wait(context.Background()); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
		if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
			t.Errorf("Wait() took %v with a full bucket", elapsed)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		rl := NewRateLimiter(1)
		if !rl.TryConsume() {
			t.Fatal("setup: could not drain bucket")
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := rl.Wait(ctx); err != context.Canceled {
			t.Errorf("Wait() error = %v, want context.Canceled", err)
		}
	})
}

func TestRateLimiterRecord429(t *testing.T) {
	rl := NewRateLimiter(100)

	rl.Record429(5 * time.Second)
	if rl.TryConsume() {
		t.Error("TryConsume() = true right after a 429 with Retry-After")
	}

	status := rl.Status()
	if status.Last429Time.IsZero() {
		t.Error("Status().Last429Time is zero after Record429")
	}
}

func TestRateLimiterStatus(t *testing.T) {
	rl := NewRateLimiter(10)
	rl.TryConsume()
	rl.TryConsume()

	status := rl.Status()
	if status.TokensLimit != 10 {
		t.Errorf("TokensLimit = %d, want 10", status.TokensLimit)
	}
	if status.TotalConsumed != 2 {
		t.Errorf("TotalConsumed = %d, want 2", status.TotalConsumed)
	}
	if status.Utilization <= 0 {
		t.Errorf("Utilization = %v, want > 0 after consuming", status.Utilization)
	}
}

func TestRateLimiterDefault(t *testing.T) {
	rl := NewRateLimiter(0)
	if got := rl.Status().TokensLimit; got != 150 {
		t.Errorf("TokensLimit = %d, want default 150", got)
	}
}
