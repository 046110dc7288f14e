package providers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestIsRateLimitError(t *testing.T) {
	rle := &RateLimitError{Message: "slow down", RetryAfter: 2 * time.Second, StatusCode: 429}

	got, ok := IsRateLimitError(fmt.Errorf("chat failed: %w", rle))
	if !ok {
		t.Fatal("IsRateLimitError() = false for wrapped rate limit error")
	}
	if got.RetryAfter != 2*time.Second {
		t.Errorf("RetryAfter = %v, want 2s", got.RetryAfter)
	}

	if _, ok := IsRateLimitError(errors.New("other")); ok {
		t.Error("IsRateLimitError() = true for unrelated error")
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(ErrTimeout) {
		t.Error("IsTimeout(ErrTimeout) = false")
	}
	if !IsTimeout(fmt.Errorf("call: %w", context.DeadlineExceeded)) {
		t.Error("IsTimeout(wrapped DeadlineExceeded) = false")
	}
	if IsTimeout(errors.New("boom")) {
		t.Error("IsTimeout(generic error) = true")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"rate limit", &RateLimitError{Message: "429"}, true},
		{"timeout sentinel", ErrTimeout, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"cancelled", context.Canceled, false},
		{"invalid response", &InvalidResponseError{Message: "bad JSON"}, false},
		{"generic", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	if got := parseRetryAfter("3"); got != 3*time.Second {
		t.Errorf("parseRetryAfter(3) = %v, want 3s", got)
	}
	if got := parseRetryAfter(""); got != 0 {
		t.Errorf("parseRetryAfter(empty) = %v, want 0", got)
	}
	if got := parseRetryAfter("garbage"); got != 0 {
		t.Errorf("parseRetryAfter(garbage) = %v, want 0", got)
	}

	future := time.Now().Add(time.Minute).UTC().Format(time.RFC1123)
	if got := parseRetryAfter(future); got <= 0 || got > time.Minute {
		t.Errorf("parseRetryAfter(HTTP date) = %v, want within (0, 1m]", got)
	}
}
