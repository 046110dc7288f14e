package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// RateLimitError indicates the provider rejected the call with a 429.
// RetryAfter carries the provider's requested delay when available.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	StatusCode int
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// IsRateLimitError unwraps err looking for a RateLimitError.
func IsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// InvalidResponseError indicates the provider returned content that could not
// be used: unparseable JSON, empty choices, schema-shape mismatch. It is not
// retryable at the transport level; the engine handles corrective retries.
type InvalidResponseError struct {
	Message string
}

func (e *InvalidResponseError) Error() string { return e.Message }

// ErrTimeout marks a call that exceeded its deadline.
var ErrTimeout = errors.New("llm call timed out")

// IsTimeout reports whether err represents a timeout, including context
// deadline expiry and net timeouts.
func IsTimeout(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsRetryable reports whether the engine should retry the call with backoff.
// Rate limits and timeouts are transient; invalid responses are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if _, ok := IsRateLimitError(err); ok {
		return true
	}
	return IsTimeout(err)
}

// parseRetryAfter parses a Retry-After header value (seconds or HTTP date).
func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := time.Parse(time.RFC1123, value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
