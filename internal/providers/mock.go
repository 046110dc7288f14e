package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is an LLMClient for testing.
//
// By default every call succeeds with ResponseJSON (or ResponseText). Tests
// that need per-call behavior set Respond, which receives the 1-based call
// number and the request and fully controls the outcome.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string
	ResponseJSON json.RawMessage

	// Respond overrides the canned response when set.
	Respond func(call int, req *ChatRequest) (json.RawMessage, error)

	// Rate limiting
	RPM int

	// State
	requestCount atomic.Int64

	mu       sync.Mutex
	requests []*ChatRequest
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		ResponseText: "mock response",
		RPM:          60,
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// RequestsPerMinute returns the RPM limit for rate limiting.
func (c *MockClient) RequestsPerMinute() int {
	return c.RPM
}

// Chat sends a mock chat request.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	count := int(c.requestCount.Add(1))

	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	result := &ChatResult{
		RequestID: fmt.Sprintf("mock-%d", count),
		Provider:  MockClientName,
		ModelUsed: req.Model,
		Attempts:  1,
	}

	if c.ShouldFail {
		result.Success = false
		result.ErrorType = "mock_failure"
		result.ErrorMessage = "mock client configured to fail"
		result.ExecutionTime = time.Since(start)
		return result, fmt.Errorf("mock client configured to fail")
	}
	if c.FailAfter > 0 && count > c.FailAfter {
		result.Success = false
		result.ErrorType = "mock_failure"
		result.ErrorMessage = fmt.Sprintf("mock client failed after %d requests", c.FailAfter)
		result.ExecutionTime = time.Since(start)
		return result, fmt.Errorf("mock client failed after %d requests", c.FailAfter)
	}

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			result.Success = false
			result.ErrorType = "context_cancelled"
			result.ErrorMessage = ctx.Err().Error()
			result.ExecutionTime = time.Since(start)
			return result, ctx.Err()
		}
	}

	content := c.ResponseText
	parsed := c.ResponseJSON
	if c.Respond != nil {
		out, err := c.Respond(count, req)
		if err != nil {
			result.Success = false
			result.ErrorType = classifyError(err)
			result.ErrorMessage = err.Error()
			result.ExecutionTime = time.Since(start)
			return result, err
		}
		parsed = out
	}
	if len(parsed) > 0 {
		content = string(parsed)
	}

	result.Success = true
	result.Content = content
	result.ExecutionTime = time.Since(start)

	promptTokens := 0
	for _, m := range req.Messages {
		promptTokens += len(m.Content) / 4
	}
	completionTokens := len(content) / 4

	result.PromptTokens = promptTokens
	result.CompletionTokens = completionTokens
	result.TotalTokens = promptTokens + completionTokens

	if req.ResponseFormat != nil && len(parsed) > 0 {
		result.ParsedJSON = parsed
	}

	return result, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Requests returns a copy of all requests seen so far.
func (c *MockClient) Requests() []*ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ChatRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// Reset resets the request counter and recorded requests.
func (c *MockClient) Reset() {
	c.requestCount.Store(0)
	c.mu.Lock()
	c.requests = nil
	c.mu.Unlock()
}

// Verify interface
var _ LLMClient = (*MockClient)(nil)
