// Package llmcall provides LLM call recording and querying for traceability.
// Every LLM API call is recorded with its prompt key, response, and metrics.
package llmcall

import (
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/distill/internal/providers"
)

// Call represents a recorded LLM API call.
type Call struct {
	// Unique identifier
	ID string `json:"id"`

	// Timing
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	// Context references
	RequestID string `json:"request_id,omitempty"`
	Stage     string `json:"stage,omitempty"` // "single_pass", "hierarchical", "chunked"

	// Chunk coordinates (-1 when not applicable)
	SchemaChunk   int `json:"schema_chunk"`
	DocumentChunk int `json:"document_chunk"`
	Pass          int `json:"pass"`

	// Prompt traceability
	PromptKey string `json:"prompt_key"`

	// Model info
	Provider    string   `json:"provider"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"`

	// Token usage
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`

	// Response
	Response string `json:"response"`

	// Status
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// RecordOptions provides context for recording an LLM call.
type RecordOptions struct {
	RequestID string
	Stage     string

	// Chunk coordinates; leave at -1 when not applicable.
	SchemaChunk   int
	DocumentChunk int
	Pass          int

	// Prompt identification (required for traceability)
	PromptKey string

	// Request parameters (pointer to distinguish "not set" from "set to 0")
	Temperature *float64
}

// FromChatResult creates a Call from a ChatResult.
// Returns nil if result is nil.
func FromChatResult(result *providers.ChatResult, opts RecordOptions) *Call {
	if result == nil {
		return nil
	}

	call := &Call{
		ID:            uuid.New().String(),
		Timestamp:     time.Now(),
		LatencyMs:     int(result.ExecutionTime.Milliseconds()),
		RequestID:     opts.RequestID,
		Stage:         opts.Stage,
		SchemaChunk:   opts.SchemaChunk,
		DocumentChunk: opts.DocumentChunk,
		Pass:          opts.Pass,
		PromptKey:     opts.PromptKey,
		Provider:      result.Provider,
		Model:         result.ModelUsed,
		InputTokens:   result.PromptTokens,
		OutputTokens:  result.CompletionTokens,
		Response:      result.Content,
		Success:       result.Success,
	}

	if opts.Temperature != nil {
		call.Temperature = opts.Temperature
	}

	if !result.Success {
		call.Error = result.ErrorMessage
	}

	return call
}
