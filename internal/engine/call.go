package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/avast/retry-go/v4"

	"github.com/jackzampolin/distill/internal/llmcall"
	"github.com/jackzampolin/distill/internal/providers"
	"github.com/jackzampolin/distill/internal/types"
)

// callSpec describes one extraction call.
type callSpec struct {
	requestID   string
	stage       string
	schemaChunk int // -1 when the call covers the whole schema
	docChunk    int
	pass        int

	document   string
	schemaJSON json.RawMessage
	// context carries already-extracted values the call may reference.
	context map[string]any
}

// extract issues one extraction call and parses the response into an object.
// Transient failures (rate limit, timeout) are retried with backoff inside
// callWithRetry; a malformed response gets one corrective retry, after which
// the call fails with *MalformedOutputError.
func (e *Engine) extract(ctx context.Context, spec callSpec) (map[string]any, types.TokenUsage, error) {
	var usage types.TokenUsage

	messages := []providers.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: extractionPrompt(spec.document, spec.schemaJSON, spec.context)},
	}
	opts := llmcall.RecordOptions{
		RequestID:     spec.requestID,
		Stage:         spec.stage,
		SchemaChunk:   spec.schemaChunk,
		DocumentChunk: spec.docChunk,
		Pass:          spec.pass,
		PromptKey:     "extract." + spec.stage,
	}

	var lastIssue error
	var lastOutput string

	// Initial attempt plus one corrective retry.
	for attempt := 0; attempt <= 1; attempt++ {
		if attempt > 0 {
			messages = append(messages,
				providers.Message{Role: "assistant", Content: lastOutput},
				providers.Message{Role: "user", Content: correctivePrompt(spec.schemaJSON, lastOutput, lastIssue)},
			)
		}

		req := &providers.ChatRequest{
			Messages:       messages,
			Model:          e.cfg.Model,
			Temperature:    e.cfg.Temperature,
			ResponseFormat: &providers.ResponseFormat{Type: "json_object"},
		}

		result, err := e.callWithRetry(ctx, req, opts)
		if result != nil {
			usage.Prompt += result.PromptTokens
			usage.Completion += result.CompletionTokens
			usage.Total += result.TotalTokens
		}
		if err != nil {
			var ire *providers.InvalidResponseError
			if errors.As(err, &ire) {
				lastIssue = err
				if result != nil {
					lastOutput = result.Content
				}
				continue
			}
			return nil, usage, err
		}

		var data map[string]any
		if uerr := json.Unmarshal(result.ParsedJSON, &data); uerr != nil {
			lastIssue = fmt.Errorf("response is not a JSON object: %w", uerr)
			lastOutput = result.Content
			continue
		}
		if verr := providers.ValidateStructuredJSON(spec.schemaJSON, result.ParsedJSON); verr != nil {
			lastIssue = verr
			lastOutput = result.Content
			continue
		}
		return data, usage, nil
	}

	return nil, usage, &MalformedOutputError{Stage: spec.stage, Msg: fmt.Sprint(lastIssue)}
}

// callWithRetry sends one chat request, retrying rate limits and timeouts
// with exponential backoff up to the configured attempt bound. Every attempt
// is recorded.
func (e *Engine) callWithRetry(ctx context.Context, req *providers.ChatRequest, opts llmcall.RecordOptions) (*providers.ChatResult, error) {
	var out *providers.ChatResult

	err := retry.Do(
		func() error {
			if e.limiter != nil {
				if err := e.limiter.Wait(ctx); err != nil {
					return err
				}
			}
			result, err := e.client.Chat(ctx, req)
			e.recorder.Record(result, opts)
			out = result
			if err != nil {
				if rle, ok := providers.IsRateLimitError(err); ok && e.limiter != nil {
					e.limiter.Record429(rle.RetryAfter)
				}
				return err
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(e.cfg.MaxRetries)),
		retry.Delay(e.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(providers.IsRetryable),
	)
	return out, err
}
