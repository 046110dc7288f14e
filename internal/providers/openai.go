package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	OpenAIName         = "openai"
	openAIDefaultModel = openai.ChatModelGPT4o
)

// OpenAIConfig holds configuration for the OpenAI chat client.
type OpenAIConfig struct {
	APIKey       string
	DefaultModel string
	Timeout      time.Duration
	RPM          int          // Requests per minute (default: 150)
	BaseURL      string       // Optional (tests)
	HTTPClient   *http.Client // Optional (tests)
}

// OpenAIClient implements LLMClient using the official OpenAI SDK.
// Transport retries are disabled; the extraction engine owns backoff.
type OpenAIClient struct {
	defaultModel string
	rpm          int
	client       openai.Client
}

// NewOpenAIClient creates a new OpenAI chat client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = openAIDefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.RPM <= 0 {
		cfg.RPM = 150
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		defaultModel: cfg.DefaultModel,
		rpm:          cfg.RPM,
		client:       openai.NewClient(opts...),
	}
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string {
	return OpenAIName
}

// RequestsPerMinute returns the RPM limit for rate limiting.
func (c *OpenAIClient) RequestsPerMinute() int {
	return c.rpm
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}
	if rf, err := openAIResponseFormat(req.ResponseFormat); err != nil {
		return nil, err
	} else if rf != nil {
		params.ResponseFormat = *rf
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  OpenAIName,
		Attempts:  1,
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		err = mapOpenAIError(ctx, err)
		result.Success = false
		result.ErrorType = classifyError(err)
		result.ErrorMessage = err.Error()
		result.ExecutionTime = time.Since(start)
		return result, err
	}

	if len(completion.Choices) == 0 {
		err := &InvalidResponseError{Message: "no choices in completion"}
		result.Success = false
		result.ErrorType = "empty_response"
		result.ErrorMessage = err.Message
		result.ExecutionTime = time.Since(start)
		return result, err
	}

	result.Success = true
	result.Content = completion.Choices[0].Message.Content
	result.ModelUsed = completion.Model
	result.PromptTokens = int(completion.Usage.PromptTokens)
	result.CompletionTokens = int(completion.Usage.CompletionTokens)
	result.TotalTokens = int(completion.Usage.TotalTokens)
	result.ExecutionTime = time.Since(start)

	if req.ResponseFormat != nil {
		parsed, err := parseStructuredJSON(result.Content)
		if err != nil {
			result.Success = false
			result.ErrorType = "json_parse"
			result.ErrorMessage = err.Error()
			return result, &InvalidResponseError{Message: err.Error()}
		}
		result.ParsedJSON = parsed
	}

	return result, nil
}

// openAIResponseFormat converts the generic response format to SDK params.
func openAIResponseFormat(rf *ResponseFormat) (*openai.ChatCompletionNewParamsResponseFormatUnion, error) {
	if rf == nil {
		return nil, nil
	}
	if rf.Type == "json_schema" && len(rf.JSONSchema) > 0 {
		var schemaObj map[string]any
		if err := json.Unmarshal(rf.JSONSchema, &schemaObj); err != nil {
			return nil, fmt.Errorf("invalid response format schema: %w", err)
		}
		return &openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "extraction",
					Schema: schemaObj,
				},
			},
		}, nil
	}
	return &openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
	}, nil
}

// mapOpenAIError converts SDK errors into the package error taxonomy.
func mapOpenAIError(ctx context.Context, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			retryAfter := time.Duration(0)
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return &RateLimitError{
				Message:    fmt.Sprintf("OpenAI rate limited: %s", apiErr.Message),
				RetryAfter: retryAfter,
				StatusCode: apiErr.StatusCode,
			}
		case apiErr.StatusCode == http.StatusRequestTimeout || apiErr.StatusCode == http.StatusGatewayTimeout:
			return fmt.Errorf("OpenAI request timed out (status %d): %w", apiErr.StatusCode, ErrTimeout)
		case apiErr.Message != "":
			return fmt.Errorf("OpenAI error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		default:
			return fmt.Errorf("OpenAI error (status %d)", apiErr.StatusCode)
		}
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || IsTimeout(err) {
		return fmt.Errorf("OpenAI request timed out: %w", ErrTimeout)
	}
	return err
}

// classifyError labels an error for ChatResult bookkeeping.
func classifyError(err error) string {
	if err == nil {
		return ""
	}
	if _, ok := IsRateLimitError(err); ok {
		return "rate_limited"
	}
	if IsTimeout(err) {
		return "timeout"
	}
	var ire *InvalidResponseError
	if errors.As(err, &ire) {
		return "invalid_response"
	}
	return "provider_error"
}

// Verify interface
var _ LLMClient = (*OpenAIClient)(nil)
