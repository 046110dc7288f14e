// Package engine orchestrates adaptive extraction: it analyzes the schema,
// picks a strategy, issues LLM calls (single-pass, hierarchical by depth, or
// dependency-aware chunked), merges partial results deterministically and
// tolerates per-chunk failures.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackzampolin/distill/internal/chunker"
	"github.com/jackzampolin/distill/internal/llmcall"
	"github.com/jackzampolin/distill/internal/providers"
	"github.com/jackzampolin/distill/internal/schema"
	"github.com/jackzampolin/distill/internal/scorer"
	"github.com/jackzampolin/distill/internal/tokens"
	"github.com/jackzampolin/distill/internal/types"
)

// Config holds engine tuning. Zero fields are filled with defaults by New.
type Config struct {
	MaxTokensPerRequest       int
	DocumentChunkThreshold    int
	SchemaChunkThreshold      int
	OverlapTokens             int
	SinglePassDepthThreshold  int
	SinglePassObjectThreshold int
	MaxConcurrentCalls        int
	RequestTimeout            time.Duration

	// Retry policy for rate-limited and timed-out calls.
	MaxRetries int
	RetryDelay time.Duration

	Model       string
	Temperature float64
}

// Engine runs extraction requests against one LLM client.
type Engine struct {
	cfg      Config
	client   providers.LLMClient
	scorer   *scorer.Scorer
	limiter  *providers.RateLimiter
	recorder *llmcall.Recorder
	count    tokens.Counter
	logger   *slog.Logger
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithRecorder sets the LLM call recorder.
func WithRecorder(r *llmcall.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithRateLimiter sets a shared provider rate limiter.
func WithRateLimiter(l *providers.RateLimiter) Option {
	return func(e *Engine) { e.limiter = l }
}

// WithTokenCounter replaces the default token estimate.
func WithTokenCounter(c tokens.Counter) Option {
	return func(e *Engine) { e.count = c }
}

// New creates an extraction engine.
func New(cfg Config, client providers.LLMClient, sc *scorer.Scorer, opts ...Option) *Engine {
	if cfg.MaxTokensPerRequest <= 0 {
		cfg.MaxTokensPerRequest = 4000
	}
	if cfg.DocumentChunkThreshold <= 0 {
		cfg.DocumentChunkThreshold = 3000
	}
	if cfg.SchemaChunkThreshold <= 0 {
		cfg.SchemaChunkThreshold = 1000
	}
	if cfg.OverlapTokens < 0 {
		cfg.OverlapTokens = 0
	}
	if cfg.SinglePassDepthThreshold <= 0 {
		cfg.SinglePassDepthThreshold = 2
	}
	if cfg.SinglePassObjectThreshold <= 0 {
		cfg.SinglePassObjectThreshold = 2
	}
	if cfg.MaxConcurrentCalls <= 0 {
		cfg.MaxConcurrentCalls = 5
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}

	e := &Engine{
		cfg:    cfg,
		client: client,
		scorer: sc,
		count:  tokens.Estimate,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AnalyzeSchema parses a schema and reports its metrics and the strategy the
// engine would use, without issuing any LLM calls.
func (e *Engine) AnalyzeSchema(raw []byte) (*schema.Schema, schema.ComplexityMetrics, schema.StrategyDecision, error) {
	s, err := schema.Parse(raw)
	if err != nil {
		return nil, schema.ComplexityMetrics{}, schema.StrategyDecision{}, err
	}
	m, decision, err := schema.Analyze(s, e.thresholds(), e.count)
	if err != nil {
		return nil, m, schema.StrategyDecision{}, err
	}
	return s, m, decision, nil
}

// Extract runs the full pipeline for one document/schema pair.
//
// Fatal schema errors (*schema.ParseError, *schema.RefCycleError,
// *schema.DependencyCycleError) return a nil result. Every other outcome
// returns a result: StateFailed with empty data when no call succeeded,
// StateDone with partial data, errors and a review queue otherwise.
func (e *Engine) Extract(ctx context.Context, document string, schemaRaw []byte) (*types.ExtractionResult, error) {
	s, metrics, decision, err := e.AnalyzeSchema(schemaRaw)
	if err != nil {
		return nil, err
	}

	if e.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RequestTimeout)
		defer cancel()
	}

	res := &types.ExtractionResult{
		Data:            map[string]any{},
		FieldConfidence: map[string]float64{},
		State:           types.StateAnalyzing,
	}

	docChunks, err := chunker.Chunk(document, e.docChunkBudget(), e.cfg.OverlapTokens, e.count)
	if err != nil {
		return nil, err
	}

	// A document too long for one call forces chunked execution even when
	// the schema alone would fit a single pass.
	strategy := decision.Strategy
	if len(docChunks) > 1 {
		strategy = types.StrategyChunked
	}
	res.Strategy = strategy

	e.logger.Info("extraction started",
		"strategy", strategy,
		"schema_tokens", metrics.EstimatedTokens,
		"complexity", metrics.ComplexityScore,
		"document_chunks", len(docChunks))

	var partials []partial
	switch strategy {
	case types.StrategySinglePass:
		res.State = types.StateSinglePass
		partials = e.runSinglePass(ctx, document, s, res)
	case types.StrategyHierarchical:
		res.State = types.StateHierarchical
		partials = e.runHierarchical(ctx, document, s, res)
	default:
		res.State = types.StateChunked
		partials = e.runChunked(ctx, docChunks, s, decision, res)
	}

	res.State = types.StateMerging
	e.mergePartials(res, partials, s)

	if len(partials) == 0 {
		res.State = types.StateFailed
		e.logger.Warn("extraction failed, no call succeeded", "errors", len(res.Errors))
		return res, nil
	}

	res.State = types.StateDone
	if e.scorer != nil {
		res = e.scorer.Score(res, s)
	}
	e.logger.Info("extraction done",
		"fields", len(res.FieldConfidence),
		"overall_confidence", res.OverallConfidence,
		"errors", len(res.Errors),
		"review_items", len(res.ReviewQueue))
	return res, nil
}

func (e *Engine) thresholds() schema.Thresholds {
	return schema.Thresholds{
		SchemaChunkTokens: e.cfg.SchemaChunkThreshold,
		SinglePassDepth:   e.cfg.SinglePassDepthThreshold,
		SinglePassObjects: e.cfg.SinglePassObjectThreshold,
	}
}

// docChunkBudget is the per-chunk token budget for document windows, never
// past the per-call request cap.
func (e *Engine) docChunkBudget() int {
	budget := e.cfg.DocumentChunkThreshold
	if e.cfg.MaxTokensPerRequest > 0 && e.cfg.MaxTokensPerRequest < budget {
		budget = e.cfg.MaxTokensPerRequest
	}
	return budget
}
