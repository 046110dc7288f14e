// Package types holds the shared result model for the extraction pipeline.
package types

// Strategy is the extraction mode chosen for a schema/document pair.
type Strategy string

const (
	StrategySinglePass   Strategy = "single_pass"
	StrategyHierarchical Strategy = "hierarchical"
	StrategyChunked      Strategy = "chunked"
)

// State tracks an extraction request through the engine's state machine.
type State string

const (
	StateAnalyzing    State = "analyzing"
	StateSinglePass   State = "single_pass"
	StateHierarchical State = "hierarchical"
	StateChunked      State = "chunked"
	StateMerging      State = "merging"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// ReviewItem is a field flagged for human verification.
type ReviewItem struct {
	Field      string  `json:"field"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	Priority   string  `json:"priority"` // "high", "medium", "low"
}

// ChunkError records a contained per-chunk or per-pass failure.
// SchemaChunk/DocumentChunk/Pass are -1 when not applicable.
type ChunkError struct {
	Stage         string `json:"stage"` // "single_pass", "hierarchical", "chunked", "validation"
	SchemaChunk   int    `json:"schema_chunk"`
	DocumentChunk int    `json:"document_chunk"`
	Pass          int    `json:"pass"`
	Message       string `json:"message"`
}

// TokenUsage accumulates token counts across all LLM calls in a request.
type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
	Total      int `json:"total"`
}

// ExtractionResult is the final artifact of the pipeline.
//
// A caller can distinguish "could not extract at all" (State == StateFailed,
// empty Data, at least one error) from "extracted with gaps" (State ==
// StateDone, partial Data, populated ReviewQueue and Errors) without
// inspecting internals.
type ExtractionResult struct {
	Data              map[string]any     `json:"data"`
	FieldConfidence   map[string]float64 `json:"field_confidence"`
	OverallConfidence float64            `json:"overall_confidence"`
	ReviewQueue       []ReviewItem       `json:"review_queue"`
	Errors            []ChunkError       `json:"errors"`
	State             State              `json:"state"`
	Strategy          Strategy           `json:"strategy"`
	TokenUsage        TokenUsage         `json:"token_usage"`
}

// Failed reports whether the request produced nothing usable.
func (r *ExtractionResult) Failed() bool {
	return r.State == StateFailed
}
