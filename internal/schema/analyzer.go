package schema

import (
	"fmt"

	"github.com/jackzampolin/distill/internal/tokens"
	"github.com/jackzampolin/distill/internal/types"
)

// Thresholds are the configured strategy boundaries. They are injected so
// the same analyzer serves small-context and huge-context models.
type Thresholds struct {
	// SchemaChunkTokens is the token size above which the schema itself
	// must be split across multiple calls.
	SchemaChunkTokens int
	// SinglePassDepth is the max nesting depth still handled in one pass.
	SinglePassDepth int
	// SinglePassObjects is the max nested object count still handled in
	// one pass.
	SinglePassObjects int
}

// StrategyDecision is the analyzer's recommendation for a schema.
type StrategyDecision struct {
	Strategy  types.Strategy `json:"strategy"`
	Rationale string         `json:"rationale"`
	// ChunkPlan is populated only for StrategyChunked.
	ChunkPlan []Chunk `json:"chunk_plan,omitempty"`
}

// Analyze computes complexity metrics and selects an extraction strategy.
//
// The decision is a pure function of the metrics and thresholds: the same
// schema and configuration always produce the same strategy.
func Analyze(s *Schema, th Thresholds, count tokens.Counter) (ComplexityMetrics, StrategyDecision, error) {
	m := ComputeMetrics(s, count)

	if m.EstimatedTokens > th.SchemaChunkTokens {
		plan, err := BuildChunkPlan(s, th.SchemaChunkTokens, count)
		if err != nil {
			return m, StrategyDecision{}, err
		}
		return m, StrategyDecision{
			Strategy: types.StrategyChunked,
			Rationale: fmt.Sprintf("schema is ~%d tokens, over the %d token chunking threshold; split into %d dependency-ordered chunks",
				m.EstimatedTokens, th.SchemaChunkTokens, len(plan)),
			ChunkPlan: plan,
		}, nil
	}

	if m.MaxDepth >= th.SinglePassDepth || m.ObjectCount >= th.SinglePassObjects {
		return m, StrategyDecision{
			Strategy: types.StrategyHierarchical,
			Rationale: fmt.Sprintf("depth %d / %d nested objects exceed single-pass thresholds (depth < %d, objects < %d) but schema fits in one call",
				m.MaxDepth, m.ObjectCount, th.SinglePassDepth, th.SinglePassObjects),
		}, nil
	}

	return m, StrategyDecision{
		Strategy: types.StrategySinglePass,
		Rationale: fmt.Sprintf("schema is ~%d tokens with depth %d; extractable in a single call",
			m.EstimatedTokens, m.MaxDepth),
	}, nil
}
