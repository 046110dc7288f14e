package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/jackzampolin/distill/internal/schema"
	"github.com/jackzampolin/distill/internal/types"
)

// runSinglePass extracts the whole schema from the whole document in one call.
func (e *Engine) runSinglePass(ctx context.Context, document string, s *schema.Schema, res *types.ExtractionResult) []partial {
	data, usage, err := e.extract(ctx, callSpec{
		requestID:   uuid.New().String(),
		stage:       "single_pass",
		schemaChunk: -1,
		docChunk:    0,
		pass:        0,
		document:    document,
		schemaJSON:  s.Raw,
	})
	if err != nil {
		addUsage(res, usage)
		res.Errors = append(res.Errors, types.ChunkError{
			Stage:         "single_pass",
			SchemaChunk:   -1,
			DocumentChunk: 0,
			Pass:          -1,
			Message:       err.Error(),
		})
		e.logger.Warn("single-pass extraction failed", "error", err)
		return nil
	}
	return []partial{{pass: 0, schemaChunk: -1, docChunk: 0, data: data, usage: usage}}
}
