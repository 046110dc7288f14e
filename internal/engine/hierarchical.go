package engine

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/jackzampolin/distill/internal/fieldpath"
	"github.com/jackzampolin/distill/internal/schema"
	"github.com/jackzampolin/distill/internal/types"
)

// runHierarchical processes the schema level by level: the root object's
// direct fields first, then deeper subtrees. Each pass receives the
// accumulator so far as context, so deeper passes can reference
// already-extracted values. Passes are strictly sequential; pass N is merged
// before pass N+1 begins.
func (e *Engine) runHierarchical(ctx context.Context, document string, s *schema.Schema, res *types.ExtractionResult) []partial {
	requestID := uuid.New().String()
	levels := leafLevels(s)
	acc := e.newAccumulator(s)

	var partials []partial
	for pass, paths := range levels {
		sub := s.SubSchema(paths)
		subJSON, err := json.Marshal(sub)
		if err != nil {
			res.Errors = append(res.Errors, types.ChunkError{
				Stage: "hierarchical", SchemaChunk: -1, DocumentChunk: 0, Pass: pass,
				Message: "failed to serialize level sub-schema: " + err.Error(),
			})
			continue
		}

		data, usage, err := e.extract(ctx, callSpec{
			requestID:   requestID,
			stage:       "hierarchical",
			schemaChunk: -1,
			docChunk:    0,
			pass:        pass,
			document:    document,
			schemaJSON:  subJSON,
			context:     acc.snapshot(),
		})
		if err != nil {
			addUsage(res, usage)
			res.Errors = append(res.Errors, types.ChunkError{
				Stage: "hierarchical", SchemaChunk: -1, DocumentChunk: 0, Pass: pass,
				Message: err.Error(),
			})
			e.logger.Warn("hierarchical pass failed", "pass", pass, "error", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}

		p := partial{
			pass:        pass,
			schemaChunk: -1,
			docChunk:    0,
			data:        restrictToPaths(data, paths),
			usage:       usage,
		}
		partials = append(partials, p)
		acc.absorb(p)
	}
	return partials
}

// leafLevels groups leaf field paths by nesting depth, shallowest first.
func leafLevels(s *schema.Schema) [][]string {
	byDepth := make(map[int][]string)
	maxDepth := 0
	for _, p := range s.Leaves() {
		d := strings.Count(p, ".")
		byDepth[d] = append(byDepth[d], p)
		if d > maxDepth {
			maxDepth = d
		}
	}

	var out [][]string
	for d := 0; d <= maxDepth; d++ {
		paths := byDepth[d]
		if len(paths) == 0 {
			continue
		}
		sort.Strings(paths)
		out = append(out, paths)
	}
	return out
}

// restrictToPaths keeps only the requested field paths from a model response,
// discarding anything the pass was not asked for.
func restrictToPaths(data map[string]any, paths []string) map[string]any {
	want := make(map[string]bool, len(paths))
	for _, p := range paths {
		want[p] = true
	}

	out := map[string]any{}
	for path, value := range fieldpath.Flatten(data) {
		if want[path] {
			fieldpath.Set(out, path, value)
		}
	}
	return out
}
