package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jackzampolin/distill/internal/chunker"
	"github.com/jackzampolin/distill/internal/fieldpath"
	"github.com/jackzampolin/distill/internal/schema"
	"github.com/jackzampolin/distill/internal/types"
)

// chunkSlot holds the outcome of one (schema chunk × document chunk) call.
// Each goroutine writes exactly one slot, so no result is lost under
// concurrent completion.
type chunkSlot struct {
	ok      bool
	partial partial
	errRec  types.ChunkError
	usage   types.TokenUsage
}

// runChunked issues one call per (schema chunk × document chunk) pair.
// Schema chunks are grouped into dependency tiers; tiers run sequentially so
// a chunk's context fields are extracted before it runs, while all calls
// within a tier run concurrently behind the configured semaphore.
func (e *Engine) runChunked(ctx context.Context, docChunks []chunker.DocumentChunk, s *schema.Schema, decision schema.StrategyDecision, res *types.ExtractionResult) []partial {
	requestID := uuid.New().String()

	schemaChunks := decision.ChunkPlan
	if len(schemaChunks) == 0 {
		// Document-side chunking only: the whole schema is one chunk.
		schemaChunks = []schema.Chunk{{ID: 0, Schema: s.Raw, Fields: s.Leaves()}}
	}

	tiers := dependencyTiers(schemaChunks)
	sem := make(chan struct{}, e.cfg.MaxConcurrentCalls)
	acc := e.newAccumulator(s)

	var all []partial
	for pass, tier := range tiers {
		slots := make([]chunkSlot, len(tier)*len(docChunks))
		var wg sync.WaitGroup

		for ti, sc := range tier {
			depCtx := dependencyContext(sc, acc)
			for _, dc := range docChunks {
				idx := ti*len(docChunks) + dc.Index
				wg.Add(1)
				go func(idx, pass int, sc schema.Chunk, dc chunker.DocumentChunk, depCtx map[string]any) {
					defer wg.Done()

					select {
					case sem <- struct{}{}:
						defer func() { <-sem }()
					case <-ctx.Done():
						slots[idx] = chunkSlot{errRec: types.ChunkError{
							Stage: "chunked", SchemaChunk: sc.ID, DocumentChunk: dc.Index, Pass: pass,
							Message: ctx.Err().Error(),
						}}
						return
					}

					data, usage, err := e.extract(ctx, callSpec{
						requestID:   requestID,
						stage:       "chunked",
						schemaChunk: sc.ID,
						docChunk:    dc.Index,
						pass:        pass,
						document:    dc.Text,
						schemaJSON:  sc.Schema,
						context:     depCtx,
					})
					if err != nil {
						slots[idx] = chunkSlot{
							usage: usage,
							errRec: types.ChunkError{
								Stage: "chunked", SchemaChunk: sc.ID, DocumentChunk: dc.Index, Pass: pass,
								Message: err.Error(),
							},
						}
						return
					}
					slots[idx] = chunkSlot{
						ok: true,
						partial: partial{
							pass:        pass,
							schemaChunk: sc.ID,
							docChunk:    dc.Index,
							data:        restrictToPaths(data, sc.Fields),
							usage:       usage,
						},
					}
				}(idx, pass, sc, dc, depCtx)
			}
		}
		wg.Wait()

		// Collect in slot order for deterministic error ordering.
		tierPartials := make([]partial, 0, len(slots))
		for _, sl := range slots {
			if !sl.ok {
				addUsage(res, sl.usage)
				res.Errors = append(res.Errors, sl.errRec)
				e.logger.Warn("chunk extraction failed",
					"schema_chunk", sl.errRec.SchemaChunk,
					"document_chunk", sl.errRec.DocumentChunk,
					"error", sl.errRec.Message)
				continue
			}
			tierPartials = append(tierPartials, sl.partial)
		}

		// Merge the tier so later tiers see its fields as context.
		sort.Slice(tierPartials, func(i, j int) bool { return lessPartial(tierPartials[i], tierPartials[j]) })
		for _, p := range tierPartials {
			acc.absorb(p)
		}
		all = append(all, tierPartials...)

		if ctx.Err() != nil {
			// Deadline passed: skip remaining tiers and merge what we have.
			break
		}
	}
	return all
}

func lessPartial(a, b partial) bool {
	if a.pass != b.pass {
		return a.pass < b.pass
	}
	if a.docChunk != b.docChunk {
		return a.docChunk < b.docChunk
	}
	return a.schemaChunk < b.schemaChunk
}

// dependencyTiers groups schema chunks so every chunk lands in a later tier
// than all chunks producing its dependency fields. Chunks arrive in
// topological order, so a single forward pass assigns tiers.
func dependencyTiers(chunks []schema.Chunk) [][]schema.Chunk {
	owner := make(map[string]int, len(chunks))
	for _, c := range chunks {
		for _, f := range c.Fields {
			owner[f] = c.ID
		}
	}

	tierOf := make(map[int]int, len(chunks))
	maxTier := 0
	for _, c := range chunks {
		t := 0
		for _, dep := range c.DependsOn {
			if producer, ok := owner[dep]; ok && producer != c.ID {
				if tierOf[producer]+1 > t {
					t = tierOf[producer] + 1
				}
			}
		}
		tierOf[c.ID] = t
		if t > maxTier {
			maxTier = t
		}
	}

	out := make([][]schema.Chunk, maxTier+1)
	for _, c := range chunks {
		out[tierOf[c.ID]] = append(out[tierOf[c.ID]], c)
	}
	return out
}

// dependencyContext gathers already-extracted values for a chunk's DependsOn
// fields from the accumulator.
func dependencyContext(sc schema.Chunk, acc *accumulator) map[string]any {
	if len(sc.DependsOn) == 0 {
		return nil
	}
	out := map[string]any{}
	for _, dep := range sc.DependsOn {
		if v, ok := fieldpath.Get(acc.data, dep); ok {
			fieldpath.Set(out, dep, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
