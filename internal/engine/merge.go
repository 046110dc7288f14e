package engine

import (
	"encoding/json"
	"sort"

	"github.com/jackzampolin/distill/internal/fieldpath"
	"github.com/jackzampolin/distill/internal/schema"
	"github.com/jackzampolin/distill/internal/types"
)

// partial is the output of one successful extraction call.
type partial struct {
	pass        int
	schemaChunk int
	docChunk    int
	data        map[string]any
	usage       types.TokenUsage
}

// accumulator merges partials field by field. The conflict policy is defined
// purely in terms of confidence and document-chunk index, so merge output is
// identical regardless of call completion order.
type accumulator struct {
	e    *Engine
	s    *schema.Schema
	data map[string]any
	conf map[string]float64
}

func (e *Engine) newAccumulator(s *schema.Schema) *accumulator {
	return &accumulator{
		e:    e,
		s:    s,
		data: map[string]any{},
		conf: map[string]float64{},
	}
}

// absorb merges one partial into the accumulator. Fields unknown to the
// schema are dropped; null values never overwrite extracted ones. On a
// conflict the higher-confidence value wins; an equal score keeps the value
// already present, which belongs to the earlier document chunk as long as
// partials are absorbed in sorted order.
func (a *accumulator) absorb(p partial) {
	flat := fieldpath.Flatten(p.data)
	paths := make([]string, 0, len(flat))
	for path := range flat {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		value := flat[path]
		if value == nil {
			continue
		}
		node, ok := a.s.NodeAt(path)
		if !ok {
			continue
		}
		score := a.e.fieldScore(value, node)

		prev, seen := a.conf[path]
		if !seen {
			fieldpath.Set(a.data, path, value)
			a.conf[path] = score
			continue
		}

		// Arrays filled across document chunks concatenate in chunk order,
		// dropping overlap-induced duplicates.
		if node.Kind == schema.KindArray {
			if next, ok := value.([]any); ok {
				if cur, curOK := fieldpath.Get(a.data, path); curOK {
					if curArr, isArr := cur.([]any); isArr {
						fieldpath.Set(a.data, path, dedupeConcat(curArr, next))
						if score > a.conf[path] {
							a.conf[path] = score
						}
						continue
					}
				}
			}
		}

		if score > prev {
			fieldpath.Set(a.data, path, value)
			a.conf[path] = score
		}
	}
}

// snapshot returns the current accumulator data for use as call context.
func (a *accumulator) snapshot() map[string]any {
	if len(a.data) == 0 {
		return nil
	}
	out := make(map[string]any, len(a.data))
	for k, v := range a.data {
		out[k] = v
	}
	return out
}

// mergePartials folds all partials into the result in deterministic order:
// pass, then document chunk, then schema chunk.
func (e *Engine) mergePartials(res *types.ExtractionResult, partials []partial, s *schema.Schema) {
	sort.Slice(partials, func(i, j int) bool { return lessPartial(partials[i], partials[j]) })

	acc := e.newAccumulator(s)
	for _, p := range partials {
		addUsage(res, p.usage)
		acc.absorb(p)
	}
	res.Data = acc.data
	res.FieldConfidence = acc.conf
}

func (e *Engine) fieldScore(value any, node *schema.Node) float64 {
	if e.scorer != nil {
		return e.scorer.FieldScore(value, node)
	}
	return 1.0
}

func addUsage(res *types.ExtractionResult, u types.TokenUsage) {
	res.TokenUsage.Prompt += u.Prompt
	res.TokenUsage.Completion += u.Completion
	res.TokenUsage.Total += u.Total
}

// dedupeConcat appends b to a, dropping elements whose canonical JSON equals
// one already present.
func dedupeConcat(a, b []any) []any {
	out := make([]any, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))

	add := func(v any) {
		key, err := json.Marshal(v)
		if err != nil {
			out = append(out, v)
			return
		}
		if seen[string(key)] {
			return
		}
		seen[string(key)] = true
		out = append(out, v)
	}

	for _, v := range a {
		add(v)
	}
	for _, v := range b {
		add(v)
	}
	return out
}
