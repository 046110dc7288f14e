package schema

import (
	"encoding/json"

	"github.com/jackzampolin/distill/internal/tokens"
)

// ComplexityMetrics is an immutable summary of a schema, computed once per
// schema in a single traversal.
type ComplexityMetrics struct {
	MaxDepth        int `json:"max_depth"`
	ObjectCount     int `json:"object_count"`
	FieldCount      int `json:"field_count"`
	EnumValueCount  int `json:"enum_value_count"`
	RequiredCount   int `json:"required_count"`
	EstimatedTokens int `json:"estimated_tokens"`

	// ComplexityScore is a 0-100 composite for display and sorting.
	// It is not used for strategy selection.
	ComplexityScore int `json:"complexity_score"`
}

// ComputeMetrics derives ComplexityMetrics from a parsed schema.
// EstimatedTokens is authoritative from the injected counter over the
// resolved serialized schema.
func ComputeMetrics(s *Schema, count tokens.Counter) ComplexityMetrics {
	m := ComplexityMetrics{
		FieldCount:      len(s.Leaves()),
		EstimatedTokens: count(string(s.Raw)),
	}

	var walk func(id, depth int)
	walk = func(id, depth int) {
		n := &s.Nodes[id]
		if depth > m.MaxDepth {
			m.MaxDepth = depth
		}
		if n.ID != 0 && n.Kind == KindObject {
			m.ObjectCount++
		}
		if n.Required {
			m.RequiredCount++
		}
		if n.Kind == KindEnum {
			m.EnumValueCount += enumLen(n.Constraints)
		}
		for _, c := range n.Children {
			child := &s.Nodes[c]
			childDepth := depth
			if child.Kind == KindObject || child.Kind == KindArray {
				childDepth++
			}
			walk(c, childDepth)
		}
	}
	walk(0, 0)

	m.ComplexityScore = complexityScore(m)
	return m
}

// complexityScore combines the raw metrics into a bounded 0-100 score:
// depth up to 30 points, fields up to 25, objects up to 25, enums up to 20.
func complexityScore(m ComplexityMetrics) int {
	score := 0.0
	score += capped(float64(m.MaxDepth)*5, 30)
	score += capped(float64(m.FieldCount)/10, 25)
	score += capped(float64(m.ObjectCount)*2, 25)
	score += capped(float64(m.EnumValueCount)/50, 20)
	return int(score)
}

func capped(v, max float64) float64 {
	if v > max {
		return max
	}
	return v
}

func enumLen(constraints json.RawMessage) int {
	var frag struct {
		Enum []any `json:"enum"`
	}
	if err := json.Unmarshal(constraints, &frag); err != nil {
		return 0
	}
	return len(frag.Enum)
}
