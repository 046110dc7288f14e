package schema

import (
	"encoding/json"
	"sort"

	"github.com/jackzampolin/distill/internal/tokens"
)

// Chunk is a dependency-closed subset of schema fields extracted together in
// one LLM call. Chunks are read-only once the plan is built.
type Chunk struct {
	ID int `json:"id"`
	// Schema is the sub-schema containing only this chunk's fields.
	Schema json.RawMessage `json:"schema"`
	// Fields are the leaf field paths covered by this chunk.
	Fields []string `json:"fields"`
	// DependsOn are field paths produced by earlier chunks that this
	// chunk's prompt needs as context.
	DependsOn []string `json:"depends_on,omitempty"`
	// EstimatedTokens is the summed token estimate of the member fields.
	EstimatedTokens int `json:"estimated_tokens"`
	// Priority reflects the share of required fields: "high", "medium"
	// or "low". High-priority chunks carry mostly required fields.
	Priority string `json:"priority"`
}

// DependencyGraph maps each leaf field path to the field paths it depends on.
// Only dependencies that resolve to actual leaf fields are kept.
func DependencyGraph(s *Schema) map[string][]string {
	leaves := s.Leaves()
	isLeaf := make(map[string]bool, len(leaves))
	for _, p := range leaves {
		isLeaf[p] = true
	}

	graph := make(map[string][]string, len(leaves))
	for _, p := range leaves {
		n, _ := s.NodeAt(p)
		var deps []string
		for _, d := range n.DependsOn {
			if isLeaf[d] {
				deps = append(deps, d)
			}
		}
		graph[p] = deps
	}
	return graph
}

// TopoOrder returns the leaf fields in dependency order: every field appears
// after all of its dependencies. Ties are broken by sorted field path so the
// order is deterministic. A cycle returns *DependencyCycleError.
func TopoOrder(s *Schema) ([]string, error) {
	graph := DependencyGraph(s)

	indegree := make(map[string]int, len(graph))
	dependents := make(map[string][]string, len(graph))
	for field, deps := range graph {
		if _, ok := indegree[field]; !ok {
			indegree[field] = 0
		}
		for _, d := range deps {
			indegree[field]++
			dependents[d] = append(dependents[d], field)
		}
	}

	var ready []string
	for field, deg := range indegree {
		if deg == 0 {
			ready = append(ready, field)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(graph))
	for len(ready) > 0 {
		field := ready[0]
		ready = ready[1:]
		order = append(order, field)

		next := dependents[field]
		sort.Strings(next)
		for _, dep := range next {
			indegree[dep]--
			if indegree[dep] == 0 {
				ready = insertSorted(ready, dep)
			}
		}
	}

	if len(order) != len(graph) {
		return nil, &DependencyCycleError{Cycle: findCycle(graph)}
	}
	return order, nil
}

// BuildChunkPlan groups leaf fields into token-budgeted chunks in topological
// order. A field is never placed in an earlier chunk than any of its
// dependencies, so no chunk contains forward references.
func BuildChunkPlan(s *Schema, budgetTokens int, count tokens.Counter) ([]Chunk, error) {
	order, err := TopoOrder(s)
	if err != nil {
		return nil, err
	}
	graph := DependencyGraph(s)

	var plan []Chunk
	var fields []string
	current := 0

	flush := func() {
		if len(fields) == 0 {
			return
		}
		plan = append(plan, buildChunk(s, len(plan), fields, current, graph))
		fields = nil
		current = 0
	}

	for _, field := range order {
		frag, ok := s.FragmentAt(field)
		if !ok {
			continue
		}
		raw, err := json.Marshal(frag)
		if err != nil {
			continue
		}
		fieldTokens := count(string(raw))

		if current+fieldTokens > budgetTokens && len(fields) > 0 {
			flush()
		}
		fields = append(fields, field)
		current += fieldTokens
	}
	flush()

	return plan, nil
}

func buildChunk(s *Schema, id int, fields []string, estTokens int, graph map[string][]string) Chunk {
	member := make(map[string]bool, len(fields))
	for _, f := range fields {
		member[f] = true
	}

	// Dependencies satisfied outside this chunk become chunk-level context
	// requirements.
	depSet := make(map[string]bool)
	required := 0
	for _, f := range fields {
		for _, d := range graph[f] {
			if !member[d] {
				depSet[d] = true
			}
		}
		if n, ok := s.NodeAt(f); ok && n.Required {
			required++
		}
	}
	deps := make([]string, 0, len(depSet))
	for d := range depSet {
		deps = append(deps, d)
	}
	sort.Strings(deps)

	sub := s.SubSchema(fields)
	raw, _ := json.Marshal(sub)

	return Chunk{
		ID:              id,
		Schema:          raw,
		Fields:          append([]string(nil), fields...),
		DependsOn:       deps,
		EstimatedTokens: estTokens,
		Priority:        chunkPriority(required, len(fields)),
	}
}

func chunkPriority(required, total int) string {
	if total == 0 {
		return "low"
	}
	share := float64(required) / float64(total)
	switch {
	case share > 0.7:
		return "high"
	case share > 0.3:
		return "medium"
	default:
		return "low"
	}
}

// findCycle extracts one dependency cycle for diagnostics.
func findCycle(graph map[string][]string) []string {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(graph))
	var stack []string
	var cycle []string

	var visit func(field string) bool
	visit = func(field string) bool {
		state[field] = inStack
		stack = append(stack, field)
		for _, dep := range graph[field] {
			switch state[dep] {
			case inStack:
				for i, f := range stack {
					if f == dep {
						cycle = append(append([]string{}, stack[i:]...), dep)
						return true
					}
				}
			case unvisited:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[field] = done
		return false
	}

	fields := make([]string, 0, len(graph))
	for f := range graph {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		if state[f] == unvisited && visit(f) {
			break
		}
	}
	return cycle
}

func insertSorted(list []string, v string) []string {
	i := sort.SearchStrings(list, v)
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = v
	return list
}
