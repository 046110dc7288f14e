// Package schema parses JSON Schemas into an analyzable form and recommends
// an extraction strategy.
//
// Schemas are modeled as an arena of nodes addressed by integer id rather
// than embedded recursive pointers. Reference cycles become a visited-set
// check over ids during resolution instead of pointer-identity tricks, and
// sub-schema construction for chunking works from paths alone.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a schema node.
type Kind string

const (
	KindObject    Kind = "object"
	KindArray     Kind = "array"
	KindPrimitive Kind = "primitive"
	KindEnum      Kind = "enum"
)

// itemsSegment is the pseudo path segment used for array item schemas.
const itemsSegment = "[]"

// Node is one node in the schema tree.
type Node struct {
	ID       int
	Path     string // dot-separated from root; "" is the root itself
	Kind     Kind
	Type     string // declared JSON type, may be empty
	Children []int  // ids into the arena, in sorted property order
	Required bool   // required in the parent object

	// Constraints is the node's resolved schema fragment, verbatim.
	// The pipeline passes it through to prompts and validation untouched.
	Constraints json.RawMessage

	// DependsOn lists field paths this node's extraction depends on
	// (conditional if/then references and intra-schema refs).
	DependsOn []string
}

// Schema is a parsed, reference-resolved schema.
type Schema struct {
	Nodes  []Node // Nodes[0] is the root
	byPath map[string]int

	// Raw is the resolved schema document, re-serialized. All $ref
	// indirections have been substituted.
	Raw json.RawMessage

	// doc is the resolved document used to build sub-schemas.
	doc map[string]any
}

// Parse parses raw JSON Schema bytes, resolving $ref references by
// substitution. A malformed document returns *ParseError; a reference cycle
// returns *RefCycleError.
func Parse(raw []byte) (*Schema, error) {
	var root any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, &ParseError{Msg: "invalid JSON", Err: err}
	}
	doc, ok := root.(map[string]any)
	if !ok {
		return nil, &ParseError{Msg: "schema must be a JSON object"}
	}

	r := &resolver{root: doc, onStack: make(map[string]bool)}
	resolved, err := r.resolve(doc)
	if err != nil {
		return nil, err
	}
	resolvedDoc, ok := resolved.(map[string]any)
	if !ok {
		return nil, &ParseError{Msg: "schema resolved to a non-object"}
	}

	rawResolved, err := json.Marshal(resolvedDoc)
	if err != nil {
		return nil, &ParseError{Msg: "failed to serialize resolved schema", Err: err}
	}

	s := &Schema{byPath: make(map[string]int), Raw: rawResolved, doc: resolvedDoc}
	if _, err := s.addNode(resolvedDoc, "", false); err != nil {
		return nil, err
	}
	return s, nil
}

// addNode recursively builds the arena. Returns the new node's id.
func (s *Schema) addNode(frag map[string]any, path string, required bool) (int, error) {
	if _, exists := s.byPath[path]; exists {
		return 0, &ParseError{Msg: fmt.Sprintf("duplicate schema path %q", path)}
	}

	constraints, err := json.Marshal(frag)
	if err != nil {
		return 0, &ParseError{Msg: "failed to serialize schema fragment", Err: err}
	}

	id := len(s.Nodes)
	s.Nodes = append(s.Nodes, Node{
		ID:          id,
		Path:        path,
		Kind:        kindOf(frag),
		Type:        stringField(frag, "type"),
		Required:    required,
		Constraints: constraints,
		DependsOn:   conditionalDeps(frag, path),
	})
	s.byPath[path] = id

	// Object properties, in sorted order for deterministic paths.
	if props, ok := frag["properties"].(map[string]any); ok {
		requiredSet := requiredSet(frag)
		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			child, ok := props[name].(map[string]any)
			if !ok {
				continue
			}
			childPath := name
			if path != "" {
				childPath = path + "." + name
			}
			childID, err := s.addNode(child, childPath, requiredSet[name])
			if err != nil {
				return 0, err
			}
			s.Nodes[id].Children = append(s.Nodes[id].Children, childID)
		}
	}

	// Array item schema.
	if items, ok := frag["items"].(map[string]any); ok {
		childPath := itemsSegment
		if path != "" {
			childPath = path + "." + itemsSegment
		}
		childID, err := s.addNode(items, childPath, false)
		if err != nil {
			return 0, err
		}
		s.Nodes[id].Children = append(s.Nodes[id].Children, childID)
	}

	return id, nil
}

// Root returns the root node.
func (s *Schema) Root() *Node { return &s.Nodes[0] }

// NodeAt returns the node for a field path.
func (s *Schema) NodeAt(path string) (*Node, bool) {
	id, ok := s.byPath[path]
	if !ok {
		return nil, false
	}
	return &s.Nodes[id], true
}

// Leaves returns the paths of all leaf fields (non-container nodes) in
// deterministic (sorted traversal) order. Array item pseudo-nodes are
// excluded; the array field itself is the leaf.
func (s *Schema) Leaves() []string {
	var out []string
	var walk func(id int)
	walk = func(id int) {
		n := &s.Nodes[id]
		if n.Kind == KindObject && len(n.Children) > 0 {
			for _, c := range n.Children {
				walk(c)
			}
			return
		}
		if n.Path == "" || strings.HasSuffix(n.Path, itemsSegment) {
			return
		}
		out = append(out, n.Path)
	}
	walk(0)
	return out
}

// FragmentAt returns the resolved schema fragment for a field path.
func (s *Schema) FragmentAt(path string) (map[string]any, bool) {
	if path == "" {
		return s.doc, true
	}
	cur := s.doc
	for _, seg := range strings.Split(path, ".") {
		if seg == itemsSegment {
			items, ok := cur["items"].(map[string]any)
			if !ok {
				return nil, false
			}
			cur = items
			continue
		}
		props, ok := cur["properties"].(map[string]any)
		if !ok {
			return nil, false
		}
		next, ok := props[seg].(map[string]any)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// SubSchema builds an object schema containing only the given field paths,
// preserving nesting and required markers along the way.
func (s *Schema) SubSchema(paths []string) map[string]any {
	out := map[string]any{"type": "object", "properties": map[string]any{}}
	for _, path := range paths {
		frag, ok := s.FragmentAt(path)
		if !ok {
			continue
		}
		insertField(out, strings.Split(path, "."), frag, s)
	}
	return out
}

func insertField(root map[string]any, segs []string, frag map[string]any, s *Schema) {
	cur := root
	prefix := ""
	for _, seg := range segs[:len(segs)-1] {
		if prefix == "" {
			prefix = seg
		} else {
			prefix = prefix + "." + seg
		}
		props := cur["properties"].(map[string]any)
		next, ok := props[seg].(map[string]any)
		if !ok {
			next = map[string]any{"type": "object", "properties": map[string]any{}}
			props[seg] = next
		}
		if _, ok := next["properties"]; !ok {
			next["properties"] = map[string]any{}
		}
		cur = next
	}

	leaf := segs[len(segs)-1]
	cur["properties"].(map[string]any)[leaf] = frag

	// Preserve the required marker from the original parent object.
	fullPath := strings.Join(segs, ".")
	if n, ok := s.NodeAt(fullPath); ok && n.Required {
		req, _ := cur["required"].([]any)
		for _, r := range req {
			if r == leaf {
				return
			}
		}
		cur["required"] = append(req, leaf)
	}
}

// RequiredPaths returns all required leaf field paths.
func (s *Schema) RequiredPaths() []string {
	var out []string
	for _, p := range s.Leaves() {
		if n, ok := s.NodeAt(p); ok && n.Required {
			out = append(out, p)
		}
	}
	return out
}

func kindOf(frag map[string]any) Kind {
	if _, ok := frag["enum"]; ok {
		return KindEnum
	}
	t := stringField(frag, "type")
	if _, ok := frag["properties"]; ok || t == "object" {
		return KindObject
	}
	if _, ok := frag["items"]; ok || t == "array" {
		return KindArray
	}
	return KindPrimitive
}

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

func requiredSet(frag map[string]any) map[string]bool {
	out := make(map[string]bool)
	req, ok := frag["required"].([]any)
	if !ok {
		return out
	}
	for _, r := range req {
		if name, ok := r.(string); ok {
			out[name] = true
		}
	}
	return out
}

// conditionalDeps extracts sibling field references from if/then conditional
// blocks: a field whose schema branches on other properties needs those
// properties extracted first.
func conditionalDeps(frag map[string]any, path string) []string {
	cond, ok := frag["if"].(map[string]any)
	if !ok {
		return nil
	}
	names := collectPropertyNames(cond)
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)

	parent := ""
	if i := strings.LastIndex(path, "."); i >= 0 {
		parent = path[:i]
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		dep := name
		if parent != "" {
			dep = parent + "." + name
		}
		if dep != path {
			out = append(out, dep)
		}
	}
	return out
}

func collectPropertyNames(v any) []string {
	var out []string
	switch t := v.(type) {
	case map[string]any:
		for key, val := range t {
			if key == "properties" {
				if props, ok := val.(map[string]any); ok {
					for name := range props {
						out = append(out, name)
					}
				}
				continue
			}
			out = append(out, collectPropertyNames(val)...)
		}
	case []any:
		for _, item := range t {
			out = append(out, collectPropertyNames(item)...)
		}
	}
	return out
}
