package schema

import (
	"strings"
)

// resolver substitutes $ref references in place, tracking the resolution
// stack so reference cycles are detected instead of recursing forever.
type resolver struct {
	root    map[string]any
	stack   []string
	onStack map[string]bool
}

// resolve deep-copies v with every $ref substituted by its target.
func (r *resolver) resolve(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		if ref, ok := t["$ref"].(string); ok {
			return r.resolveRef(ref)
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			resolved, err := r.resolve(val)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			resolved, err := r.resolve(item)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return v, nil
	}
}

func (r *resolver) resolveRef(ref string) (any, error) {
	if r.onStack[ref] {
		cycle := append(append([]string{}, r.stack...), ref)
		// Trim the prefix before the first occurrence so the error shows
		// only the loop itself.
		for i, s := range cycle {
			if s == ref {
				cycle = cycle[i:]
				break
			}
		}
		return nil, &RefCycleError{Cycle: cycle}
	}

	target, ok := lookupPointer(r.root, ref)
	if !ok {
		return nil, &ParseError{Msg: "unresolved reference " + ref}
	}

	r.stack = append(r.stack, ref)
	r.onStack[ref] = true
	resolved, err := r.resolve(target)
	r.stack = r.stack[:len(r.stack)-1]
	delete(r.onStack, ref)

	return resolved, err
}

// lookupPointer resolves a local JSON pointer ("#/$defs/name",
// "#/definitions/name", or any deeper path) against the root document.
func lookupPointer(root map[string]any, ref string) (any, bool) {
	if !strings.HasPrefix(ref, "#/") {
		return nil, false
	}
	var cur any = root
	for _, seg := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
		seg = strings.ReplaceAll(strings.ReplaceAll(seg, "~1", "/"), "~0", "~")
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
