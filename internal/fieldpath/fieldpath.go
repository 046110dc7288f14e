// Package fieldpath manipulates nested JSON values addressed by
// dot-separated field paths ("customer.address.city").
package fieldpath

import "strings"

// Get returns the value at path, or nil and false when any segment is missing
// or a non-object is traversed.
func Get(data map[string]any, path string) (any, bool) {
	if data == nil || path == "" {
		return nil, false
	}
	segs := strings.Split(path, ".")
	var cur any = data
	for _, seg := range segs {
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

// Set writes value at path, creating intermediate objects as needed.
// Existing non-object intermediates are replaced.
func Set(data map[string]any, path string, value any) {
	segs := strings.Split(path, ".")
	cur := data
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = value
}

// Flatten converts a nested object into a path -> leaf value map.
// Arrays are treated as leaves: chunk merging and scoring address arrays as
// whole values, not element by element.
func Flatten(data map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", data)
	return out
}

func flattenInto(out map[string]any, prefix string, data map[string]any) {
	for k, v := range data {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if m, ok := v.(map[string]any); ok {
			flattenInto(out, key, m)
			continue
		}
		out[key] = v
	}
}

// DeepMerge merges b into a copy of a. Nested objects merge recursively;
// any other collision takes b's value.
func DeepMerge(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if bm, ok := v.(map[string]any); ok {
			if am, ok := out[k].(map[string]any); ok {
				out[k] = DeepMerge(am, bm)
				continue
			}
		}
		out[k] = v
	}
	return out
}
