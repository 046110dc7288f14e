package schema

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

const personSchema = `{
	"type": "object",
	"required": ["name"],
	"properties": {
		"name": {"type": "string"},
		"age": {"type": "integer", "minimum": 0},
		"address": {
			"type": "object",
			"required": ["city"],
			"properties": {
				"city": {"type": "string"},
				"geo": {
					"type": "object",
					"properties": {
						"lat": {"type": "number"}
					}
				}
			}
		},
		"tags": {"type": "array", "items": {"type": "string"}}
	}
}`

func TestParse(t *testing.T) {
	s, err := Parse([]byte(personSchema))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	t.Run("leaves", func(t *testing.T) {
		want := []string{"address.city", "address.geo.lat", "age", "name", "tags"}
		if got := s.Leaves(); !reflect.DeepEqual(got, want) {
			t.Errorf("Leaves() = %v, want %v", got, want)
		}
	})

	t.Run("required markers", func(t *testing.T) {
		want := []string{"address.city", "name"}
		if got := s.RequiredPaths(); !reflect.DeepEqual(got, want) {
			t.Errorf("RequiredPaths() = %v, want %v", got, want)
		}
	})

	t.Run("node lookup", func(t *testing.T) {
		n, ok := s.NodeAt("address.geo")
		if !ok {
			t.Fatal("NodeAt(address.geo) not found")
		}
		if n.Kind != KindObject {
			t.Errorf("Kind = %v, want %v", n.Kind, KindObject)
		}

		n, ok = s.NodeAt("tags")
		if !ok {
			t.Fatal("NodeAt(tags) not found")
		}
		if n.Kind != KindArray {
			t.Errorf("NodeAt(tags) kind = %v, want array", n.Kind)
		}

		if _, ok := s.NodeAt("nope"); ok {
			t.Error("NodeAt(nope) found, want missing")
		}
	})

	t.Run("constraints preserved", func(t *testing.T) {
		n, _ := s.NodeAt("age")
		var frag map[string]any
		if err := json.Unmarshal(n.Constraints, &frag); err != nil {
			t.Fatalf("unmarshal constraints: %v", err)
		}
		if frag["minimum"] != float64(0) {
			t.Errorf("minimum = %v, want 0", frag["minimum"])
		}
	})
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"invalid JSON", `{"type": `},
		{"non-object", `[1, 2]`},
		{"unresolved ref", `{"properties": {"a": {"$ref": "#/$defs/missing"}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Errorf("Parse() error = %v, want *ParseError", err)
			}
		})
	}
}

func TestParseResolvesRefs(t *testing.T) {
	raw := `{
		"type": "object",
		"properties": {
			"home": {"$ref": "#/$defs/address"},
			"work": {"$ref": "#/$defs/address"}
		},
		"$defs": {
			"address": {
				"type": "object",
				"required": ["city"],
				"properties": {"city": {"type": "string"}}
			}
		}
	}`
	s, err := Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	for _, path := range []string{"home.city", "work.city"} {
		n, ok := s.NodeAt(path)
		if !ok {
			t.Fatalf("NodeAt(%s) not found after ref resolution", path)
		}
		if !n.Required {
			t.Errorf("NodeAt(%s).Required = false, want true", path)
		}
	}

	// The resolved document carries no $ref indirections.
	var doc map[string]any
	if err := json.Unmarshal(s.Raw, &doc); err != nil {
		t.Fatalf("unmarshal resolved schema: %v", err)
	}
	if containsKey(doc, "$ref") {
		t.Error("resolved schema still contains $ref")
	}
}

func TestParseRefCycle(t *testing.T) {
	raw := `{
		"type": "object",
		"properties": {"root": {"$ref": "#/$defs/a"}},
		"$defs": {
			"a": {"properties": {"next": {"$ref": "#/$defs/b"}}},
			"b": {"properties": {"back": {"$ref": "#/$defs/a"}}}
		}
	}`
	_, err := Parse([]byte(raw))
	var rce *RefCycleError
	if !errors.As(err, &rce) {
		t.Fatalf("Parse() error = %v, want *RefCycleError", err)
	}
	if len(rce.Cycle) < 2 {
		t.Errorf("Cycle = %v, want at least the two looping refs", rce.Cycle)
	}
}

func TestSubSchema(t *testing.T) {
	s, err := Parse([]byte(personSchema))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	sub := s.SubSchema([]string{"name", "address.city"})

	props, ok := sub["properties"].(map[string]any)
	if !ok {
		t.Fatal("sub-schema has no properties")
	}
	if _, ok := props["name"]; !ok {
		t.Error("sub-schema missing name")
	}
	addr, ok := props["address"].(map[string]any)
	if !ok {
		t.Fatal("sub-schema missing address object")
	}
	addrProps := addr["properties"].(map[string]any)
	if _, ok := addrProps["city"]; !ok {
		t.Error("sub-schema missing address.city")
	}
	if _, ok := addrProps["geo"]; ok {
		t.Error("sub-schema includes unrequested address.geo")
	}

	// Required marker travels with the field.
	req, _ := addr["required"].([]any)
	if len(req) != 1 || req[0] != "city" {
		t.Errorf("address.required = %v, want [city]", req)
	}
}

func containsKey(v any, key string) bool {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if k == key || containsKey(val, key) {
				return true
			}
		}
	case []any:
		for _, item := range t {
			if containsKey(item, key) {
				return true
			}
		}
	}
	return false
}
