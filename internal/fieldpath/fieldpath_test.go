package fieldpath

import (
	"reflect"
	"testing"
)

func sample() map[string]any {
	return map[string]any{
		"name": "Ada",
		"address": map[string]any{
			"city": "London",
			"geo": map[string]any{
				"lat": 51.5,
			},
		},
		"tags": []any{"a", "b"},
	}
}

func TestGet(t *testing.T) {
	data := sample()

	tests := []struct {
		name   string
		path   string
		want   any
		wantOK bool
	}{
		{"top level", "name", "Ada", true},
		{"nested", "address.city", "London", true},
		{"deeply nested", "address.geo.lat", 51.5, true},
		{"array as leaf", "tags", []any{"a", "b"}, true},
		{"missing", "address.zip", nil, false},
		{"through non-object", "name.first", nil, false},
		{"empty path", "", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Get(data, tt.path)
			if ok != tt.wantOK {
				t.Fatalf("Get(%q) ok = %v, want %v", tt.path, ok, tt.wantOK)
			}
			if ok && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Get(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}

	if _, ok := Get(nil, "name"); ok {
		t.Error("Get(nil, ...) ok = true, want false")
	}
}

func TestSet(t *testing.T) {
	t.Run("creates intermediates", func(t *testing.T) {
		data := map[string]any{}
		Set(data, "a.b.c", 1)
		got, ok := Get(data, "a.b.c")
		if !ok || got != 1 {
			t.Fatalf("Get after Set = %v, %v; want 1, true", got, ok)
		}
	})

	t.Run("replaces non-object intermediate", func(t *testing.T) {
		data := map[string]any{"a": "scalar"}
		Set(data, "a.b", 2)
		got, ok := Get(data, "a.b")
		if !ok || got != 2 {
			t.Fatalf("Get after Set = %v, %v; want 2, true", got, ok)
		}
	})

	t.Run("overwrites leaf", func(t *testing.T) {
		data := sample()
		Set(data, "address.city", "Paris")
		got, _ := Get(data, "address.city")
		if got != "Paris" {
			t.Fatalf("Get after Set = %v, want Paris", got)
		}
	})
}

func TestFlatten(t *testing.T) {
	flat := Flatten(sample())

	want := map[string]any{
		"name":            "Ada",
		"address.city":    "London",
		"address.geo.lat": 51.5,
		"tags":            []any{"a", "b"},
	}
	if !reflect.DeepEqual(flat, want) {
		t.Errorf("Flatten() = %v, want %v", flat, want)
	}
}

func TestFlattenSetRoundTrip(t *testing.T) {
	orig := sample()
	rebuilt := map[string]any{}
	for path, v := range Flatten(orig) {
		Set(rebuilt, path, v)
	}
	if !reflect.DeepEqual(rebuilt, orig) {
		t.Errorf("rebuilt = %v, want %v", rebuilt, orig)
	}
}

func TestDeepMerge(t *testing.T) {
	a := map[string]any{
		"name": "Ada",
		"address": map[string]any{
			"city": "London",
		},
	}
	b := map[string]any{
		"address": map[string]any{
			"zip": "E1",
		},
		"age": 36,
	}

	got := DeepMerge(a, b)
	want := map[string]any{
		"name": "Ada",
		"address": map[string]any{
			"city": "London",
			"zip":  "E1",
		},
		"age": 36,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DeepMerge() = %v, want %v", got, want)
	}

	// b wins on scalar collision
	got = DeepMerge(map[string]any{"x": 1}, map[string]any{"x": 2})
	if got["x"] != 2 {
		t.Errorf("DeepMerge scalar collision = %v, want 2", got["x"])
	}
}
