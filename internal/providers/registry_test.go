package providers

import (
	"context"
	"encoding/json"
	"testing"
)

func TestRegistryRegisterGet(t *testing.T) {
	r := NewRegistry()
	mock := NewMockClient()

	r.Register("mock", mock, 60)

	got, err := r.Get("mock")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != mock {
		t.Error("Get() returned a different client")
	}
	if !r.Has("mock") {
		t.Error("Has() = false after Register")
	}
	if r.Limiter("mock") == nil {
		t.Error("Limiter() = nil after Register")
	}

	r.Unregister("mock")
	if _, err := r.Get("mock"); err == nil {
		t.Error("Get() after Unregister succeeded")
	}
}

func TestNewRegistryFromConfig(t *testing.T) {
	cfg := RegistryConfig{Providers: map[string]ProviderConfig{
		"mock":     {Type: "mock", Enabled: true, RPM: 10},
		"disabled": {Type: "mock", Enabled: false},
		"keyless":  {Type: "openai", Enabled: true}, // no API key, skipped
		"unknown":  {Type: "carrier-pigeon", Enabled: true},
	}}

	r := NewRegistryFromConfig(cfg)

	if !r.Has("mock") {
		t.Error("mock provider not registered")
	}
	for _, name := range []string{"disabled", "keyless", "unknown"} {
		if r.Has(name) {
			t.Errorf("%s provider registered, want skipped", name)
		}
	}
	if got := len(r.List()); got != 1 {
		t.Errorf("List() has %d entries, want 1", got)
	}
}

func TestRegistryReload(t *testing.T) {
	r := NewRegistryFromConfig(RegistryConfig{Providers: map[string]ProviderConfig{
		"a": {Type: "mock", Enabled: true},
		"b": {Type: "mock", Enabled: true},
	}})

	r.Reload(RegistryConfig{Providers: map[string]ProviderConfig{
		"b": {Type: "mock", Enabled: true},
		"c": {Type: "mock", Enabled: true},
	}})

	if r.Has("a") {
		t.Error("provider a survived reload")
	}
	if !r.Has("b") || !r.Has("c") {
		t.Errorf("List() after reload = %v, want b and c", r.List())
	}
}

func TestMockClientChat(t *testing.T) {
	mock := NewMockClient()
	mock.ResponseJSON = json.RawMessage(`{"name": "Ada"}`)

	req := &ChatRequest{
		Messages:       []Message{{Role: "user", Content: "extract"}},
		Model:          "test-model",
		ResponseFormat: &ResponseFormat{Type: "json_object"},
	}
	result, err := mock.Chat(context.Background(), req)
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if !result.Success {
		t.Error("Success = false")
	}
	if string(result.ParsedJSON) != `{"name": "Ada"}` {
		t.Errorf("ParsedJSON = %s", result.ParsedJSON)
	}
	if result.TotalTokens == 0 {
		t.Error("TotalTokens = 0, want usage accounting")
	}
	if mock.RequestCount() != 1 {
		t.Errorf("RequestCount() = %d, want 1", mock.RequestCount())
	}

	t.Run("scripted responses", func(t *testing.T) {
		mock.Reset()
		mock.Respond = func(call int, req *ChatRequest) (json.RawMessage, error) {
			if call == 1 {
				return nil, &InvalidResponseError{Message: "not JSON"}
			}
			return json.RawMessage(`{"ok": true}`), nil
		}

		if _, err := mock.Chat(context.Background(), req); err == nil {
			t.Fatal("first scripted call succeeded, want error")
		}
		result, err := mock.Chat(context.Background(), req)
		if err != nil {
			t.Fatalf("second scripted call error = %v", err)
		}
		if string(result.ParsedJSON) != `{"ok": true}` {
			t.Errorf("ParsedJSON = %s", result.ParsedJSON)
		}
	})
}
