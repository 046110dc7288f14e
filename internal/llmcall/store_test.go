package llmcall

import (
	"fmt"
	"testing"
	"time"

	"github.com/jackzampolin/distill/internal/providers"
)

func testCall(i int, success bool) *Call {
	return &Call{
		ID:           fmt.Sprintf("call-%d", i),
		Timestamp:    time.Now(),
		RequestID:    "req-1",
		Stage:        "chunked",
		PromptKey:    "extract.chunked",
		Provider:     "mock",
		InputTokens:  10,
		OutputTokens: 5,
		Success:      success,
	}
}

func TestStoreAddGet(t *testing.T) {
	s := NewStore(10)
	s.Add(testCall(1, true))

	got := s.Get("call-1")
	if got == nil {
		t.Fatal("Get() = nil after Add")
	}
	if got.Provider != "mock" {
		t.Errorf("Provider = %s, want mock", got.Provider)
	}
	if s.Get("missing") != nil {
		t.Error("Get(missing) != nil")
	}

	// nil calls are ignored
	s.Add(nil)
	if got := len(s.List(QueryFilter{})); got != 1 {
		t.Errorf("List() has %d calls, want 1", got)
	}
}

func TestStoreEviction(t *testing.T) {
	s := NewStore(3)
	for i := 1; i <= 5; i++ {
		s.Add(testCall(i, true))
	}

	calls := s.List(QueryFilter{})
	if len(calls) != 3 {
		t.Fatalf("List() has %d calls, want capacity 3", len(calls))
	}
	// Oldest first, with the first two evicted.
	for i, want := range []string{"call-3", "call-4", "call-5"} {
		if calls[i].ID != want {
			t.Errorf("calls[%d].ID = %s, want %s", i, calls[i].ID, want)
		}
	}
	if s.Get("call-1") != nil {
		t.Error("evicted call still retrievable")
	}
}

func TestStoreList(t *testing.T) {
	s := NewStore(10)
	s.Add(testCall(1, true))
	s.Add(testCall(2, false))
	other := testCall(3, true)
	other.RequestID = "req-2"
	other.Stage = "single_pass"
	s.Add(other)

	t.Run("by request id", func(t *testing.T) {
		if got := len(s.List(QueryFilter{RequestID: "req-1"})); got != 2 {
			t.Errorf("List(req-1) has %d calls, want 2", got)
		}
	})

	t.Run("by stage", func(t *testing.T) {
		calls := s.List(QueryFilter{Stage: "single_pass"})
		if len(calls) != 1 || calls[0].ID != "call-3" {
			t.Errorf("List(single_pass) = %v", calls)
		}
	})

	t.Run("by success", func(t *testing.T) {
		failed := false
		calls := s.List(QueryFilter{Success: &failed})
		if len(calls) != 1 || calls[0].ID != "call-2" {
			t.Errorf("List(failed) = %v", calls)
		}
	})

	t.Run("with limit", func(t *testing.T) {
		if got := len(s.List(QueryFilter{Limit: 2})); got != 2 {
			t.Errorf("List(limit 2) has %d calls, want 2", got)
		}
	})
}

func TestStoreStats(t *testing.T) {
	s := NewStore(10)
	s.Add(testCall(1, true))
	s.Add(testCall(2, true))
	s.Add(testCall(3, false))

	st := s.Stats()
	if st.Total != 3 || st.Succeeded != 2 || st.Failed != 1 {
		t.Errorf("Stats() = %+v, want 3 total / 2 ok / 1 failed", st)
	}
	if st.InputTokens != 30 || st.OutputTokens != 15 {
		t.Errorf("Stats() tokens = %d in / %d out, want 30 / 15", st.InputTokens, st.OutputTokens)
	}
}

func TestFromChatResult(t *testing.T) {
	result := &providers.ChatResult{
		Content:          `{"a":1}`,
		PromptTokens:     12,
		CompletionTokens: 4,
		TotalTokens:      16,
		ExecutionTime:    250 * time.Millisecond,
		Provider:         "mock",
		ModelUsed:        "test-model",
		Success:          true,
	}
	opts := RecordOptions{
		RequestID:     "req-9",
		Stage:         "hierarchical",
		SchemaChunk:   -1,
		DocumentChunk: 0,
		Pass:          2,
		PromptKey:     "extract.hierarchical",
	}

	call := FromChatResult(result, opts)
	if call == nil {
		t.Fatal("FromChatResult() = nil")
	}
	if call.ID == "" {
		t.Error("ID is empty")
	}
	if call.LatencyMs != 250 {
		t.Errorf("LatencyMs = %d, want 250", call.LatencyMs)
	}
	if call.Pass != 2 || call.SchemaChunk != -1 {
		t.Errorf("coordinates = (%d, %d, %d)", call.SchemaChunk, call.DocumentChunk, call.Pass)
	}
	if call.InputTokens != 12 || call.OutputTokens != 4 {
		t.Errorf("tokens = %d / %d, want 12 / 4", call.InputTokens, call.OutputTokens)
	}

	if FromChatResult(nil, opts) != nil {
		t.Error("FromChatResult(nil) != nil")
	}

	t.Run("failure carries error", func(t *testing.T) {
		failed := &providers.ChatResult{Success: false, ErrorMessage: "boom", Provider: "mock"}
		call := FromChatResult(failed, opts)
		if call.Success || call.Error != "boom" {
			t.Errorf("call = %+v, want failed with error", call)
		}
	})
}

func TestRecorderNilSafe(t *testing.T) {
	var r *Recorder
	// A nil recorder ignores records instead of panicking.
	r.Record(&providers.ChatResult{Success: true}, RecordOptions{})
	r.RecordCall(&Call{ID: "x"})

	store := NewStore(5)
	rec := NewRecorder(store)
	rec.Record(&providers.ChatResult{Success: true, Provider: "mock"}, RecordOptions{PromptKey: "k"})
	if got := store.Stats().Total; got != 1 {
		t.Errorf("Stats().Total = %d, want 1", got)
	}
}
