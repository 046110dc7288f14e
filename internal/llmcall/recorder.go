package llmcall

import (
	"github.com/jackzampolin/distill/internal/providers"
)

// Recorder handles LLM call recording into a Store.
type Recorder struct {
	store *Store
}

// NewRecorder creates a new LLM call recorder.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

// Record captures an LLM call. Safe to call on a nil recorder.
func (r *Recorder) Record(result *providers.ChatResult, opts RecordOptions) {
	if r == nil || r.store == nil {
		return
	}
	r.store.Add(FromChatResult(result, opts))
}

// RecordCall captures an already-constructed Call.
func (r *Recorder) RecordCall(call *Call) {
	if r == nil || r.store == nil || call == nil {
		return
	}
	r.store.Add(call)
}

// Store returns the backing store.
func (r *Recorder) Store() *Store {
	if r == nil {
		return nil
	}
	return r.store
}
