package llmcall

import (
	"sync"
	"time"
)

// DefaultCapacity bounds the in-memory call history.
const DefaultCapacity = 1000

// Store keeps the most recent LLM call records in a bounded in-memory ring.
// Old records are evicted once capacity is reached.
type Store struct {
	mu    sync.RWMutex
	calls []Call
	next  int
	full  bool
}

// NewStore creates a store with the given capacity (DefaultCapacity if <= 0).
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		calls: make([]Call, capacity),
	}
}

// Add records a call, evicting the oldest when full.
func (s *Store) Add(call *Call) {
	if call == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls[s.next] = *call
	s.next++
	if s.next == len(s.calls) {
		s.next = 0
		s.full = true
	}
}

// Get retrieves a single call by ID, or nil.
func (s *Store) Get(id string) *Call {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.snapshotLocked() {
		if c.ID == id {
			out := c
			return &out
		}
	}
	return nil
}

// QueryFilter specifies filters for listing LLM calls.
type QueryFilter struct {
	RequestID string
	Stage     string
	PromptKey string
	Provider  string
	After     *time.Time
	Success   *bool
	Limit     int
}

// List retrieves calls matching the filter, oldest first.
func (s *Store) List(filter QueryFilter) []Call {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Call
	for _, c := range s.snapshotLocked() {
		if filter.RequestID != "" && c.RequestID != filter.RequestID {
			continue
		}
		if filter.Stage != "" && c.Stage != filter.Stage {
			continue
		}
		if filter.PromptKey != "" && c.PromptKey != filter.PromptKey {
			continue
		}
		if filter.Provider != "" && c.Provider != filter.Provider {
			continue
		}
		if filter.After != nil && !c.Timestamp.After(*filter.After) {
			continue
		}
		if filter.Success != nil && c.Success != *filter.Success {
			continue
		}
		out = append(out, c)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out
}

// Stats summarizes recorded calls.
type Stats struct {
	Total        int `json:"total"`
	Succeeded    int `json:"succeeded"`
	Failed       int `json:"failed"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Stats aggregates over the retained history.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	for _, c := range s.snapshotLocked() {
		st.Total++
		if c.Success {
			st.Succeeded++
		} else {
			st.Failed++
		}
		st.InputTokens += c.InputTokens
		st.OutputTokens += c.OutputTokens
	}
	return st
}

// snapshotLocked returns retained calls oldest first. Caller holds a lock.
func (s *Store) snapshotLocked() []Call {
	if !s.full {
		return s.calls[:s.next]
	}
	out := make([]Call, 0, len(s.calls))
	out = append(out, s.calls[s.next:]...)
	out = append(out, s.calls[:s.next]...)
	return out
}
