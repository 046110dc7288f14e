// Package chunker splits long documents into overlapping windows sized to a
// token budget.
//
// Chunks are defined by byte offsets into the source text. Each chunk owns a
// unique span [Start, End); chunks after the first additionally carry a
// leading overlap region [OverlapStart, Start) repeated from the previous
// chunk so extraction calls share context across the boundary. Concatenating
// the unique spans in order reconstructs the document byte-for-byte.
package chunker

import (
	"fmt"

	"github.com/jackzampolin/distill/internal/tokens"
)

// DocumentChunk is one token-bounded window of the source text.
type DocumentChunk struct {
	Index int `json:"index"`

	// Unique span owned by this chunk.
	Start int `json:"start"`
	End   int `json:"end"`

	// OverlapStart <= Start; the region [OverlapStart, Start) repeats the
	// tail of the previous chunk. Equal to Start for the first chunk.
	OverlapStart int `json:"overlap_start"`

	// Text is the full window: source[OverlapStart:End].
	Text string `json:"text"`

	// Token counts of the shared regions, for merge-stage deduplication.
	OverlapWithPrevious int `json:"overlap_with_previous"`
	OverlapWithNext     int `json:"overlap_with_next"`

	// TokenCount is the token count of Text (overlap included).
	TokenCount int `json:"token_count"`
}

// Chunk splits text into DocumentChunks of at most maxTokens tokens each,
// overlap included. Splits happen at sentence or paragraph boundaries, never
// mid-word. A document that fits the budget returns a single chunk.
func Chunk(text string, maxTokens, overlapTokens int, count tokens.Counter) ([]DocumentChunk, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("chunker: max tokens must be positive, got %d", maxTokens)
	}
	if overlapTokens < 0 {
		return nil, fmt.Errorf("chunker: overlap tokens must be non-negative, got %d", overlapTokens)
	}
	if overlapTokens >= maxTokens {
		return nil, fmt.Errorf("chunker: overlap (%d) must be smaller than the chunk budget (%d)", overlapTokens, maxTokens)
	}

	total := count(text)
	if total <= maxTokens {
		return []DocumentChunk{{
			Index:        0,
			Start:        0,
			End:          len(text),
			OverlapStart: 0,
			Text:         text,
			TokenCount:   total,
		}}, nil
	}

	segs := segment(text)
	segs = splitOversized(text, segs, maxTokens-overlapTokens, count)

	var chunks []DocumentChunk
	overlapStart := 0
	start := 0
	end := 0

	flush := func() {
		chunks = append(chunks, DocumentChunk{
			Index:        len(chunks),
			Start:        start,
			End:          end,
			OverlapStart: overlapStart,
			Text:         text[overlapStart:end],
			TokenCount:   count(text[overlapStart:end]),
		})
		overlapStart = overlapStartFor(text, segs, start, end, overlapTokens, count)
		start = end
	}

	for _, seg := range segs {
		if end > start && count(text[overlapStart:seg.end]) > maxTokens {
			flush()
			// An oversized overlap region can leave no room for the next
			// segment; drop the overlap rather than exceed the budget.
			if count(text[overlapStart:seg.end]) > maxTokens {
				overlapStart = start
			}
		}
		end = seg.end
	}
	if end > start {
		flush()
	}

	for i := range chunks {
		if i > 0 {
			prev := count(text[chunks[i].OverlapStart:chunks[i].Start])
			chunks[i].OverlapWithPrevious = prev
			chunks[i-1].OverlapWithNext = prev
		}
	}
	return chunks, nil
}

// Reconstruct joins the unique spans of an ordered chunk sequence.
// For any valid chunking this returns the original document exactly.
func Reconstruct(source string, chunks []DocumentChunk) string {
	out := make([]byte, 0, len(source))
	for _, c := range chunks {
		out = append(out, source[c.Start:c.End]...)
	}
	return string(out)
}

// overlapStartFor finds the latest segment boundary inside the previous
// chunk's unique span such that the tail from there to end is at least
// overlapTokens tokens. Returns end when no overlap is requested.
func overlapStartFor(text string, segs []span, start, end, overlapTokens int, count tokens.Counter) int {
	if overlapTokens == 0 {
		return end
	}
	best := end
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i].start >= end {
			continue
		}
		if segs[i].start < start {
			break
		}
		best = segs[i].start
		if count(text[best:end]) >= overlapTokens {
			return best
		}
	}
	if best == end {
		// Previous chunk was a single segment; overlap the whole of it.
		return start
	}
	return best
}
