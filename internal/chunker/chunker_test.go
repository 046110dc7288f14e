package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/jackzampolin/distill/internal/tokens"
)

// sentences builds a document of n short sentences.
func sentences(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Sentence number %d carries a few words of text. ", i)
	}
	return strings.TrimSuffix(b.String(), " ")
}

func TestChunkSingle(t *testing.T) {
	text := sentences(5)

	chunks, err := Chunk(text, 1000, 50, tokens.Estimate)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	c := chunks[0]
	if c.Text != text {
		t.Error("single chunk does not carry the whole document")
	}
	if c.Start != 0 || c.End != len(text) || c.OverlapStart != 0 {
		t.Errorf("offsets = [%d, %d) overlap %d, want [0, %d) overlap 0", c.Start, c.End, c.OverlapStart, len(text))
	}
}

func TestChunkThresholdBoundary(t *testing.T) {
	text := sentences(30)
	total := tokens.Estimate(text)

	t.Run("exactly at budget", func(t *testing.T) {
		chunks, err := Chunk(text, total, 10, tokens.Estimate)
		if err != nil {
			t.Fatalf("Chunk() error = %v", err)
		}
		if len(chunks) != 1 {
			t.Errorf("got %d chunks, want 1 at exact budget", len(chunks))
		}
	})

	t.Run("one over budget", func(t *testing.T) {
		chunks, err := Chunk(text, total-1, 10, tokens.Estimate)
		if err != nil {
			t.Fatalf("Chunk() error = %v", err)
		}
		if len(chunks) < 2 {
			t.Errorf("got %d chunks, want >= 2 past the budget", len(chunks))
		}
	})
}

func TestChunkReconstruction(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		budget  int
		overlap int
	}{
		{"many sentences", sentences(200), 40, 10},
		{"no overlap", sentences(200), 40, 0},
		{"paragraphs", strings.Repeat("First paragraph with several words.\n\nSecond one follows here.\n\n", 40), 30, 5},
		{"oversized single word", strings.Repeat("x", 4000), 50, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Chunk(tt.text, tt.budget, tt.overlap, tokens.Estimate)
			if err != nil {
				t.Fatalf("Chunk() error = %v", err)
			}
			if got := Reconstruct(tt.text, chunks); got != tt.text {
				t.Errorf("Reconstruct() differs from source: %d bytes vs %d", len(got), len(tt.text))
			}
		})
	}
}

func TestChunkInvariants(t *testing.T) {
	text := sentences(300)
	const budget, overlap = 50, 10

	chunks, err := Chunk(text, budget, overlap, tokens.Estimate)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}

	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has Index %d", i, c.Index)
		}
		if c.TokenCount > budget {
			t.Errorf("chunk %d has %d tokens, budget %d", i, c.TokenCount, budget)
		}
		if c.Text != text[c.OverlapStart:c.End] {
			t.Errorf("chunk %d Text does not match its offsets", i)
		}
		if i == 0 {
			if c.OverlapStart != c.Start {
				t.Errorf("first chunk has overlap region [%d, %d)", c.OverlapStart, c.Start)
			}
			continue
		}
		if c.Start != chunks[i-1].End {
			t.Errorf("chunk %d starts at %d, previous ends at %d", i, c.Start, chunks[i-1].End)
		}
		if c.OverlapStart > c.Start {
			t.Errorf("chunk %d OverlapStart %d past Start %d", i, c.OverlapStart, c.Start)
		}
		// The overlap region lies inside the previous chunk's unique span.
		if c.OverlapStart < chunks[i-1].Start {
			t.Errorf("chunk %d overlap reaches back past the previous chunk", i)
		}
		if c.OverlapWithPrevious != chunks[i-1].OverlapWithNext {
			t.Errorf("chunk %d overlap accounting mismatch with previous", i)
		}
	}
}

func TestChunkArgumentValidation(t *testing.T) {
	text := sentences(10)

	if _, err := Chunk(text, 0, 0, tokens.Estimate); err == nil {
		t.Error("Chunk() with zero budget did not fail")
	}
	if _, err := Chunk(text, 10, -1, tokens.Estimate); err == nil {
		t.Error("Chunk() with negative overlap did not fail")
	}
	if _, err := Chunk(text, 10, 10, tokens.Estimate); err == nil {
		t.Error("Chunk() with overlap >= budget did not fail")
	}
}
