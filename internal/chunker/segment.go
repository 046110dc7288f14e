package chunker

import (
	"unicode"

	"github.com/jackzampolin/distill/internal/tokens"
)

// span is a half-open byte range into the source text.
type span struct {
	start int
	end   int
}

// segment splits text into sentence-sized spans. Each span includes its
// trailing whitespace so the spans tile the document exactly: span N ends
// where span N+1 begins, the first starts at 0 and the last ends at len(text).
//
// A sentence ends at '.', '!' or '?' followed by whitespace, or at a
// paragraph break (double newline).
func segment(text string) []span {
	var out []span
	start := 0

	i := 0
	for i < len(text) {
		c := text[i]

		isSentenceEnd := (c == '.' || c == '!' || c == '?') &&
			i+1 < len(text) && isSpace(text[i+1])
		isParagraphEnd := c == '\n' && i+1 < len(text) && text[i+1] == '\n'

		if isSentenceEnd || isParagraphEnd {
			// Consume the terminator and any following whitespace so the
			// next span starts on content.
			j := i + 1
			for j < len(text) && isSpace(text[j]) {
				j++
			}
			out = append(out, span{start: start, end: j})
			start = j
			i = j
			continue
		}
		i++
	}

	if start < len(text) {
		out = append(out, span{start: start, end: len(text)})
	}
	if len(out) == 0 {
		out = append(out, span{start: 0, end: len(text)})
	}
	return out
}

// splitOversized breaks any span whose token count exceeds budget into
// word-boundary sub-spans. Words are never split.
func splitOversized(text string, segs []span, budget int, count tokens.Counter) []span {
	out := make([]span, 0, len(segs))
	for _, s := range segs {
		if count(text[s.start:s.end]) <= budget {
			out = append(out, s)
			continue
		}
		out = append(out, splitWords(text, s, budget, count)...)
	}
	return out
}

// splitWords splits a span at whitespace runs, packing words greedily up to
// the budget. A single word larger than the budget becomes its own span.
func splitWords(text string, s span, budget int, count tokens.Counter) []span {
	var words []span
	i := s.start
	for i < s.end {
		// A word span runs through any trailing whitespace.
		j := i
		for j < s.end && !isSpace(text[j]) {
			j++
		}
		for j < s.end && isSpace(text[j]) {
			j++
		}
		words = append(words, span{start: i, end: j})
		i = j
	}

	var out []span
	start := s.start
	end := s.start
	for _, w := range words {
		if end > start && count(text[start:w.end]) > budget {
			out = append(out, span{start: start, end: end})
			start = end
		}
		end = w.end
	}
	if end > start {
		out = append(out, span{start: start, end: end})
	}
	return out
}

func isSpace(b byte) bool {
	return unicode.IsSpace(rune(b))
}
