package tokens

import "testing"

func TestEstimate(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"single word", "hello", 1},
		{"three words", "one two three", 3}, // 3 * 1.33 = 3.99 -> 3
		{"hundred words", words(100), 133},
		{"whitespace only", "   \n\t  ", 1}, // non-empty input floors at 1
		{"collapsed spaces", "a    b\n\nc", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Estimate(tt.text); got != tt.want {
				t.Errorf("Estimate(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestEstimateMonotonicFloor(t *testing.T) {
	// Non-empty input never estimates to zero.
	if got := Estimate("x"); got < 1 {
		t.Errorf("Estimate(%q) = %d, want >= 1", "x", got)
	}
}

func TestEstimateBytes(t *testing.T) {
	if got := EstimateBytes(nil); got != 0 {
		t.Errorf("EstimateBytes(nil) = %d, want 0", got)
	}
	if got := EstimateBytes([]byte("ab")); got != 1 {
		t.Errorf("EstimateBytes(2 bytes) = %d, want 1", got)
	}
	if got := EstimateBytes(make([]byte, 400)); got != 100 {
		t.Errorf("EstimateBytes(400 bytes) = %d, want 100", got)
	}
}

func words(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			out += " "
		}
		out += "word"
	}
	return out
}
