package scorer

import (
	"math"
	"reflect"
	"testing"

	"github.com/jackzampolin/distill/internal/schema"
	"github.com/jackzampolin/distill/internal/types"
)

const contactSchema = `{
	"type": "object",
	"required": ["name", "email"],
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"email": {"type": "string", "pattern": "^[^@]+@[^@]+$"},
		"age": {"type": "integer", "minimum": 0, "maximum": 150},
		"status": {"type": "string", "enum": ["active", "inactive"]}
	}
}`

func mustParse(t *testing.T, raw string) *schema.Schema {
	t.Helper()
	s, err := schema.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return s
}

func result(data map[string]any) *types.ExtractionResult {
	return &types.ExtractionResult{
		Data:  data,
		State: types.StateDone,
	}
}

func TestScoreFullExtraction(t *testing.T) {
	sc := New(DefaultConfig())
	s := mustParse(t, contactSchema)

	res := sc.Score(result(map[string]any{
		"name":   "Ada Lovelace",
		"email":  "ada@example.com",
		"age":    36.0,
		"status": "active",
	}), s)

	if res.OverallConfidence < 0.99 {
		t.Errorf("OverallConfidence = %v, want ~1.0 for a perfect extraction", res.OverallConfidence)
	}
	if len(res.ReviewQueue) != 0 {
		t.Errorf("ReviewQueue = %v, want empty", res.ReviewQueue)
	}
	for path, score := range res.FieldConfidence {
		if score != 1.0 {
			t.Errorf("FieldConfidence[%s] = %v, want 1.0", path, score)
		}
	}
}

func TestScoreMissingRequired(t *testing.T) {
	sc := New(DefaultConfig())
	s := mustParse(t, contactSchema)

	res := sc.Score(result(map[string]any{
		"name": "Ada",
	}), s)

	if got := res.FieldConfidence["email"]; got != 0 {
		t.Errorf("missing required email scored %v, want 0", got)
	}
	if got := res.FieldConfidence["age"]; got != 0.5 {
		t.Errorf("missing optional age scored %v, want 0.5", got)
	}

	// A missing required field is always queued for review at high priority.
	var item *types.ReviewItem
	for i := range res.ReviewQueue {
		if res.ReviewQueue[i].Field == "email" {
			item = &res.ReviewQueue[i]
		}
	}
	if item == nil {
		t.Fatal("missing required email not in review queue")
	}
	if item.Priority != "high" {
		t.Errorf("email priority = %s, want high", item.Priority)
	}
}

func TestFieldScoreConformance(t *testing.T) {
	sc := New(DefaultConfig())
	s := mustParse(t, contactSchema)

	node := func(path string) *schema.Node {
		n, ok := s.NodeAt(path)
		if !ok {
			t.Fatalf("NodeAt(%s) missing", path)
		}
		return n
	}

	tests := []struct {
		name  string
		path  string
		value any
		want  float64
	}{
		{"conforming string", "name", "Ada", 1.0},
		{"type mismatch", "name", 42.0, 0.3},
		{"empty string", "name", "", 0.5 * 0.7}, // empty and under minLength
		{"pattern miss", "email", "not-an-email", 0.5},
		{"enum miss", "status", "archived", 0.2},
		{"range miss", "age", 200.0, 0.6},
		{"in range", "age", 36.0, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sc.FieldScore(tt.value, node(tt.path))
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("FieldScore(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestScoreIdempotent(t *testing.T) {
	sc := New(DefaultConfig())
	s := mustParse(t, contactSchema)

	first := sc.Score(result(map[string]any{
		"name": "Ada",
		"age":  36.0,
	}), s)
	second := sc.Score(first, s)

	if first.OverallConfidence != second.OverallConfidence {
		t.Errorf("re-scoring changed overall: %v vs %v", first.OverallConfidence, second.OverallConfidence)
	}
	if !reflect.DeepEqual(first.FieldConfidence, second.FieldConfidence) {
		t.Errorf("re-scoring changed field confidence: %v vs %v", first.FieldConfidence, second.FieldConfidence)
	}
	if !reflect.DeepEqual(first.ReviewQueue, second.ReviewQueue) {
		t.Errorf("re-scoring changed review queue: %v vs %v", first.ReviewQueue, second.ReviewQueue)
	}
}

func TestReviewQueueOrdering(t *testing.T) {
	sc := New(DefaultConfig())
	s := mustParse(t, contactSchema)

	// Everything missing: required fields at 0, optional at 0.5.
	res := sc.Score(result(map[string]any{}), s)

	if len(res.ReviewQueue) != 4 {
		t.Fatalf("ReviewQueue has %d items, want 4", len(res.ReviewQueue))
	}
	for i := 1; i < len(res.ReviewQueue); i++ {
		prev, cur := res.ReviewQueue[i-1], res.ReviewQueue[i]
		if prev.Confidence > cur.Confidence {
			t.Errorf("queue not ascending: %v before %v", prev, cur)
		}
		if prev.Confidence == cur.Confidence && prev.Field > cur.Field {
			t.Errorf("tie not broken by field path: %q before %q", prev.Field, cur.Field)
		}
	}
	// Required fields come first at confidence 0.
	if res.ReviewQueue[0].Field != "email" || res.ReviewQueue[1].Field != "name" {
		t.Errorf("queue head = %s, %s; want email, name", res.ReviewQueue[0].Field, res.ReviewQueue[1].Field)
	}
}

func TestScoreSchemaValidation(t *testing.T) {
	sc := New(DefaultConfig())
	s := mustParse(t, contactSchema)

	// Data violating the schema zeroes the validation component and records
	// a validation error.
	res := sc.Score(result(map[string]any{
		"name":  "Ada",
		"email": "ada@example.com",
		"age":   "not a number",
	}), s)

	found := false
	for _, e := range res.Errors {
		if e.Stage == "validation" {
			found = true
		}
	}
	if !found {
		t.Error("no validation error recorded for non-conforming document")
	}

	valid := sc.Score(result(map[string]any{
		"name":  "Ada",
		"email": "ada@example.com",
	}), s)
	if valid.OverallConfidence <= res.OverallConfidence {
		t.Errorf("valid doc scored %v, invalid %v; want valid higher",
			valid.OverallConfidence, res.OverallConfidence)
	}
}
