// Package scorer computes post-extraction confidence: per-field scores from
// schema conformance, an overall score dominated by required-field coverage,
// and a review queue of fields needing human verification.
package scorer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"

	"github.com/jackzampolin/distill/internal/fieldpath"
	"github.com/jackzampolin/distill/internal/schema"
	"github.com/jackzampolin/distill/internal/types"
)

// Config holds scoring weights. The four component weights combine into the
// overall score and should sum to 1.
type Config struct {
	// ConfidenceThreshold is the review-queue cutoff in [0,1].
	ConfidenceThreshold float64

	FieldWeight        float64
	CompletenessWeight float64
	ConsistencyWeight  float64
	SchemaValidWeight  float64

	// RequiredFactor weights required fields in the per-field mean so missing
	// required fields dominate the penalty over missing optional ones.
	RequiredFactor float64
	// OptionalMissing is the score assigned to absent optional fields.
	OptionalMissing float64
}

// DefaultConfig returns the standard scoring weights.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.7,
		FieldWeight:         0.5,
		CompletenessWeight:  0.2,
		ConsistencyWeight:   0.2,
		SchemaValidWeight:   0.1,
		RequiredFactor:      2.0,
		OptionalMissing:     0.5,
	}
}

// Scorer scores extraction results against their schema.
type Scorer struct {
	cfg Config
}

// New creates a scorer. Zero weights are replaced with defaults.
func New(cfg Config) *Scorer {
	def := DefaultConfig()
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if cfg.FieldWeight <= 0 && cfg.CompletenessWeight <= 0 && cfg.ConsistencyWeight <= 0 && cfg.SchemaValidWeight <= 0 {
		cfg.FieldWeight = def.FieldWeight
		cfg.CompletenessWeight = def.CompletenessWeight
		cfg.ConsistencyWeight = def.ConsistencyWeight
		cfg.SchemaValidWeight = def.SchemaValidWeight
	}
	if cfg.RequiredFactor <= 0 {
		cfg.RequiredFactor = def.RequiredFactor
	}
	if cfg.OptionalMissing <= 0 {
		cfg.OptionalMissing = def.OptionalMissing
	}
	return &Scorer{cfg: cfg}
}

// Score computes confidence for every schema field and the overall score,
// returning a new result. Scoring reads only the extracted data and the
// schema, so re-scoring an already-scored result yields identical values.
func (sc *Scorer) Score(res *types.ExtractionResult, s *schema.Schema) *types.ExtractionResult {
	out := *res
	out.FieldConfidence = make(map[string]float64)
	out.ReviewQueue = nil

	leaves := s.Leaves()
	present := 0
	conformanceSum := 0.0

	for _, path := range leaves {
		node, _ := s.NodeAt(path)
		value, ok := fieldpath.Get(res.Data, path)

		var score float64
		switch {
		case !ok || value == nil:
			if node.Required {
				score = 0
			} else {
				score = sc.cfg.OptionalMissing
			}
		default:
			score = sc.FieldScore(value, node)
			present++
			conformanceSum += score
		}
		out.FieldConfidence[path] = score
	}

	completion := 0.0
	if len(leaves) > 0 {
		completion = float64(present) / float64(len(leaves))
	}
	consistency := 1.0
	if present > 0 {
		consistency = conformanceSum / float64(present)
	}

	schemaValid := 1.0
	if err := sc.validateDocument(res.Data, s); err != nil {
		schemaValid = 0.0
		out.Errors = append(out.Errors, types.ChunkError{
			Stage:         "validation",
			SchemaChunk:   -1,
			DocumentChunk: -1,
			Pass:          -1,
			Message:       err.Error(),
		})
	}

	out.OverallConfidence = sc.cfg.FieldWeight*sc.weightedFieldMean(out.FieldConfidence, s) +
		sc.cfg.CompletenessWeight*completion +
		sc.cfg.ConsistencyWeight*consistency +
		sc.cfg.SchemaValidWeight*schemaValid

	out.ReviewQueue = sc.buildReviewQueue(out.FieldConfidence, s)
	return &out
}

// weightedFieldMean averages per-field confidences with required fields
// counted RequiredFactor times.
func (sc *Scorer) weightedFieldMean(conf map[string]float64, s *schema.Schema) float64 {
	var sum, weight float64
	for path, score := range conf {
		w := 1.0
		if n, ok := s.NodeAt(path); ok && n.Required {
			w = sc.cfg.RequiredFactor
		}
		sum += score * w
		weight += w
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}

// buildReviewQueue lists fields below the threshold, worst first, ties broken
// by field path. Missing required fields are always queued.
func (sc *Scorer) buildReviewQueue(conf map[string]float64, s *schema.Schema) []types.ReviewItem {
	var items []types.ReviewItem
	for path, score := range conf {
		if score >= sc.cfg.ConfidenceThreshold {
			continue
		}
		node, _ := s.NodeAt(path)
		items = append(items, types.ReviewItem{
			Field:      path,
			Confidence: score,
			Reason:     reviewReason(score, node),
			Priority:   reviewPriority(score, node),
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Confidence != items[j].Confidence {
			return items[i].Confidence < items[j].Confidence
		}
		return items[i].Field < items[j].Field
	})
	return items
}

func reviewReason(score float64, node *schema.Node) string {
	switch {
	case score == 0 && node != nil && node.Required:
		return "required field missing"
	case score <= 0.5:
		return "value missing or does not conform to schema constraints"
	default:
		return "confidence below threshold"
	}
}

func reviewPriority(score float64, node *schema.Node) string {
	switch {
	case node != nil && node.Required:
		return "high"
	case score < 0.3:
		return "high"
	case score < 0.6:
		return "medium"
	default:
		return "low"
	}
}

// FieldScore rates one extracted value against its schema node: 1.0 for full
// conformance, multiplied down for each violated constraint.
func (sc *Scorer) FieldScore(value any, node *schema.Node) float64 {
	if value == nil {
		if node.Required {
			return 0
		}
		return sc.cfg.OptionalMissing
	}

	var frag map[string]any
	if err := json.Unmarshal(node.Constraints, &frag); err != nil {
		return 1.0
	}

	score := 1.0
	if !typeMatches(value, node.Type) {
		score *= 0.3
	}
	if enum, ok := frag["enum"].([]any); ok && !enumContains(enum, value) {
		score *= 0.2
	}
	if s, ok := value.(string); ok {
		if s == "" {
			score *= 0.5
		}
		if pat, ok := frag["pattern"].(string); ok {
			if re, err := regexp.Compile(pat); err == nil && !re.MatchString(s) {
				score *= 0.5
			}
		}
		if !lengthInBounds(s, frag) {
			score *= 0.7
		}
	}
	if n, ok := asNumber(value); ok && !numberInBounds(n, frag) {
		score *= 0.6
	}
	return score
}

// validateDocument validates the merged document against the full schema.
func (sc *Scorer) validateDocument(data map[string]any, s *schema.Schema) error {
	compiled, err := s.Compile()
	if err != nil {
		return fmt.Errorf("schema did not compile for validation: %w", err)
	}
	// jsonschema validates decoded JSON values; extraction data already is one.
	if err := compiled.Validate(map[string]any(data)); err != nil {
		return fmt.Errorf("document does not conform to schema: %w", err)
	}
	return nil
}

func typeMatches(value any, declared string) bool {
	switch declared {
	case "":
		return true
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := asNumber(value)
		return ok
	case "integer":
		n, ok := asNumber(value)
		return ok && n == float64(int64(n))
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}

func enumContains(enum []any, value any) bool {
	for _, e := range enum {
		if valuesEqual(e, value) {
			return true
		}
	}
	return false
}

func valuesEqual(a, b any) bool {
	if an, ok := asNumber(a); ok {
		if bn, ok := asNumber(b); ok {
			return an == bn
		}
		return false
	}
	return a == b
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func numberInBounds(n float64, frag map[string]any) bool {
	if min, ok := asNumber(frag["minimum"]); ok && n < min {
		return false
	}
	if max, ok := asNumber(frag["maximum"]); ok && n > max {
		return false
	}
	return true
}

func lengthInBounds(s string, frag map[string]any) bool {
	runes := len([]rune(s))
	if min, ok := asNumber(frag["minLength"]); ok && float64(runes) < min {
		return false
	}
	if max, ok := asNumber(frag["maxLength"]); ok && float64(runes) > max {
		return false
	}
	return true
}
