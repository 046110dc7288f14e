package schema

import (
	"fmt"
	"strings"
)

// ParseError indicates the schema document itself is malformed.
// It is fatal for the request: nothing useful can be extracted without a
// parseable schema.
type ParseError struct {
	Msg string
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("schema parse: %s: %v", e.Msg, e.Err)
	}
	return "schema parse: " + e.Msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// RefCycleError indicates a $ref chain that loops back onto itself.
// Extraction cannot proceed without a decision on how to bound the recursion,
// so the cycle is surfaced rather than broken at an arbitrary depth.
type RefCycleError struct {
	Cycle []string // reference paths in resolution order, first == last
}

func (e *RefCycleError) Error() string {
	return "circular schema reference: " + strings.Join(e.Cycle, " -> ")
}

// DependencyCycleError indicates the field dependency graph used for schema
// chunking contains a cycle. Silently breaking it would produce a chunk plan
// with forward references, so it is fatal.
type DependencyCycleError struct {
	Cycle []string // field paths forming the cycle, first == last
}

func (e *DependencyCycleError) Error() string {
	return "circular field dependency: " + strings.Join(e.Cycle, " -> ")
}
