package engine

import "fmt"

// MalformedOutputError indicates a model response that could not be parsed
// into usable JSON even after a corrective retry.
type MalformedOutputError struct {
	Stage string
	Msg   string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed model output in %s: %s", e.Stage, e.Msg)
}
