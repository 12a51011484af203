package scenario

import "fmt"

// ScenarioError is returned for any scenario that cannot be loaded:
// unreadable source, schema violations, unresolvable transition targets,
// inverted regions, or malformed screenshot payloads.
//
// Loading is all-or-nothing: when a ScenarioError is returned, no partial
// graph is ever produced.
type ScenarioError struct {
	// Path is the scenario source path, empty for in-memory sources.
	Path string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *ScenarioError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("scenario %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("scenario: %v", e.Err)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *ScenarioError) Unwrap() error {
	return e.Err
}

// scenarioErrorf wraps a formatted cause in a ScenarioError.
func scenarioErrorf(path, format string, args ...any) *ScenarioError {
	return &ScenarioError{Path: path, Err: fmt.Errorf(format, args...)}
}
