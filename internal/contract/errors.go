package contract

import "fmt"

// ExtractionError is fatal: the instrument source cannot be parsed at all
// or the entry-point convention (get_spec / SPEC) is entirely absent.
type ExtractionError struct {
	Path   string
	Reason string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %s", e.Path, e.Reason)
}

// DiffError is fatal: one of the contracts handed to the differ violates
// the schema. Field names the offending field, Side is "baseline" or
// "current". The content of a comparison never raises a DiffError.
type DiffError struct {
	Side   string
	Field  string
	Reason string
}

func (e *DiffError) Error() string {
	return fmt.Sprintf("malformed %s contract at %s: %s", e.Side, e.Field, e.Reason)
}
