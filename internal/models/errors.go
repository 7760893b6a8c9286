package models

import (
	"fmt"
	"strings"
)

// ValidationError reports bad caller input. It carries a details list so the
// HTTP layer can return all problems at once.
type ValidationError struct {
	Details []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Details, "; "))
}

// ExternalModelError wraps a failure from the embedding or generation model.
// The underlying message is surfaced to the caller; an answer is never
// fabricated on generation failure.
type ExternalModelError struct {
	Op  string // "embed" or "generate"
	Err error
}

func (e *ExternalModelError) Error() string {
	return fmt.Sprintf("external model %s failed: %v", e.Op, e.Err)
}

func (e *ExternalModelError) Unwrap() error { return e.Err }
