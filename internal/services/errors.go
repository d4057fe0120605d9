package services

import (
	"fmt"
	"sort"
	"strings"
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "Validation error: " + strings.Join(parts, "; ")
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// GenerationError wraps a failure of the generative backend. Fragments is the
// number of fragments already forwarded to the client when it failed.
type GenerationError struct {
	Err       error
	Fragments int
}

func (e *GenerationError) Error() string {
	if e.Fragments == 0 {
		return fmt.Sprintf("generation failed: %v", e.Err)
	}
	return fmt.Sprintf("generation failed after %d fragments: %v", e.Fragments, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
