package transform

import (
	"fmt"
	"sort"
	"strings"
)

// InvalidInputError is returned when a submission fails presence or shape
// validation. Fields maps a JSON path to what is wrong with it.
type InvalidInputError struct {
	Fields map[string]string
}

func newInvalidInput(fields map[string]string) *InvalidInputError {
	return &InvalidInputError{Fields: fields}
}

func (e *InvalidInputError) Error() string {
	paths := make([]string, 0, len(e.Fields))
	for p := range e.Fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	parts := make([]string, len(paths))
	for i, p := range paths {
		parts[i] = p + ": " + e.Fields[p]
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// MappingError is returned when a validated value cannot be represented
// under the fixed mapping rules. It aborts the whole transformation.
type MappingError struct {
	Field  string
	Value  string
	Reason string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("cannot map %s=%q: %s", e.Field, e.Value, e.Reason)
}
