package compiler

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/metricc/internal/ir"
)

// ErrorCode categorizes compilation errors.
type ErrorCode string

const (
	// ErrCodeInvariant indicates a measure shape no strategy handles.
	// This is a programming error; compilation aborts.
	ErrCodeInvariant ErrorCode = "INVARIANT_VIOLATION"

	// ErrCodeMissingAttribute indicates the attributes map lacks an entry
	// an expression needs (grouping, PoP or filter attribute).
	ErrCodeMissingAttribute ErrorCode = "MISSING_ATTRIBUTE"

	// ErrCodeInvalidObjectURI indicates an object URI without project and
	// object segments, so no identifier can be derived.
	ErrCodeInvalidObjectURI ErrorCode = "INVALID_OBJECT_URI"

	// ErrCodeInvalidMeasure indicates a measure item that cannot be shaped
	// (unknown or chained PoP original).
	ErrCodeInvalidMeasure ErrorCode = "INVALID_MEASURE"

	// ErrCodeInvalidReference indicates a total or sort item naming a local
	// identifier that is not in the visualization.
	ErrCodeInvalidReference ErrorCode = "INVALID_REFERENCE"

	// ErrCodeInvalidInput indicates an input that failed structural
	// validation before compilation started.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrCodeUnsatisfiableDependency indicates definitions that can never
	// be ordered (cycles or dangling references).
	ErrCodeUnsatisfiableDependency ErrorCode = "UNSATISFIABLE_DEPENDENCY"
)

// CompileError is an error raised while compiling one measure.
type CompileError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Measure is the local identifier of the affected measure, if any.
	Measure string

	// Details contains additional context.
	Details map[string]string
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Measure != "" {
		return fmt.Sprintf("%s: %s (measure=%s)", e.Code, e.Message, e.Measure)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newInvariantError(format string, args ...any) *CompileError {
	return &CompileError{Code: ErrCodeInvariant, Message: fmt.Sprintf(format, args...)}
}

func newMissingAttributeError(role, uri string) *CompileError {
	msg := fmt.Sprintf("no attribute found for %s %q", role, uri)
	if uri == "" {
		msg = fmt.Sprintf("%s attribute required but none in scope", role)
	}
	return &CompileError{
		Code:    ErrCodeMissingAttribute,
		Message: msg,
		Details: map[string]string{"role": role, "uri": uri},
	}
}

// UnresolvedDefinition is a definition the resolver could not place.
type UnresolvedDefinition struct {
	Identifier string   `json:"identifier"`
	Missing    []string `json:"missing"` // referenced identifiers never resolved
}

// Cycle is a reference cycle between definitions.
type Cycle struct {
	Path []string `json:"path"` // ["a", "b", "a"]
}

// DependencyError reports definitions whose references can never be
// satisfied. No definition is ever dropped silently.
type DependencyError struct {
	Unresolved []UnresolvedDefinition
	Cycles     []Cycle
}

// Error implements the error interface.
func (e *DependencyError) Error() string {
	ids := make([]string, len(e.Unresolved))
	for i, u := range e.Unresolved {
		ids[i] = u.Identifier
	}
	msg := fmt.Sprintf("%s: cannot order %d definition(s): %s",
		ErrCodeUnsatisfiableDependency, len(ids), strings.Join(ids, ", "))
	if len(e.Cycles) > 0 {
		paths := make([]string, len(e.Cycles))
		for i, c := range e.Cycles {
			paths[i] = strings.Join(c.Path, " → ")
		}
		msg += "; cycles: " + strings.Join(paths, "; ")
	}
	return msg
}

// Dangling returns referenced identifiers that are neither defined nor
// known, sorted.
func (e *DependencyError) Dangling() []string {
	defined := make(map[string]bool, len(e.Unresolved))
	for _, u := range e.Unresolved {
		defined[u.Identifier] = true
	}
	seen := make(map[string]bool)
	var out []string
	for _, u := range e.Unresolved {
		for _, m := range u.Missing {
			if !defined[m] && !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	sort.Strings(out)
	return out
}

// IsInvariantError returns true if the error is an invariant violation.
// Uses errors.As to handle wrapped errors.
func IsInvariantError(err error) bool {
	return CodeOf(err) == ErrCodeInvariant
}

// IsMissingAttributeError returns true if the error is a missing attribute
// resolution. Uses errors.As to handle wrapped errors.
func IsMissingAttributeError(err error) bool {
	return CodeOf(err) == ErrCodeMissingAttribute
}

// IsDependencyError returns true if the error is an unsatisfiable
// dependency. Uses errors.As to handle wrapped errors.
func IsDependencyError(err error) bool {
	var de *DependencyError
	return errors.As(err, &de)
}

// CodeOf returns the error code of err, or "" for foreign errors.
func CodeOf(err error) ErrorCode {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce.Code
	}
	var de *DependencyError
	if errors.As(err, &de) {
		return ErrCodeUnsatisfiableDependency
	}
	var ve *ir.ValidationError
	if errors.As(err, &ve) {
		return ErrCodeInvalidInput
	}
	return ""
}
