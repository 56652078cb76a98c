package ir

import "regexp"

// MetricDefinition is a generated metric sent along with the execution
// request. Identifier is a pure function of Expression, Title and Format.
type MetricDefinition struct {
	Identifier string `json:"identifier" yaml:"identifier" validate:"required"`
	Expression string `json:"expression" yaml:"expression" validate:"required"`
	Title      string `json:"title" yaml:"title"`
	Format     string `json:"format" yaml:"format"`
}

// referencePattern matches {identifier} placeholders in expressions.
// Object URIs are written in square brackets and never match.
var referencePattern = regexp.MustCompile(`\{([^{}\s]+)\}`)

// References returns the identifiers referenced by the expression, in
// order of first appearance, without duplicates.
func (d MetricDefinition) References() []string {
	matches := referencePattern.FindAllStringSubmatch(d.Expression, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		if !seen[m[1]] {
			seen[m[1]] = true
			refs = append(refs, m[1])
		}
	}
	return refs
}

// Placeholder renders a reference to identifier in expression syntax.
func Placeholder(identifier string) string {
	return "{" + identifier + "}"
}
