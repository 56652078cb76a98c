package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/metricc/internal/execution"
	"github.com/roach88/metricc/internal/ir"
	"github.com/roach88/metricc/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Columns  []string // Request columns for context, if a request exists
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Columns) > 0 {
		fmt.Fprintf(&buf, "\nColumns:\n")
		for i, c := range e.Columns {
			fmt.Fprintf(&buf, "  [%d] %s\n", i, c)
		}
	}

	return buf.String()
}

// assertColumns checks the columns match exactly, in order.
func assertColumns(req *execution.Request, assertion Assertion) error {
	if slices.Equal(req.Columns, assertion.Columns) {
		return nil
	}
	return &AssertionError{
		Type:     AssertColumns,
		Expected: fmt.Sprintf("%v", assertion.Columns),
		Actual:   fmt.Sprintf("%v", req.Columns),
		Columns:  req.Columns,
	}
}

// assertDefinition checks that a definition exists. Expression, title and
// format are compared only when the assertion sets them.
func assertDefinition(req *execution.Request, assertion Assertion) error {
	idx := slices.IndexFunc(req.Definitions, func(d ir.MetricDefinition) bool {
		return d.Identifier == assertion.Identifier
	})
	if idx < 0 {
		return &AssertionError{
			Type:     AssertDefinition,
			Expected: fmt.Sprintf("definition %s", assertion.Identifier),
			Actual:   fmt.Sprintf("not found among %d definition(s)", len(req.Definitions)),
			Columns:  req.Columns,
		}
	}
	d := req.Definitions[idx]

	check := func(field, expected, actual string) error {
		if expected == "" || expected == actual {
			return nil
		}
		return &AssertionError{
			Type:     AssertDefinition,
			Expected: fmt.Sprintf("%s %s = %q", assertion.Identifier, field, expected),
			Actual:   fmt.Sprintf("%s %s = %q", assertion.Identifier, field, actual),
			Columns:  req.Columns,
		}
	}
	if err := check("expression", assertion.Expression, d.Expression); err != nil {
		return err
	}
	if err := check("title", assertion.Title, d.Title); err != nil {
		return err
	}
	return check("format", assertion.Format, d.Format)
}

// assertDefinitionOrder checks identifiers appear in the specified order.
// They need not be consecutive.
func assertDefinitionOrder(req *execution.Request, assertion Assertion) error {
	positions := make(map[string]int, len(req.Definitions))
	for i, d := range req.Definitions {
		positions[d.Identifier] = i
	}

	for _, id := range assertion.Identifiers {
		if _, ok := positions[id]; !ok {
			return &AssertionError{
				Type:     AssertDefinitionOrder,
				Expected: fmt.Sprintf("all definitions present: %v", assertion.Identifiers),
				Actual:   fmt.Sprintf("missing definition: %s", id),
				Columns:  req.Columns,
			}
		}
	}

	for i := 1; i < len(assertion.Identifiers); i++ {
		prev := assertion.Identifiers[i-1]
		curr := assertion.Identifiers[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertDefinitionOrder,
				Expected: fmt.Sprintf("definitions in order: %v", assertion.Identifiers),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Columns: req.Columns,
			}
		}
	}
	return nil
}

// assertMapping checks that a mapping ties Element to MeasureIndex.
func assertMapping(req *execution.Request, assertion Assertion) error {
	for _, m := range req.MetricMappings {
		if m.Element != assertion.Element || m.MeasureIndex != *assertion.MeasureIndex {
			continue
		}
		if assertion.IsPoP != nil && m.IsPoP != *assertion.IsPoP {
			return &AssertionError{
				Type:     AssertMapping,
				Expected: fmt.Sprintf("%s[%d] isPoP=%t", m.Element, m.MeasureIndex, *assertion.IsPoP),
				Actual:   fmt.Sprintf("%s[%d] isPoP=%t", m.Element, m.MeasureIndex, m.IsPoP),
				Columns:  req.Columns,
			}
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertMapping,
		Expected: fmt.Sprintf("mapping %s -> measure %d", assertion.Element, *assertion.MeasureIndex),
		Actual:   fmt.Sprintf("not found among %d mapping(s)", len(req.MetricMappings)),
		Columns:  req.Columns,
	}
}

// assertRegistry checks how many definitions the registry linked to the
// compilation.
func assertRegistry(ctx context.Context, st *store.Store, compilationID string, assertion Assertion) error {
	defs, err := st.ReadCompilationDefinitions(ctx, compilationID)
	if err != nil {
		return &AssertionError{
			Type:     AssertRegistry,
			Expected: fmt.Sprintf("compilation %s in registry", compilationID),
			Actual:   fmt.Sprintf("read error: %v", err),
		}
	}
	if len(defs) != *assertion.Count {
		return &AssertionError{
			Type:     AssertRegistry,
			Expected: fmt.Sprintf("%d stored definition(s)", *assertion.Count),
			Actual:   fmt.Sprintf("%d stored definition(s)", len(defs)),
		}
	}
	return nil
}

// AssertionContext provides registry access for registry assertions.
type AssertionContext struct {
	Store         *store.Store
	Ctx           context.Context
	CompilationID string
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
//
// An error assertion passes only if assembly failed with its code; every
// other assertion fails if assembly failed.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch {
		case assertion.Type == AssertError:
			err = assertError(result, assertion)
		case result.Request == nil:
			err = &AssertionError{
				Type:     assertion.Type,
				Expected: "assembled request",
				Actual:   fmt.Sprintf("assembly failed: %v", result.Err),
			}
		default:
			switch assertion.Type {
			case AssertColumns:
				err = assertColumns(result.Request, assertion)
			case AssertDefinition:
				err = assertDefinition(result.Request, assertion)
			case AssertDefinitionOrder:
				err = assertDefinitionOrder(result.Request, assertion)
			case AssertMapping:
				err = assertMapping(result.Request, assertion)
			case AssertRegistry:
				if actx == nil || actx.Store == nil {
					err = fmt.Errorf("assertion[%d]: registry requires database context", i)
				} else {
					err = assertRegistry(actx.Ctx, actx.Store, actx.CompilationID, assertion)
				}
			default:
				err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
			}
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

func assertError(result *Result, assertion Assertion) error {
	if result.Request != nil {
		return &AssertionError{
			Type:     AssertError,
			Expected: fmt.Sprintf("assembly error %s", assertion.Code),
			Actual:   "request assembled",
			Columns:  result.Request.Columns,
		}
	}
	if result.ErrorCode != assertion.Code {
		return &AssertionError{
			Type:     AssertError,
			Expected: fmt.Sprintf("assembly error %s", assertion.Code),
			Actual:   fmt.Sprintf("assembly error %s: %v", result.ErrorCode, result.Err),
		}
	}
	return nil
}
