package exprir

import "fmt"

// ValidationResult lists structural problems of an expression tree.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	// Problems describes every malformed node, in traversal order.
	Problems []string
}

// Validate checks that an expression can be rendered without producing
// malformed text:
//  1. Every object and attribute reference has a URI
//  2. Aggregates name a function
//  3. In conditions select at least one element
//  4. And conditions are not empty
//  5. A Select has a body
//
// Validate is a pure function with no side effects.
func Validate(e Expr) ValidationResult {
	v := &validator{problems: []string{}}
	v.validateExpr(e)
	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateExpr(e Expr) {
	switch expr := e.(type) {
	case nil:
		v.addProblem("nil expression")
	case ObjectRef:
		v.validateObject(expr)
	case Aggregate:
		if expr.Func == "" {
			v.addProblem("aggregate without function over %q", expr.Object.URI)
		}
		v.validateObject(expr.Object)
	case Ratio:
		v.validateSelect(expr.Numerator)
		v.validateSelect(expr.Denominator)
	case Select:
		v.validateSelect(expr)
	case *Select:
		if expr == nil {
			v.addProblem("nil select")
			return
		}
		v.validateSelect(*expr)
	default:
		v.addProblem("unknown expression type: %T", e)
	}
}

func (v *validator) validateObject(o ObjectRef) {
	if o.URI == "" {
		v.addProblem("object reference without URI")
	}
}

func (v *validator) validateSelect(s Select) {
	if s.Body == nil {
		v.addProblem("select without body")
	} else {
		v.validateExpr(s.Body)
	}
	if s.Where != nil {
		v.validateCondition(s.Where)
	}
}

func (v *validator) validateCondition(c Condition) {
	switch cond := c.(type) {
	case In:
		if cond.Attribute == "" {
			v.addProblem("IN condition without attribute")
		}
		if len(cond.Elements) == 0 {
			v.addProblem("IN condition on %q selects no elements", cond.Attribute)
		}
	case And:
		if len(cond.Conditions) == 0 {
			v.addProblem("empty AND condition")
		}
		for _, sub := range cond.Conditions {
			v.validateCondition(sub)
		}
	default:
		v.addProblem("unknown condition type: %T", c)
	}
}
