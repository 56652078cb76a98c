package exprir

// Expr is a value-producing expression node.
//
// This is a sealed interface. Expr types:
//   - ObjectRef: a catalog object (metric, fact, attribute)
//   - Aggregate: an aggregation function over an object
//   - Ratio: one sub-select divided by another
//   - Select: a full SELECT statement
type Expr interface {
	exprNode()
}

// Condition is a WHERE-clause node.
//
// This is a sealed interface. Condition types:
//   - In: attribute element selection
//   - And: conjunction of conditions
type Condition interface {
	conditionNode()
}

// ObjectRef references a catalog object by URI.
//
//	[/gdc/md/<project>/obj/<id>]
type ObjectRef struct {
	URI string
}

func (ObjectRef) exprNode() {}

// Aggregate rolls an object up with an aggregation function.
// Func is rendered upper-case.
//
//	SUM([/gdc/md/<project>/obj/<id>])
type Aggregate struct {
	Func   string
	Object ObjectRef
}

func (Aggregate) exprNode() {}

// Ratio divides one sub-select by another.
//
//	(SELECT ...) / (SELECT ...)
type Ratio struct {
	Numerator   Select
	Denominator Select
}

func (Ratio) exprNode() {}

// Select is a full statement.
//
// Clause order is fixed: body, BY ALL, WHERE, FOR PREVIOUS.
// Empty ByAll, nil Where and empty ForPrevious are omitted.
//
// Example:
//
//	Select{
//	  Body:  Aggregate{Func: "sum", Object: ObjectRef{URI: fact}},
//	  ByAll: attr,
//	  Where: In{Attribute: other, Elements: []string{e1}},
//	}
//
// renders as:
//
//	SELECT SUM([fact]) BY ALL [attr] WHERE [other] IN ([e1])
type Select struct {
	Body        Expr
	ByAll       string
	Where       Condition
	ForPrevious string
}

func (Select) exprNode() {}

// In selects attribute elements. Negated renders NOT IN.
// Elements must be non-empty: an empty selection is expressed by omitting
// the condition, never as IN ().
type In struct {
	Attribute string
	Elements  []string
	Negated   bool
}

func (In) conditionNode() {}

// And is a conjunction. Conditions are rendered in order.
type And struct {
	Conditions []Condition
}

func (And) conditionNode() {}

// Conjoin combines conditions: nil for none, the condition itself for one,
// And otherwise.
func Conjoin(conds ...Condition) Condition {
	var kept []Condition
	for _, c := range conds {
		if c != nil {
			kept = append(kept, c)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return And{Conditions: kept}
}

// IsSelect reports whether e is a full SELECT statement, which means it
// must be parenthesized when embedded in another expression.
func IsSelect(e Expr) bool {
	switch e.(type) {
	case Select, *Select:
		return true
	}
	return false
}

// WithoutWhere returns s with its WHERE clause removed.
func WithoutWhere(s Select) Select {
	s.Where = nil
	return s
}
