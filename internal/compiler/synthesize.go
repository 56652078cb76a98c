package compiler

import (
	"strings"

	"github.com/roach88/metricc/internal/exprir"
	"github.com/roach88/metricc/internal/ir"
	"github.com/roach88/metricc/internal/maql"
)

// ContributionFormat is the number format of every contribution metric,
// regardless of the inner measure's format.
const ContributionFormat = "#,##0.00%"

// MaxTitleLength is the longest title, in characters, a generated metric
// may carry.
const MaxTitleLength = 1000

// Context is the attribute-resolution scope of a synthesis.
type Context struct {
	// Attributes resolves display forms to attributes.
	Attributes ir.AttributesMap

	// GroupBy is the display form of the first category of the
	// visualization, or "" when there is none. Contributions group by it.
	GroupBy string
}

// Synthesis is the textual form of one measure.
type Synthesis struct {
	Strategy   Strategy
	Expression string
	Title      string
	Format     string
}

// Synthesize produces the expression, title and format for m.
// The result is a pure function of its inputs.
func Synthesize(m ir.Measure, title, format string, ctx Context) (Synthesis, error) {
	strategy, err := Classify(m)
	if err != nil {
		return Synthesis{}, err
	}

	tree, err := build(m, ctx)
	if err != nil {
		return Synthesis{}, err
	}
	if result := exprir.Validate(tree); !result.Valid {
		return Synthesis{}, newInvariantError("malformed expression: %s", strings.Join(result.Problems, "; "))
	}
	text, err := maql.Render(tree)
	if err != nil {
		return Synthesis{}, newInvariantError("render: %v", err)
	}

	if strategy == StrategyContribution || strategy == StrategyPoPContribution {
		format = ContributionFormat
	}
	return Synthesis{
		Strategy:   strategy,
		Expression: text,
		Title:      TruncateTitle(title),
		Format:     format,
	}, nil
}

// build returns the expression tree for m.
func build(m ir.Measure, ctx Context) (exprir.Select, error) {
	switch v := m.(type) {
	case ir.PureReference:
		return exprir.Select{Body: exprir.ObjectRef{URI: v.ObjectURI}}, nil
	case ir.Derived:
		return buildDerived(v, ctx)
	case ir.Contribution:
		return buildContribution(v, ctx)
	case ir.PeriodOverPeriod:
		return buildPoP(v, ctx)
	}
	return exprir.Select{}, newInvariantError("no expression builder for %T", m)
}

// buildDerived renders SELECT <AGG>([uri]) WHERE <conditions>.
func buildDerived(d ir.Derived, ctx Context) (exprir.Select, error) {
	where, err := conditions(d.Filters, ctx.Attributes)
	if err != nil {
		return exprir.Select{}, err
	}
	return exprir.Select{Body: derivedBody(d), Where: where}, nil
}

func derivedBody(d ir.Derived) exprir.Expr {
	ref := exprir.ObjectRef{URI: d.ObjectURI}
	if d.Aggregation == "" {
		return ref
	}
	return exprir.Aggregate{Func: d.Aggregation, Object: ref}
}

// buildContribution renders
//
//	SELECT (<base> WHERE c) / (<base> BY ALL [attr] WHERE c)
//
// where <base> is the inner measure without its filters.
func buildContribution(c ir.Contribution, ctx Context) (exprir.Select, error) {
	if ctx.GroupBy == "" {
		return exprir.Select{}, newMissingAttributeError("contribution grouping", "")
	}
	group, ok := ctx.Attributes.Resolve(ctx.GroupBy)
	if !ok {
		return exprir.Select{}, newMissingAttributeError("contribution grouping", ctx.GroupBy)
	}

	var body exprir.Expr
	var where exprir.Condition
	switch inner := c.Inner.(type) {
	case ir.PureReference:
		body = exprir.ObjectRef{URI: inner.ObjectURI}
	case ir.Derived:
		body = derivedBody(inner)
		var err error
		if where, err = conditions(inner.Filters, ctx.Attributes); err != nil {
			return exprir.Select{}, err
		}
	default:
		return exprir.Select{}, newInvariantError("no contribution builder for %T", c.Inner)
	}

	return exprir.Select{Body: exprir.Ratio{
		Numerator:   exprir.Select{Body: body, Where: where},
		Denominator: exprir.Select{Body: body, ByAll: group.URI, Where: where},
	}}, nil
}

// buildPoP renders SELECT <inner> FOR PREVIOUS ([attr]). A pure original
// is embedded as a bare reference, anything else as a sub-select.
func buildPoP(p ir.PeriodOverPeriod, ctx Context) (exprir.Select, error) {
	attr, ok := ctx.Attributes.Resolve(p.PopAttributeURI)
	if !ok {
		return exprir.Select{}, newMissingAttributeError("period-over-period", p.PopAttributeURI)
	}

	var body exprir.Expr
	if pure, isPure := p.Inner.(ir.PureReference); isPure {
		body = exprir.ObjectRef{URI: pure.ObjectURI}
	} else {
		inner, err := build(p.Inner, ctx)
		if err != nil {
			return exprir.Select{}, err
		}
		body = inner
	}
	return exprir.Select{Body: body, ForPrevious: attr.URI}, nil
}

// conditions turns effective filters into a WHERE condition. Date filters
// contribute nothing: measure-level date filtering was never supported
// and emitting it would change existing identifiers.
func conditions(filters []ir.Filter, attrs ir.AttributesMap) (exprir.Condition, error) {
	var conds []exprir.Condition
	for _, f := range filters {
		if f.IsEmpty() || !f.IsAttributeFilter() {
			continue
		}
		attr, ok := attrs.Resolve(f.DisplayForm())
		if !ok {
			return nil, newMissingAttributeError("filter", f.DisplayForm())
		}
		if f.PositiveAttribute != nil {
			conds = append(conds, exprir.In{Attribute: attr.URI, Elements: f.PositiveAttribute.In})
		} else {
			conds = append(conds, exprir.In{Attribute: attr.URI, Elements: f.NegativeAttribute.NotIn, Negated: true})
		}
	}
	return exprir.Conjoin(conds...), nil
}

// TruncateTitle caps title at MaxTitleLength characters. A truncated
// title ends in an ellipsis, placed before a trailing ")" if there is one.
func TruncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= MaxTitleLength {
		return title
	}
	if runes[len(runes)-1] == ')' {
		return string(runes[:MaxTitleLength-2]) + "…)"
	}
	return string(runes[:MaxTitleLength-1]) + "…"
}
