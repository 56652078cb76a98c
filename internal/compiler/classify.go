package compiler

import "github.com/roach88/metricc/internal/ir"

// Strategy is the code-generation strategy chosen for a measure.
type Strategy string

const (
	StrategyPoPContribution Strategy = "pop_contribution"
	StrategyPoP             Strategy = "pop"
	StrategyContribution    Strategy = "contribution"
	StrategyDerived         Strategy = "derived"
	StrategyPure            Strategy = "pure"
)

// Strategies lists every strategy in dispatch order.
var Strategies = []Strategy{
	StrategyPoPContribution,
	StrategyPoP,
	StrategyContribution,
	StrategyDerived,
	StrategyPure,
}

// Classify returns the strategy for m. Arms are ordered most specific
// first and the first match wins:
//  1. PoP over Contribution
//  2. PoP
//  3. Contribution
//  4. Derived
//  5. Pure
//
// A shape outside the union (nil, pointers, nested wrappers the shaper
// never builds) is an invariant violation.
func Classify(m ir.Measure) (Strategy, error) {
	switch v := m.(type) {
	case ir.PeriodOverPeriod:
		switch inner := v.Inner.(type) {
		case ir.Contribution:
			if isBase(inner.Inner) {
				return StrategyPoPContribution, nil
			}
		case ir.PureReference, ir.Derived:
			return StrategyPoP, nil
		}
		return "", newInvariantError("no strategy for period-over-period over %T", v.Inner)
	case ir.Contribution:
		if isBase(v.Inner) {
			return StrategyContribution, nil
		}
		return "", newInvariantError("no strategy for contribution over %T", v.Inner)
	case ir.Derived:
		return StrategyDerived, nil
	case ir.PureReference:
		return StrategyPure, nil
	}
	return "", newInvariantError("no strategy for measure %T", m)
}

func isBase(m ir.Measure) bool {
	switch m.(type) {
	case ir.PureReference, ir.Derived:
		return true
	}
	return false
}

// Suffix returns the trailing identifier segment for a strategy.
// Derived measures end in their aggregation name, or "base" without one.
func (s Strategy) Suffix(aggregation string) string {
	switch s {
	case StrategyDerived:
		if aggregation != "" {
			return aggregation
		}
		return "base"
	case StrategyContribution:
		return "percent"
	case StrategyPoP, StrategyPoPContribution:
		return "pop"
	}
	return ""
}

// IsPoP reports whether the strategy produces a period-over-period metric.
func (s Strategy) IsPoP() bool {
	return s == StrategyPoP || s == StrategyPoPContribution
}

// Generates reports whether the strategy produces a generated definition.
// Pure measures are referenced directly.
func (s Strategy) Generates() bool {
	return s != StrategyPure
}
