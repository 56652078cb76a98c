package ir

import (
	"fmt"
	"strings"
)

// Measure is the shaped form of a MeasureItem the compiler dispatches on.
//
// This is a sealed interface; the marker method keeps implementations in
// this package so type switches over it stay exhaustive:
//   - PureReference: an existing catalog metric, used as is
//   - Derived: a fact or attribute rolled up and/or filtered
//   - Contribution: the inner measure as a share of its total
//   - PeriodOverPeriod: the inner measure for the previous period
type Measure interface {
	measureNode()
}

// PureReference references an existing metric object directly.
type PureReference struct {
	ObjectURI string
}

func (PureReference) measureNode() {}

// Derived rolls up a fact or attribute with an optional aggregation and
// attribute/date filters. Filters holds effective filters only.
type Derived struct {
	ObjectURI   string
	Aggregation string
	Filters     []Filter
}

func (Derived) measureNode() {}

// Contribution wraps a PureReference or Derived measure as percent of total
// over the grouping attribute.
type Contribution struct {
	Inner Measure
}

func (Contribution) measureNode() {}

// PeriodOverPeriod wraps the original measure, computed for the previous
// period of PopAttributeURI. Inner is never itself a PeriodOverPeriod.
type PeriodOverPeriod struct {
	Inner           Measure
	PopAttributeURI string
}

func (PeriodOverPeriod) measureNode() {}

// ShapeError reports a measure item that cannot be shaped.
type ShapeError struct {
	LocalIdentifier string
	Message         string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("measure %q: %s", e.LocalIdentifier, e.Message)
}

// Shape builds the Measure union for item. PoP items are resolved against
// the measures of vis.
func Shape(vis *Visualization, item *MeasureItem) (Measure, error) {
	if item == nil {
		return nil, &ShapeError{Message: "nil measure item"}
	}
	if !item.IsPoP() {
		return shapeBase(item), nil
	}

	original := vis.FindMeasure(item.PopMeasureIdentifier)
	if original == nil {
		return nil, &ShapeError{
			LocalIdentifier: item.LocalIdentifier,
			Message:         fmt.Sprintf("period-over-period original %q not found", item.PopMeasureIdentifier),
		}
	}
	if original.IsPoP() {
		return nil, &ShapeError{
			LocalIdentifier: item.LocalIdentifier,
			Message:         fmt.Sprintf("period-over-period original %q is itself period-over-period", original.LocalIdentifier),
		}
	}
	if item.PopAttributeURI == "" {
		return nil, &ShapeError{
			LocalIdentifier: item.LocalIdentifier,
			Message:         "period-over-period measure has no pop attribute",
		}
	}

	return PeriodOverPeriod{
		Inner:           shapeBase(original),
		PopAttributeURI: item.PopAttributeURI,
	}, nil
}

func shapeBase(item *MeasureItem) Measure {
	var base Measure
	aggregation := strings.ToLower(item.Aggregation)
	filters := EffectiveFilters(item.Filters)
	if aggregation != "" || len(filters) > 0 {
		base = Derived{
			ObjectURI:   item.ObjectURI,
			Aggregation: aggregation,
			Filters:     filters,
		}
	} else {
		base = PureReference{ObjectURI: item.ObjectURI}
	}

	if item.ComputeRatio {
		return Contribution{Inner: base}
	}
	return base
}

// Naming holds the parts of a source measure that generated identifiers
// are built from.
type Naming struct {
	ObjectURI   string
	Aggregation string
	Filtered    bool
}

// NamingOf returns the naming parts of m. Wrappers (contribution,
// period-over-period) name after the measure they wrap.
func NamingOf(m Measure) Naming {
	switch v := m.(type) {
	case PureReference:
		return Naming{ObjectURI: v.ObjectURI}
	case Derived:
		return Naming{
			ObjectURI:   v.ObjectURI,
			Aggregation: strings.ToLower(v.Aggregation),
			Filtered:    len(EffectiveFilters(v.Filters)) > 0,
		}
	case Contribution:
		return NamingOf(v.Inner)
	case PeriodOverPeriod:
		return NamingOf(v.Inner)
	}
	return Naming{}
}
