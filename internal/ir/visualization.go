package ir

// Visualization is the declarative input of a compilation: buckets of
// measures and attributes plus sort and totals metadata.
type Visualization struct {
	Buckets    []Bucket   `json:"buckets" yaml:"buckets" validate:"dive"`
	Properties Properties `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Properties holds visualization-wide settings.
type Properties struct {
	SortItems []SortItem `json:"sortItems,omitempty" yaml:"sortItems,omitempty" validate:"dive"`
}

// Bucket groups items of one visual role (measures, view by, stack by).
type Bucket struct {
	LocalIdentifier string       `json:"localIdentifier" yaml:"localIdentifier" validate:"required"`
	Items           []BucketItem `json:"items" yaml:"items" validate:"dive"`
	Totals          []Total      `json:"totals,omitempty" yaml:"totals,omitempty" validate:"dive"`
}

// BucketItem holds exactly one of Measure or Attribute.
type BucketItem struct {
	Measure   *MeasureItem   `json:"measure,omitempty" yaml:"measure,omitempty"`
	Attribute *AttributeItem `json:"visualizationAttribute,omitempty" yaml:"visualizationAttribute,omitempty"`
}

// MeasureItem describes one measure as authored in the visualization.
//
// A measure with PopMeasureIdentifier set is a period-over-period measure
// over the measure with that local identifier. ComputeRatio turns the
// measure into a contribution ("percent of total").
type MeasureItem struct {
	LocalIdentifier      string   `json:"localIdentifier" yaml:"localIdentifier" validate:"required"`
	Title                string   `json:"title" yaml:"title"`
	Format               string   `json:"format,omitempty" yaml:"format,omitempty"`
	ObjectURI            string   `json:"objectUri,omitempty" yaml:"objectUri,omitempty" validate:"required_without=PopMeasureIdentifier"`
	Aggregation          string   `json:"aggregation,omitempty" yaml:"aggregation,omitempty" validate:"omitempty,aggregation"`
	Filters              []Filter `json:"filters,omitempty" yaml:"filters,omitempty" validate:"dive"`
	ComputeRatio         bool     `json:"computeRatio,omitempty" yaml:"computeRatio,omitempty"`
	PopMeasureIdentifier string   `json:"popMeasureIdentifier,omitempty" yaml:"popMeasureIdentifier,omitempty"`
	PopAttributeURI      string   `json:"popAttributeUri,omitempty" yaml:"popAttributeUri,omitempty" validate:"required_with=PopMeasureIdentifier"`
}

// IsPoP reports whether the item is a period-over-period measure.
func (m *MeasureItem) IsPoP() bool {
	return m.PopMeasureIdentifier != ""
}

// AttributeItem is a category (view by / stack by) reference.
type AttributeItem struct {
	LocalIdentifier string `json:"localIdentifier" yaml:"localIdentifier" validate:"required"`
	DisplayFormURI  string `json:"displayForm" yaml:"displayForm" validate:"required"`
}

// SortItem holds exactly one of AttributeSort or MeasureSort.
type SortItem struct {
	AttributeSort *AttributeSortItem `json:"attributeSortItem,omitempty" yaml:"attributeSortItem,omitempty"`
	MeasureSort   *MeasureSortItem   `json:"measureSortItem,omitempty" yaml:"measureSortItem,omitempty"`
}

// AttributeSortItem sorts by a category.
type AttributeSortItem struct {
	AttributeIdentifier string `json:"attributeIdentifier" yaml:"attributeIdentifier" validate:"required"`
	Direction           string `json:"direction" yaml:"direction" validate:"sortdir"`
}

// MeasureSortItem sorts by a measure.
type MeasureSortItem struct {
	MeasureIdentifier string `json:"measureIdentifier" yaml:"measureIdentifier" validate:"required"`
	Direction         string `json:"direction" yaml:"direction" validate:"sortdir"`
}

// Total requests a totals row for one measure.
type Total struct {
	Type                string `json:"type" yaml:"type" validate:"oneof=sum avg max min med nat"`
	MeasureIdentifier   string `json:"measureIdentifier" yaml:"measureIdentifier" validate:"required"`
	AttributeIdentifier string `json:"attributeIdentifier" yaml:"attributeIdentifier" validate:"required"`
}

// Sort directions.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// Measures returns every measure item in bucket order.
func (v *Visualization) Measures() []*MeasureItem {
	var out []*MeasureItem
	for i := range v.Buckets {
		for j := range v.Buckets[i].Items {
			if m := v.Buckets[i].Items[j].Measure; m != nil {
				out = append(out, m)
			}
		}
	}
	return out
}

// Attributes returns every attribute item in bucket order.
func (v *Visualization) Attributes() []*AttributeItem {
	var out []*AttributeItem
	for i := range v.Buckets {
		for j := range v.Buckets[i].Items {
			if a := v.Buckets[i].Items[j].Attribute; a != nil {
				out = append(out, a)
			}
		}
	}
	return out
}

// FindMeasure returns the measure with the given local identifier, or nil.
func (v *Visualization) FindMeasure(localIdentifier string) *MeasureItem {
	for _, m := range v.Measures() {
		if m.LocalIdentifier == localIdentifier {
			return m
		}
	}
	return nil
}

// MeasureSortDirection returns the direction of the first measure sort item
// targeting localIdentifier, or "".
func (v *Visualization) MeasureSortDirection(localIdentifier string) string {
	for _, s := range v.Properties.SortItems {
		if s.MeasureSort != nil && s.MeasureSort.MeasureIdentifier == localIdentifier {
			return s.MeasureSort.Direction
		}
	}
	return ""
}

// AttributeSortDirection returns the direction of the first attribute sort
// item targeting localIdentifier, or "".
func (v *Visualization) AttributeSortDirection(localIdentifier string) string {
	for _, s := range v.Properties.SortItems {
		if s.AttributeSort != nil && s.AttributeSort.AttributeIdentifier == localIdentifier {
			return s.AttributeSort.Direction
		}
	}
	return ""
}
