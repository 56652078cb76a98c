package ir

// Filter is a measure filter. Exactly one variant is expected to be set;
// a filter with no variant is treated as empty.
type Filter struct {
	PositiveAttribute *PositiveAttributeFilter `json:"positiveAttributeFilter,omitempty" yaml:"positiveAttributeFilter,omitempty"`
	NegativeAttribute *NegativeAttributeFilter `json:"negativeAttributeFilter,omitempty" yaml:"negativeAttributeFilter,omitempty"`
	AbsoluteDate      *AbsoluteDateFilter      `json:"absoluteDateFilter,omitempty" yaml:"absoluteDateFilter,omitempty"`
	RelativeDate      *RelativeDateFilter      `json:"relativeDateFilter,omitempty" yaml:"relativeDateFilter,omitempty"`
}

// PositiveAttributeFilter keeps only the listed attribute elements.
type PositiveAttributeFilter struct {
	DisplayForm string   `json:"displayForm" yaml:"displayForm" validate:"required"`
	In          []string `json:"in" yaml:"in"`
}

// NegativeAttributeFilter drops the listed attribute elements.
type NegativeAttributeFilter struct {
	DisplayForm string   `json:"displayForm" yaml:"displayForm" validate:"required"`
	NotIn       []string `json:"notIn" yaml:"notIn"`
}

// AbsoluteDateFilter restricts a date data set to a calendar range.
type AbsoluteDateFilter struct {
	DataSet string  `json:"dataSet" yaml:"dataSet" validate:"required"`
	From    *string `json:"from,omitempty" yaml:"from,omitempty"`
	To      *string `json:"to,omitempty" yaml:"to,omitempty"`
}

// RelativeDateFilter restricts a date data set to a range relative to today.
type RelativeDateFilter struct {
	DataSet     string `json:"dataSet" yaml:"dataSet" validate:"required"`
	Granularity string `json:"granularity" yaml:"granularity"`
	From        *int   `json:"from,omitempty" yaml:"from,omitempty"`
	To          *int   `json:"to,omitempty" yaml:"to,omitempty"`
}

// IsEmpty reports whether the filter selects everything. Empty filters are
// semantically absent: "all elements" is a no-op, not an empty result.
func (f Filter) IsEmpty() bool {
	switch {
	case f.PositiveAttribute != nil:
		return len(f.PositiveAttribute.In) == 0
	case f.NegativeAttribute != nil:
		return len(f.NegativeAttribute.NotIn) == 0
	case f.AbsoluteDate != nil:
		return f.AbsoluteDate.From == nil && f.AbsoluteDate.To == nil
	case f.RelativeDate != nil:
		return f.RelativeDate.From == nil && f.RelativeDate.To == nil
	}
	return true
}

// IsAttributeFilter reports whether the filter selects attribute elements.
func (f Filter) IsAttributeFilter() bool {
	return f.PositiveAttribute != nil || f.NegativeAttribute != nil
}

// DisplayForm returns the display form of an attribute filter, or "".
func (f Filter) DisplayForm() string {
	switch {
	case f.PositiveAttribute != nil:
		return f.PositiveAttribute.DisplayForm
	case f.NegativeAttribute != nil:
		return f.NegativeAttribute.DisplayForm
	}
	return ""
}

// EffectiveFilters returns the filters that are not empty, in order.
func EffectiveFilters(filters []Filter) []Filter {
	var out []Filter
	for _, f := range filters {
		if !f.IsEmpty() {
			out = append(out, f)
		}
	}
	return out
}
