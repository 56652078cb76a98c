package ir

import (
	"maps"
	"slices"
)

// AttributeInfo is what the metadata service knows about the attribute
// owning a display form.
type AttributeInfo struct {
	URI  string `json:"uri" yaml:"uri" validate:"required"`
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

// IsDate reports whether the attribute is a date attribute.
// Only date attributes carry a type.
func (a AttributeInfo) IsDate() bool {
	return a.Type != ""
}

// AttributesMap maps display form URIs to their owning attribute.
// It is supplied fully resolved by the caller and never mutated.
type AttributesMap map[string]AttributeInfo

// Resolve returns the attribute for uri. uri is looked up as a display
// form first; an attribute URI present as a value resolves to itself.
func (m AttributesMap) Resolve(uri string) (AttributeInfo, bool) {
	if uri == "" {
		return AttributeInfo{}, false
	}
	if info, ok := m[uri]; ok {
		return info, true
	}
	for _, key := range slices.Sorted(maps.Keys(m)) {
		if m[key].URI == uri {
			return m[key], true
		}
	}
	return AttributeInfo{}, false
}

// DisplayForms returns every display form referenced by vis (categories
// first, then attribute filters), de-duplicated, in first-seen order.
func DisplayForms(vis *Visualization) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(uri string) {
		if uri != "" && !seen[uri] {
			seen[uri] = true
			out = append(out, uri)
		}
	}
	for _, a := range vis.Attributes() {
		add(a.DisplayFormURI)
	}
	for _, m := range vis.Measures() {
		for _, f := range m.Filters {
			add(f.DisplayForm())
		}
	}
	return out
}

// MissingDisplayForms returns the display forms of vis that m does not
// cover. Callers fetch these from the metadata service before compiling.
func (m AttributesMap) MissingDisplayForms(vis *Visualization) []string {
	var missing []string
	for _, uri := range DisplayForms(vis) {
		if _, ok := m[uri]; !ok {
			missing = append(missing, uri)
		}
	}
	return missing
}
