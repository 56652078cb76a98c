package execution

import "github.com/roach88/metricc/internal/ir"

// Header is a result column header as returned by the execution backend.
type Header struct {
	ID    string `json:"id,omitempty"`
	URI   string `json:"uri,omitempty"`
	Title string `json:"title,omitempty"`
	Type  string `json:"type,omitempty"`

	// MeasureIndex and IsPoP are filled in by ApplyMappings.
	MeasureIndex *int `json:"measureIndex,omitempty"`
	IsPoP        bool `json:"isPoP,omitempty"`
}

// ApplyMappings attaches measure indexes to result headers. Each mapping
// claims the first header whose id or uri equals its element and that no
// earlier mapping claimed. Mappings without a header are ignored.
// headers is not modified.
func ApplyMappings(headers []Header, mappings []MetricMapping) []Header {
	out := make([]Header, len(headers))
	copy(out, headers)
	for _, m := range mappings {
		for i := range out {
			h := &out[i]
			if h.MeasureIndex != nil || (h.ID != m.Element && h.URI != m.Element) {
				continue
			}
			idx := m.MeasureIndex
			h.MeasureIndex = &idx
			h.IsPoP = m.IsPoP
			break
		}
	}
	return out
}

// MissingDisplayForms returns the display forms of vis that attrs does not
// cover, in the order they appear. Callers load these from the metadata
// service before calling Assemble.
func MissingDisplayForms(vis *ir.Visualization, attrs ir.AttributesMap) []string {
	return attrs.MissingDisplayForms(vis)
}
