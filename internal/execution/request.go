package execution

import (
	"github.com/roach88/metricc/internal/ir"
)

// Request is the execution request for one visualization. Slices are never
// nil so the canonical form always carries every key.
type Request struct {
	// Columns lists category attribute URIs, then measure elements.
	Columns []string `json:"columns"`

	// Definitions holds generated and caller-supplied metrics in
	// dependency order.
	Definitions []ir.MetricDefinition `json:"definitions"`

	MetricMappings []MetricMapping `json:"metricMappings"`
	OrderBy        []OrderBy       `json:"orderBy"`
	Totals         []Total         `json:"totals"`
}

// MetricMapping ties a column element back to the measure it came from.
type MetricMapping struct {
	Element      string `json:"element"`
	MeasureIndex int    `json:"measureIndex"`
	IsPoP        bool   `json:"isPoP"`
}

// OrderBy sorts the result by one column.
type OrderBy struct {
	Column    string `json:"column"`
	Direction string `json:"direction"`
}

// Total requests one totals row.
type Total struct {
	Type            string `json:"type"`
	Column          string `json:"column"`
	AttributeColumn string `json:"attributeColumn"`
}

// Digest returns the content digest of the request's canonical form.
func (r *Request) Digest() (string, error) {
	return ir.Digest(r)
}

// Canonical returns the canonical JSON encoding of the request.
func (r *Request) Canonical() ([]byte, error) {
	return ir.MarshalCanonical(r)
}
