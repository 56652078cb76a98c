package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/metricc/internal/ir"
)

// Measure base types used as identifier prefixes.
const (
	TypeMetric    = "metric"
	TypeAttribute = "attribute"
	TypeFact      = "fact"
)

// MeasureType classifies a measure for naming: no aggregation is a metric,
// count is an attribute, anything else a fact.
func MeasureType(aggregation string) string {
	switch aggregation {
	case "":
		return TypeMetric
	case "count":
		return TypeAttribute
	}
	return TypeFact
}

// ParseObjectURI extracts the project and object ids from
// /gdc/md/<project>/obj/<id>.
func ParseObjectURI(uri string) (project, object string, err error) {
	parts := strings.Split(uri, "/")
	if len(parts) < 6 || parts[3] == "" || parts[5] == "" {
		return "", "", &CompileError{
			Code:    ErrCodeInvalidObjectURI,
			Message: fmt.Sprintf("object URI %q has no project and object id", uri),
			Details: map[string]string{"uri": uri},
		}
	}
	return parts[3], parts[5], nil
}

// DeriveID builds
//
//	<type>_<project>_<object>.generated.<hash>[_filtered]_<suffix>
//
// from the naming parts of the source measure. Equal inputs always yield
// equal identifiers.
func DeriveID(naming ir.Naming, suffix, hash string) (string, error) {
	project, object, err := ParseObjectURI(naming.ObjectURI)
	if err != nil {
		return "", err
	}
	filtered := ""
	if naming.Filtered {
		filtered = "_filtered"
	}
	return fmt.Sprintf("%s_%s_%s.generated.%s%s_%s",
		MeasureType(naming.Aggregation), project, object, hash, filtered, suffix), nil
}

// IdentifierFor derives the identifier of a synthesized measure. PoP
// identifiers are named after the original measure.
func IdentifierFor(m ir.Measure, syn Synthesis, hasher ir.Hasher) (string, error) {
	if !syn.Strategy.Generates() {
		return "", newInvariantError("strategy %q does not generate an identifier", syn.Strategy)
	}
	naming := ir.NamingOf(m)
	hash := hasher.Hash(syn.Expression, syn.Title, syn.Format)
	return DeriveID(naming, syn.Strategy.Suffix(naming.Aggregation), hash)
}
