package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/metricc/internal/ir"
)

// Scenario is one conformance case: a visualization, the attributes map
// the caller would supply, and assertions on the assembled request.
type Scenario struct {
	// Name uniquely identifies this scenario. It names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	Visualization ir.Visualization `yaml:"visualization"`
	Attributes    ir.AttributesMap `yaml:"attributes"`

	// Definitions are caller-supplied metrics sent with the request.
	Definitions []ir.MetricDefinition `yaml:"definitions,omitempty"`

	// Known lists identifiers that exist outside the request.
	Known []string `yaml:"known,omitempty"`

	Options Options `yaml:"options,omitempty"`

	Assertions []Assertion `yaml:"assertions"`
}

// Options are the assembler settings a scenario runs with.
type Options struct {
	// Hash is "md5" (default) or "sha256".
	Hash string `yaml:"hash,omitempty"`

	RemoveDateItems bool `yaml:"remove_date_items,omitempty"`
}

// Assertion checks one property of the result.
type Assertion struct {
	// Type specifies the assertion type:
	// - "columns": the request columns equal Columns exactly
	// - "definition": a definition with Identifier exists; Expression,
	//   Title and Format are compared when set
	// - "definition_order": Identifiers appear in this relative order
	// - "mapping": Element maps to MeasureIndex (and IsPoP when set)
	// - "error": assembly failed with Code
	// - "registry": the registry stored Count definitions for the run
	Type string `yaml:"type"`

	Columns []string `yaml:"columns,omitempty"`

	Identifier string `yaml:"identifier,omitempty"`
	Expression string `yaml:"expression,omitempty"`
	Title      string `yaml:"title,omitempty"`
	Format     string `yaml:"format,omitempty"`

	Identifiers []string `yaml:"identifiers,omitempty"`

	Element      string `yaml:"element,omitempty"`
	MeasureIndex *int   `yaml:"measure_index,omitempty"`
	IsPoP        *bool  `yaml:"is_pop,omitempty"`

	Code string `yaml:"code,omitempty"`

	Count *int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertColumns         = "columns"
	AssertDefinition      = "definition"
	AssertDefinitionOrder = "definition_order"
	AssertMapping         = "mapping"
	AssertError           = "error"
	AssertRegistry        = "registry"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Visualization.Buckets) == 0 {
		return fmt.Errorf("visualization must have at least one bucket")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.Options.Hash != "" {
		if _, err := ir.HasherByName(s.Options.Hash); err != nil {
			return fmt.Errorf("options.hash: %w", err)
		}
	}

	expectsError := false
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
		if assertion.Type == AssertError {
			expectsError = true
		}
	}
	if expectsError && len(s.Assertions) > 1 {
		return fmt.Errorf("an error assertion must be the only assertion")
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertColumns:
		if a.Columns == nil {
			return fmt.Errorf("assertions[%d]: columns is required for columns", index)
		}
	case AssertDefinition:
		if a.Identifier == "" {
			return fmt.Errorf("assertions[%d]: identifier is required for definition", index)
		}
	case AssertDefinitionOrder:
		if len(a.Identifiers) < 2 {
			return fmt.Errorf("assertions[%d]: at least two identifiers are required for definition_order", index)
		}
	case AssertMapping:
		if a.Element == "" {
			return fmt.Errorf("assertions[%d]: element is required for mapping", index)
		}
		if a.MeasureIndex == nil {
			return fmt.Errorf("assertions[%d]: measure_index is required for mapping", index)
		}
	case AssertError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error", index)
		}
	case AssertRegistry:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for registry", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
