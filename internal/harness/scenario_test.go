package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `
name: minimal
description: "One pure measure"
visualization:
  buckets:
    - localIdentifier: measures
      items:
        - measure:
            localIdentifier: m1
            title: Opportunities
            objectUri: /gdc/md/p/obj/1
attributes: {}
assertions:
  - type: columns
    columns: [/gdc/md/p/obj/1]
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalScenario), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "minimal", scenario.Name)
	assert.Equal(t, "One pure measure", scenario.Description)
	require.Len(t, scenario.Visualization.Buckets, 1)
	m := scenario.Visualization.Buckets[0].Items[0].Measure
	require.NotNil(t, m)
	assert.Equal(t, "m1", m.LocalIdentifier)
	assert.Equal(t, "/gdc/md/p/obj/1", m.ObjectURI)
	assert.Equal(t, []string{"/gdc/md/p/obj/1"}, scenario.Assertions[0].Columns)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(minimalScenario + "assertion: []\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_UnknownNestedField(t *testing.T) {
	content := `
name: typo
description: "Typo inside a measure"
visualization:
  buckets:
    - localIdentifier: measures
      items:
        - measure:
            localIdentifier: m1
            objectURI: /gdc/md/p/obj/1
assertions:
  - type: columns
    columns: []
`
	_, err := ParseScenario([]byte(content))
	require.Error(t, err)
}

func TestParseScenario_Invalid(t *testing.T) {
	header := "name: x\ndescription: d\n"
	vis := `
visualization:
  buckets:
    - localIdentifier: measures
      items: []
`
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing name", "description: d\n" + vis + "assertions:\n  - type: columns\n    columns: []\n", "name is required"},
		{"missing description", "name: x\n" + vis + "assertions:\n  - type: columns\n    columns: []\n", "description is required"},
		{"no buckets", header + "assertions:\n  - type: columns\n    columns: []\n", "at least one bucket"},
		{"no assertions", header + vis, "assertions list is required"},
		{"unknown type", header + vis + "assertions:\n  - type: trace_contains\n", "unknown assertion type"},
		{"missing type", header + vis + "assertions:\n  - columns: []\n", "type is required"},
		{"columns without list", header + vis + "assertions:\n  - type: columns\n", "columns is required"},
		{"definition without id", header + vis + "assertions:\n  - type: definition\n", "identifier is required"},
		{"short order", header + vis + "assertions:\n  - type: definition_order\n    identifiers: [a]\n", "at least two identifiers"},
		{"mapping without element", header + vis + "assertions:\n  - type: mapping\n    measure_index: 0\n", "element is required"},
		{"mapping without index", header + vis + "assertions:\n  - type: mapping\n    element: e\n", "measure_index is required"},
		{"error without code", header + vis + "assertions:\n  - type: error\n", "code is required"},
		{"registry without count", header + vis + "assertions:\n  - type: registry\n", "count is required"},
		{"negative registry", header + vis + "assertions:\n  - type: registry\n    count: -1\n", "count is required"},
		{"error with others", header + vis + "assertions:\n  - type: error\n    code: X\n  - type: columns\n    columns: []\n", "only assertion"},
		{"bad hash", header + vis + "options:\n  hash: crc32\nassertions:\n  - type: columns\n    columns: []\n", "options.hash"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseScenario_Options(t *testing.T) {
	content := minimalScenario + "options:\n  hash: sha256\n  remove_date_items: true\nknown: [a, b]\n"
	scenario, err := ParseScenario([]byte(content))
	require.NoError(t, err)
	assert.Equal(t, "sha256", scenario.Options.Hash)
	assert.True(t, scenario.Options.RemoveDateItems)
	assert.Equal(t, []string{"a", "b"}, scenario.Known)
}
