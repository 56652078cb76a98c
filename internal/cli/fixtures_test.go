package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/metricc/internal/ir"
)

// sumVisualization has one sum measure and no categories.
const sumVisualization = `
buckets:
  - localIdentifier: measures
    items:
      - measure:
          localIdentifier: m1
          title: Sum of Amount
          format: "#,##0.00"
          objectUri: /gdc/md/p/obj/10
          aggregation: sum
`

// categoryVisualization views the sum measure by one attribute.
const categoryVisualization = sumVisualization + `
  - localIdentifier: view
    items:
      - visualizationAttribute:
          localIdentifier: a1
          displayForm: /gdc/md/p/obj/21
`

const categoryAttributes = `
/gdc/md/p/obj/21:
  uri: /gdc/md/p/obj/20
`

// sumVisualizationCUE is sumVisualization written in CUE.
const sumVisualizationCUE = `
visualization: buckets: [{
	localIdentifier: "measures"
	items: [{
		measure: {
			localIdentifier: "m1"
			title:           "Sum of Amount"
			format:          "#,##0.00"
			objectUri:       "/gdc/md/p/obj/10"
			aggregation:     "sum"
		}
	}]
}]
`

// sumID is the generated identifier of the sum measure.
func sumID() string {
	return "fact_p_10.generated." +
		ir.MD5Hasher{}.Hash("SELECT SUM([/gdc/md/p/obj/10])", "Sum of Amount", "#,##0.00") +
		"_sum"
}

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
