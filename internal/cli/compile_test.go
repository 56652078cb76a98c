package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/metricc/internal/ir"
	"github.com/roach88/metricc/internal/store"
)

type compileResponse struct {
	Status string        `json:"status"`
	Data   CompileResult `json:"data"`
	Error  *CLIError     `json:"error"`
}

func executeCompile(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func decodeCompile(t *testing.T, output string) compileResponse {
	t.Helper()
	var resp compileResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	return resp
}

func TestCompileText(t *testing.T) {
	vis := writeFile(t, t.TempDir(), "vis.yaml", sumVisualization)

	output, err := executeCompile(t, "text", vis)
	require.NoError(t, err)

	assert.Contains(t, output, "✓ "+vis+": 1 column(s), 1 definition(s)")
	assert.Contains(t, output, sumID())
	assert.Contains(t, output, "Compiled 1 of 1 visualization(s)")
}

func TestCompileJSON(t *testing.T) {
	vis := writeFile(t, t.TempDir(), "vis.yaml", sumVisualization)

	output, err := executeCompile(t, "json", vis)
	require.NoError(t, err)

	resp := decodeCompile(t, output)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Files, 1)
	req := resp.Data.Files[0].Request
	require.NotNil(t, req)
	assert.Equal(t, []string{sumID()}, req.Columns)
	require.Len(t, req.Definitions, 1)
	assert.Equal(t, "SELECT SUM([/gdc/md/p/obj/10])", req.Definitions[0].Expression)
	assert.Equal(t, 1, resp.Data.Succeeded)
}

func TestCompileWithAttributes(t *testing.T) {
	dir := t.TempDir()
	vis := writeFile(t, dir, "vis.yaml", categoryVisualization)
	attrs := writeFile(t, dir, "attributes.yaml", categoryAttributes)

	output, err := executeCompile(t, "json", vis, "--attributes", attrs)
	require.NoError(t, err)

	resp := decodeCompile(t, output)
	require.NotNil(t, resp.Data.Files[0].Request)
	assert.Equal(t, []string{"/gdc/md/p/obj/20", sumID()}, resp.Data.Files[0].Request.Columns)
}

func TestCompileCUE(t *testing.T) {
	dir := t.TempDir()
	vis := writeFile(t, dir, "vis.cue", sumVisualizationCUE)

	output, err := executeCompile(t, "json", vis)
	require.NoError(t, err)

	resp := decodeCompile(t, output)
	require.NotNil(t, resp.Data.Files[0].Request)
	assert.Equal(t, []string{sumID()}, resp.Data.Files[0].Request.Columns)
}

func TestCompileMissingAttribute(t *testing.T) {
	vis := writeFile(t, t.TempDir(), "vis.yaml", categoryVisualization)

	output, err := executeCompile(t, "text", vis)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "✗ "+vis)
	assert.Contains(t, output, "MISSING_ATTRIBUTE")
}

func TestCompileMissingAttributeJSON(t *testing.T) {
	vis := writeFile(t, t.TempDir(), "vis.yaml", categoryVisualization)

	output, err := executeCompile(t, "json", vis)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	resp := decodeCompile(t, output)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCompileFailed, resp.Error.Code)
	require.NotNil(t, resp.Data.Files[0].Error)
	assert.Equal(t, "MISSING_ATTRIBUTE", resp.Data.Files[0].Error.Code)
	assert.Nil(t, resp.Data.Files[0].Request)
}

func TestCompileLoadErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		file     string
		wantCode string
	}{
		{"not found", filepath.Join(dir, "missing.yaml"), ErrCodeNotFound},
		{"unsupported extension", writeFile(t, dir, "vis.txt", sumVisualization), ErrCodeUnsupported},
		{"unknown field", writeFile(t, dir, "unknown.yaml", "buckets: []\ncolour: red\n"), ErrCodeDecodeFailed},
		{"empty file", writeFile(t, dir, "empty.yaml", ""), ErrCodeDecodeFailed},
		{"bad cue", writeFile(t, dir, "bad.cue", "visualization: {"), ErrCodeBuildFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := executeCompile(t, "json", tt.file)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			resp := decodeCompile(t, output)
			require.NotNil(t, resp.Data.Files[0].Error)
			assert.Equal(t, tt.wantCode, resp.Data.Files[0].Error.Code)
		})
	}
}

func TestCompileExitError(t *testing.T) {
	compileFailure := FileResult{File: "a.yaml", err: &ir.ValidationError{Subject: "visualization"}}
	loadFailure := FileResult{File: "b.yaml", err: &LoadError{Code: ErrCodeNotFound, Message: "file not found: b.yaml"}}

	tests := []struct {
		name     string
		result   CompileResult
		wantCode int
	}{
		{"all compiled", CompileResult{Files: []FileResult{{File: "c.yaml"}}, Succeeded: 1}, ExitSuccess},
		{"compile failure", CompileResult{Files: []FileResult{compileFailure}, Failed: 1}, ExitFailure},
		{"load failure wins", CompileResult{Files: []FileResult{compileFailure, loadFailure}, Failed: 2}, ExitCommandError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := compileExitError(tt.result)
			if tt.wantCode == ExitSuccess {
				// A nil *ExitError stored in the interface would not compare equal to nil.
				assert.True(t, err == nil, "got %#v", err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, GetExitCode(err))
			assert.Contains(t, err.Error(), "visualization(s) failed")
		})
	}
}

func TestCompileSuccessThroughRoot(t *testing.T) {
	vis := writeFile(t, t.TempDir(), "vis.yaml", sumVisualization)

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"compile", vis})

	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, buf.String(), "Compiled 1 of 1 visualization(s)")
}

func TestCompileInvalidFlags(t *testing.T) {
	vis := writeFile(t, t.TempDir(), "vis.yaml", sumVisualization)

	output, err := executeCompile(t, "text", vis, "--hash", "crc32")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, "Error ["+ErrCodeInvalidFlag+"]")

	_, err = executeCompile(t, "text", vis, "--jobs", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompileInvalidAttributes(t *testing.T) {
	dir := t.TempDir()
	vis := writeFile(t, dir, "vis.yaml", categoryVisualization)
	attrs := writeFile(t, dir, "attributes.yaml", "/gdc/md/p/obj/21:\n  type: GDC.time.year\n")

	output, err := executeCompile(t, "text", vis, "--attributes", attrs)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, output, "Error [INVALID_INPUT]")
}

func TestCompileSHA256(t *testing.T) {
	vis := writeFile(t, t.TempDir(), "vis.yaml", sumVisualization)

	output, err := executeCompile(t, "json", vis, "--hash", "sha256")
	require.NoError(t, err)

	resp := decodeCompile(t, output)
	want := "fact_p_10.generated." +
		ir.SHA256Hasher{}.Hash("SELECT SUM([/gdc/md/p/obj/10])", "Sum of Amount", "#,##0.00") + "_sum"
	assert.Equal(t, []string{want}, resp.Data.Files[0].Request.Columns)
}

func TestCompileMultipleFilesKeepOrder(t *testing.T) {
	dir := t.TempDir()
	attrs := writeFile(t, dir, "attributes.yaml", categoryAttributes)
	files := []string{
		writeFile(t, dir, "a.yaml", sumVisualization),
		writeFile(t, dir, "b.yaml", categoryVisualization),
		filepath.Join(dir, "missing.yaml"),
		writeFile(t, dir, "d.yaml", sumVisualization),
	}

	args := append(append([]string{}, files...), "--attributes", attrs, "--jobs", "2")
	output, err := executeCompile(t, "json", args...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decodeCompile(t, output)
	require.Len(t, resp.Data.Files, 4)
	for i, f := range resp.Data.Files {
		assert.Equal(t, files[i], f.File)
	}
	assert.Equal(t, 3, resp.Data.Succeeded)
	assert.Equal(t, 1, resp.Data.Failed)
	assert.Len(t, resp.Data.Files[1].Request.Columns, 2)
}

func TestCompileCallerDefinitions(t *testing.T) {
	dir := t.TempDir()
	vis := writeFile(t, dir, "vis.yaml", sumVisualization)
	defs := writeFile(t, dir, "defs.yaml", `
- identifier: half_total
  expression: SELECT {total} / 2
`)

	// total is neither generated nor known.
	output, err := executeCompile(t, "json", vis, "--definitions", defs)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	resp := decodeCompile(t, output)
	assert.Equal(t, "UNSATISFIABLE_DEPENDENCY", resp.Data.Files[0].Error.Code)

	output, err = executeCompile(t, "json", vis, "--definitions", defs, "--known", "total")
	require.NoError(t, err)
	resp = decodeCompile(t, output)
	require.Len(t, resp.Data.Files[0].Request.Definitions, 2)
	requireSelfContained(t, resp.Data.Files[0].Request.Definitions, "total")
}

func TestCompileRegistry(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "metricc.db")
	vis := writeFile(t, dir, "vis.yaml", sumVisualization)

	output, err := executeCompile(t, "json", vis, "--db", db)
	require.NoError(t, err)
	first := decodeCompile(t, output).Data.Files[0]
	assert.NotEmpty(t, first.CompilationID)
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, 1, first.Inserted)
	assert.Empty(t, first.DuplicateOf)

	output, err = executeCompile(t, "json", vis, "--db", db)
	require.NoError(t, err)
	second := decodeCompile(t, output).Data.Files[0]
	assert.Equal(t, int64(2), second.Seq)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, first.CompilationID, second.DuplicateOf)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	defs, err := st.ReadDefinitions(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, sumID(), defs[0].Identifier)

	c, err := st.ReadCompilation(context.Background(), first.CompilationID)
	require.NoError(t, err)
	assert.Equal(t, vis, c.Source)
	assert.Equal(t, "md5", c.HashName)
}

// requireSelfContained checks that every reference in req resolves to a
// definition carried by req or to a known identifier.
func requireSelfContained(t *testing.T, defs []ir.MetricDefinition, known ...string) {
	t.Helper()
	carried := make(map[string]bool, len(defs)+len(known))
	for _, id := range known {
		carried[id] = true
	}
	for _, d := range defs {
		for _, ref := range d.References() {
			assert.True(t, carried[ref], "%s references %s before or without its definition", d.Identifier, ref)
		}
		carried[d.Identifier] = true
	}
}

func TestCompileRegistryDefinitionsTravelWithRequest(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "metricc.db")
	vis := writeFile(t, dir, "vis.yaml", sumVisualization)

	st, err := store.Open(db)
	require.NoError(t, err)
	_, err = st.WriteDefinitions(context.Background(), []ir.MetricDefinition{
		{Identifier: "total", Expression: "SELECT SUM([/gdc/md/p/obj/11])"},
		{Identifier: "half_total", Expression: "SELECT {total} / 2"},
	})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	defs := writeFile(t, dir, "defs.yaml", `
- identifier: quarter_total
  expression: SELECT {half_total} / 2
`)

	output, err := executeCompile(t, "json", vis, "--definitions", defs, "--db", db)
	require.NoError(t, err)

	req := decodeCompile(t, output).Data.Files[0].Request
	require.NotNil(t, req)
	ids := make([]string, len(req.Definitions))
	for i, d := range req.Definitions {
		ids[i] = d.Identifier
	}
	assert.ElementsMatch(t, []string{sumID(), "quarter_total", "half_total", "total"}, ids)
	requireSelfContained(t, req.Definitions)
}

func TestCompileRegistryIdentifiersAreNotKnown(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "metricc.db")
	vis := writeFile(t, dir, "vis.yaml", sumVisualization)

	// Record the sum measure's generated definition.
	_, err := executeCompile(t, "json", vis, "--db", db)
	require.NoError(t, err)

	// A later compilation without the sum measure still gets the stored
	// definition it references, so nothing dangles.
	other := writeFile(t, dir, "other.yaml", `
buckets:
  - localIdentifier: measures
    items:
      - measure:
          localIdentifier: m1
          objectUri: /gdc/md/p/obj/12
`)
	defs := writeFile(t, dir, "defs.yaml", "- identifier: doubled\n  expression: SELECT {"+sumID()+"} * 2\n")

	output, err := executeCompile(t, "json", other, "--definitions", defs, "--db", db)
	require.NoError(t, err)
	req := decodeCompile(t, output).Data.Files[0].Request
	require.NotNil(t, req)
	require.Len(t, req.Definitions, 2)
	assert.Equal(t, sumID(), req.Definitions[0].Identifier)
	assert.Equal(t, "doubled", req.Definitions[1].Identifier)
	requireSelfContained(t, req.Definitions)

	// Without the registry the same reference is unresolved.
	output, err = executeCompile(t, "json", other, "--definitions", defs)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "UNSATISFIABLE_DEPENDENCY", decodeCompile(t, output).Data.Files[0].Error.Code)
}

func TestCompileOutputToFile(t *testing.T) {
	dir := t.TempDir()
	vis := writeFile(t, dir, "vis.yaml", sumVisualization)
	outputFile := filepath.Join(dir, "requests.json")

	output, err := executeCompile(t, "text", vis, "--output", outputFile)
	require.NoError(t, err)
	assert.Contains(t, output, "Wrote requests to "+outputFile)

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result CompileResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Files, 1)
	assert.Equal(t, []string{sumID()}, result.Files[0].Request.Columns)
}

func TestCompileMetricsFile(t *testing.T) {
	dir := t.TempDir()
	vis := writeFile(t, dir, "vis.yaml", sumVisualization)
	broken := writeFile(t, dir, "broken.yaml", categoryVisualization)
	metricsFile := filepath.Join(dir, "metricc.prom")

	_, err := executeCompile(t, "text", vis, broken, "--metrics-file", metricsFile, "--db", filepath.Join(dir, "metricc.db"))
	require.Error(t, err)

	data, err := os.ReadFile(metricsFile)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `metricc_compile_measures_total{strategy="derived"} 1`)
	assert.Contains(t, text, `metricc_compile_failures_total{code="MISSING_ATTRIBUTE"} 1`)
	assert.Contains(t, text, "metricc_store_definitions_total 1")
}

func TestCompileVerboseOutput(t *testing.T) {
	vis := writeFile(t, t.TempDir(), "vis.yaml", sumVisualization)

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text", Verbose: true}
	cmd := NewCompileCommand(rootOpts)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs([]string{vis})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, stderr.String(), "SELECT SUM([/gdc/md/p/obj/10])")
	assert.NotContains(t, stdout.String(), "SELECT SUM")
}
