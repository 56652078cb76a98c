package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/metricc/internal/harness"
)

const scenariosDir = "../../testdata/scenarios"

func executeTest(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: format}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

const failingScenario = `
name: wrong_columns
description: Expects a column the request does not have
visualization:
  buckets:
    - localIdentifier: measures
      items:
        - measure:
            localIdentifier: m1
            objectUri: /gdc/md/p/obj/10
attributes: {}
assertions:
  - type: columns
    columns: [/gdc/md/p/obj/99]
`

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := executeTest(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	output, err := executeTest(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory")
	assert.Contains(t, output, "Error ["+ErrCodeReadFailed+"]")

	output, err = executeTest(t, "json", "/nonexistent/scenarios")
	require.Error(t, err)
	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(output), &response))
	assert.Equal(t, "error", response.Status)
	assert.Equal(t, ErrCodeReadFailed, response.Error.Code)
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	output, err := executeTest(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, output, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	output, err := executeTest(t, "json", t.TempDir())
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(output), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestCommandScenarios(t *testing.T) {
	output, err := executeTest(t, "text", scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, output, "✓ filtered_sum_by_account")
	assert.Contains(t, output, "✓ All scenarios passed")
}

func TestTestCommandFilterJSON(t *testing.T) {
	output, err := executeTest(t, "json", scenariosDir, "--filter", "contribution_*")
	require.NoError(t, err)

	var response struct {
		Status string              `json:"status"`
		Data   harness.SuiteResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &response))
	assert.Equal(t, "ok", response.Status)
	require.Equal(t, 1, response.Data.Total)
	assert.Equal(t, "contribution_and_pop_by_year", response.Data.Scenarios[0].Name)
	assert.Equal(t, "match", response.Data.Scenarios[0].Golden)
}

func TestTestCommandFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "wrong_columns.yaml", failingScenario)

	output, err := executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "✗ wrong_columns")
	assert.Contains(t, output, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommandFailureJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "wrong_columns.yaml", failingScenario)

	output, err := executeTest(t, "json", dir)
	require.Error(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal([]byte(output), &response))
	assert.Equal(t, "error", response.Status)
	require.NotNil(t, response.Error)
	assert.Equal(t, ErrCodeTestFailed, response.Error.Code)
}

func TestTestCommandUpdate(t *testing.T) {
	dir := t.TempDir()
	src, err := os.ReadFile(filepath.Join(scenariosDir, "filtered_sum_by_account.yaml"))
	require.NoError(t, err)
	writeFile(t, dir, "filtered_sum_by_account.yaml", string(src))

	output, err := executeTest(t, "text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, output, "✓ filtered_sum_by_account (golden updated)")

	updated, err := os.ReadFile(filepath.Join(dir, "golden", "filtered_sum_by_account.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(scenariosDir, "golden", "filtered_sum_by_account.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(updated))
}

func TestTestHelpText(t *testing.T) {
	output, err := executeTest(t, "text", "--help")
	require.NoError(t, err)

	assert.Contains(t, output, "conformance")
	assert.Contains(t, output, "--update")
	assert.Contains(t, output, "--filter")
	assert.Contains(t, output, "scenarios-dir")
}
