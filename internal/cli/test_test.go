package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const harnessScenarios = "../harness/testdata/scenarios"

// copyScenario copies a harness scenario into dir.
func copyScenario(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(harnessScenarios, name))
	require.NoError(t, err)
	return writeFile(t, dir, name, string(data))
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, _, err := execute(t, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, _, err := execute(t, "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, _, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "test", t.TempDir())
	require.NoError(t, err)

	var result TestResult
	resp := decodeData(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, result.Total)
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	out, _, err := execute(t, "test", harnessScenarios)
	require.NoError(t, err, out)
	assert.Contains(t, out, "harbor_two_cycles")
	assert.Contains(t, out, "0 failed")
	assert.Contains(t, out, "All scenarios passed")
}

func TestTestCommandFilterJSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "test", harnessScenarios, "--filter", "hook_*")
	require.NoError(t, err)

	var result TestResult
	decodeData(t, out, &result)
	require.Equal(t, 1, result.Total)
	assert.Equal(t, "hook_expiry", result.Scenarios[0].Name)
	assert.True(t, result.Scenarios[0].Pass)
	assert.Empty(t, result.Scenarios[0].Golden)
}

func TestTestCommandGoldenUpdateAndMatch(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir, "harbor_two_cycles.yaml")

	out, _, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "harbor_two_cycles (golden updated)")

	// The CLI renders the same plan the harness golden test pins.
	written, err := os.ReadFile(filepath.Join(dir, "golden", "harbor_two_cycles.golden"))
	require.NoError(t, err)
	pinned, err := os.ReadFile("../harness/testdata/golden/harbor_two_cycles.golden")
	require.NoError(t, err)
	assert.Equal(t, string(pinned), string(written))

	out, _, err = execute(t, "--format", "json", "test", dir)
	require.NoError(t, err)
	var result TestResult
	decodeData(t, out, &result)
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "match", result.Scenarios[0].Golden)
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir, "hook_expiry.yaml")
	writeFile(t, dir, "golden/hook_expiry.golden", "scenario hook_expiry\n")

	out, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "does not match golden file")
	assert.Contains(t, out, "1 failed")
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "wrong.yaml", `
name: wrong
description: a cooldown expectation that does not hold
cycles:
  - cycle: 1
    steps:
      - cooldown: {domain: crime, severity: low}
    expect:
      - {type: cooldown, domain: crime, remaining: 4}
`)
	writeFile(t, dir, "broken.yaml", "name: [")

	out, _, err := execute(t, "--format", "json", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result TestResult
	resp := decodeData(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 2, result.Failed)

	byName := map[string]ScenarioResult{}
	for _, s := range result.Scenarios {
		byName[s.Name] = s
	}
	require.Contains(t, byName, "wrong")
	assert.Contains(t, byName["wrong"].Errors[0], "expected 4 remaining, got 1 remaining")
	require.Contains(t, byName, "broken.yaml")
	assert.Contains(t, byName["broken.yaml"].Errors[0], "failed to load scenario")
}

func TestFindScenarioFiles(t *testing.T) {
	files, err := findScenarioFiles(harnessScenarios, "")
	require.NoError(t, err)
	assert.Len(t, files, 6)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	files, err := findScenarioFiles(harnessScenarios, "*_cycles")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "harbor_two_cycles.yaml", filepath.Base(files[0]))

	_, err = findScenarioFiles(harnessScenarios, "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestFindScenarioFilesSubdirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "")
	writeFile(t, dir, "nested/b.yml", "")
	writeFile(t, dir, "golden/a.golden", "")

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestGoldenFilePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"scenarios/harbor.yaml", "scenarios/golden/harbor.golden"},
		{"/abs/path/test.yml", "/abs/path/golden/test.golden"},
		{"simple.yaml", "golden/simple.golden"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, goldenFilePath(tt.input))
		})
	}
}
