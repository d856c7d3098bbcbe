package cli

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunScriptedCycles(t *testing.T) {
	cfg := sqliteConfig(t)
	script := writeFile(t, t.TempDir(), "harbor.yaml", harborScript)

	out, _, err := execute(t, "--config", cfg, "run", "--script", script)
	require.NoError(t, err)
	assert.Contains(t, out, "Cycle 1 (live) complete")
	assert.Contains(t, out, "1 live")

	out, _, err = execute(t, "--config", cfg, "--format", "json", "run", "--script", script)
	require.NoError(t, err)

	var cycle CycleOutput
	resp := decodeData(t, out, &cycle)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, cycle.Cycle)
	assert.Equal(t, "live", cycle.Mode)
	assert.NotEmpty(t, cycle.RunID)
	assert.Equal(t, 1, cycle.LiveArcs)
	assert.Equal(t, 1, cycle.ActiveHooks)
	assert.Equal(t, map[string]int{"crime": 2}, cycle.Cooldowns)
	assert.Empty(t, cycle.Failed)
}

func TestRunWithoutScript(t *testing.T) {
	cfg := sqliteConfig(t)

	out, _, err := execute(t, "--config", cfg, "--format", "json", "run", "--cycle", "7")
	require.NoError(t, err)

	var cycle CycleOutput
	decodeData(t, out, &cycle)
	assert.Equal(t, 7, cycle.Cycle)
	assert.Equal(t, 0, cycle.LiveArcs)
	assert.Positive(t, cycle.Appended)

	// The next run continues after the logged cycle.
	out, _, err = execute(t, "--config", cfg, "--format", "json", "run")
	require.NoError(t, err)
	decodeData(t, out, &cycle)
	assert.Equal(t, 8, cycle.Cycle)
}

func TestRunDryRunWritesNothing(t *testing.T) {
	cfg := sqliteConfig(t)
	script := writeFile(t, t.TempDir(), "harbor.yaml", harborScript)

	out, _, err := execute(t, "--config", cfg, "--format", "json", "run", "--script", script, "--dry-run")
	require.NoError(t, err)

	var cycle CycleOutput
	decodeData(t, out, &cycle)
	assert.Equal(t, 1, cycle.Cycle)
	assert.Equal(t, "dry-run", cycle.Mode)
	assert.Positive(t, cycle.Calls)

	out, _, err = execute(t, "--config", cfg, "--format", "json", "status")
	require.NoError(t, err)
	var status StatusResult
	decodeData(t, out, &status)
	assert.Equal(t, 0, status.LastCycle)
	assert.Empty(t, status.LiveArcs)
}

func TestRunCycleFailure(t *testing.T) {
	cfg := sqliteConfig(t)
	script := writeFile(t, t.TempDir(), "bad.yaml", `
name: bad
description: picks up a hook that does not exist
cycles:
  - cycle: 1
    steps:
      - pickup_hook: {id: NOPE}
`)

	out, _, err := execute(t, "--config", cfg, "--format", "json", "run", "--script", script)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "cycle 1 failed")

	resp := decodeData(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_GENERATOR", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "hook not found")

	// Nothing was written.
	out, _, err = execute(t, "--config", cfg, "--format", "json", "status")
	require.NoError(t, err)
	var status StatusResult
	decodeData(t, out, &status)
	assert.Equal(t, 0, status.LastCycle)
}

func TestRunInvalidCycle(t *testing.T) {
	cfg := sqliteConfig(t)

	_, _, err := execute(t, "--config", cfg, "run", "--cycle=-2")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "INVALID_CYCLE")
}

func TestRunMissingScript(t *testing.T) {
	cfg := sqliteConfig(t)

	_, _, err := execute(t, "--config", cfg, "run", "--script", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load script")
}

func TestRunCalendarFlags(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "citycycle.yaml", fmt.Sprintf(`version: "1"
store:
  driver: sqlite
  path: %q
cooldowns:
  rules:
    - holiday: Harvest Fair
      boost: [festival]
      suppress: [crime]
`, filepath.Join(dir, "city.db")))

	out, _, err := execute(t, "--config", cfg, "--format", "json", "run", "--holiday", "Harvest Fair")
	require.NoError(t, err)

	var cycle CycleOutput
	decodeData(t, out, &cycle)
	assert.Equal(t, []string{"festival"}, cycle.Boosted)
	assert.Equal(t, []string{"crime"}, cycle.Suppressed)
}

func TestRunMemoryStore(t *testing.T) {
	cfg := writeFile(t, t.TempDir(), "citycycle.yaml", `version: "1"
store:
  driver: memory
`)
	script := writeFile(t, t.TempDir(), "harbor.yaml", harborScript)

	out, _, err := execute(t, "--config", cfg, "--format", "json", "run", "--script", script)
	require.NoError(t, err)

	var cycle CycleOutput
	decodeData(t, out, &cycle)
	assert.Equal(t, 1, cycle.Cycle)
	assert.Equal(t, 1, cycle.LiveArcs)
}

func TestRunRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := writeFile(t, t.TempDir(), "citycycle.yaml", fmt.Sprintf(`version: "1"
store:
  driver: redis
  redis:
    addr: %q
    namespace: cli-test
`, mr.Addr()))
	script := writeFile(t, t.TempDir(), "harbor.yaml", harborScript)

	for want := 1; want <= 2; want++ {
		out, _, err := execute(t, "--config", cfg, "--format", "json", "run", "--script", script)
		require.NoError(t, err)
		var cycle CycleOutput
		decodeData(t, out, &cycle)
		assert.Equal(t, want, cycle.Cycle)
	}

	out, _, err := execute(t, "--config", cfg, "--format", "json", "status")
	require.NoError(t, err)
	var status StatusResult
	decodeData(t, out, &status)
	assert.Equal(t, 2, status.LastCycle)
	require.Len(t, status.LiveArcs, 1)
	assert.Equal(t, "rising", status.LiveArcs[0].Phase)
}

func TestRunRedisUnreachable(t *testing.T) {
	cfg := writeFile(t, t.TempDir(), "citycycle.yaml", `version: "1"
store:
  driver: redis
  redis:
    addr: "127.0.0.1:1"
    namespace: cli-test
`)

	_, _, err := execute(t, "--config", cfg, "run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "unreachable")
}
