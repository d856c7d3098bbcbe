package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// harborScript drives two cycles: an arc, a hook and a cooldown in cycle
// 1, then an arc advance and a pickup in cycle 2.
const harborScript = `
name: harbor
description: two scripted cycles
cycles:
  - cycle: 1
    steps:
      - create_arc: {id: CIVIC-PIER, type: civic, neighborhood: Harbor, domain: civic, summary: Pier vote, entities: [Mayor Ruiz], tension: 2.5}
      - create_hook: {id: HOOK-PIER, type: rumor, summary: Pier lights, priority: 2, severity: 3}
      - cooldown: {domain: crime, severity: high}
  - cycle: 2
    steps:
      - advance_arc: {id: CIVIC-PIER, pressure: 1}
      - pickup_hook: {id: HOOK-PIER}
`

// writeFile writes body to name under dir and returns the path.
func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

// sqliteConfig writes a config selecting a fresh SQLite database.
func sqliteConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return writeFile(t, dir, "citycycle.yaml", fmt.Sprintf(`version: "1"
store:
  driver: sqlite
  path: %q
logging:
  level: error
`, filepath.Join(dir, "city.db")))
}

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// decodeData decodes a JSON CLIResponse and its data payload into v.
func decodeData(t *testing.T, out string, v any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)
	if v != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, v))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}
