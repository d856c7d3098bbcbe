package store

import (
	"path/filepath"
	"testing"
)

// setupTestStore creates a fresh store in a temp directory and closes it
// when the test ends.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
