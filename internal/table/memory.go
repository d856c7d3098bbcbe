package table

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/citycycle/internal/ir"
)

// Memory is an in-process Store. It backs tests, the harness, and dry runs
// that have no durable store configured.
//
// Memory is safe for concurrent use.
type Memory struct {
	mu          sync.Mutex
	collections map[string][]ir.Row
	failures    map[string]error
	writes      int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string][]ir.Row),
		failures:    make(map[string]error),
	}
}

// Seed replaces a collection's grid directly, bypassing write accounting.
// Used by tests and the harness to set up history.
func (m *Memory) Seed(collection string, grid []ir.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[collection] = ir.CloneRows(grid)
}

// FailWrites makes every subsequent write to collection return err.
// Pass nil to clear.
func (m *Memory) FailWrites(collection string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, collection)
		return
	}
	m.failures[collection] = err
}

// Writes returns the number of successful write calls.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// Collections lists collection names in sorted order.
func (m *Memory) Collections() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Grid returns a copy of a collection including its header row.
func (m *Memory) Grid(collection string) []ir.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ir.CloneRows(m.collections[collection])
}

// ReadAll implements Store.
func (m *Memory) ReadAll(ctx context.Context, collection string) (Sheet, error) {
	if err := ctx.Err(); err != nil {
		return Sheet{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	grid, ok := m.collections[collection]
	if !ok {
		return Sheet{}, fmt.Errorf("read %s: %w", collection, ErrNotFound)
	}
	return NewSheet(collection, grid), nil
}

// WriteCell implements Store.
func (m *Memory) WriteCell(ctx context.Context, collection string, row, col int, value ir.Value) error {
	return m.WriteRange(ctx, collection, row, col, []ir.Row{{value}})
}

// WriteRange implements Store.
func (m *Memory) WriteRange(ctx context.Context, collection string, row, col int, values []ir.Row) error {
	if err := ValidateAddress(row, col); err != nil {
		return err
	}
	return m.write(ctx, collection, false, func(grid []ir.Row) []ir.Row {
		return SetRange(grid, row, col, ir.CloneRows(values))
	})
}

// Append implements Store.
func (m *Memory) Append(ctx context.Context, collection string, rows []ir.Row) error {
	return m.write(ctx, collection, true, func(grid []ir.Row) []ir.Row {
		return append(grid, ir.CloneRows(rows)...)
	})
}

// Replace implements Store.
func (m *Memory) Replace(ctx context.Context, collection string, rows []ir.Row) error {
	return m.write(ctx, collection, true, func([]ir.Row) []ir.Row {
		return ir.CloneRows(rows)
	})
}

// LastRow implements Store.
func (m *Memory) LastRow(ctx context.Context, collection string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.collections[collection]), nil
}

func (m *Memory) write(ctx context.Context, collection string, create bool, apply func([]ir.Row) []ir.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failures[collection]; err != nil {
		return fmt.Errorf("write %s: %w", collection, err)
	}

	grid, ok := m.collections[collection]
	if !ok && !create {
		return fmt.Errorf("write %s: %w", collection, ErrNotFound)
	}

	m.collections[collection] = apply(grid)
	m.writes++
	return nil
}
