package redisstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/citycycle/internal/ir"
	"github.com/roach88/citycycle/internal/table"
	"github.com/roach88/citycycle/internal/table/tabletest"
)

// setupTestStore creates a store connected to a fresh miniredis instance.
func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	s, err := New(&redis.Options{Addr: mr.Addr()}, "test-city")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s, mr
}

func TestStore_Conformance(t *testing.T) {
	tabletest.Run(t, func(t *testing.T) table.Store {
		s, _ := setupTestStore(t)
		return s
	})
}

func TestNew(t *testing.T) {
	t.Run("creates store successfully", func(t *testing.T) {
		s, _ := setupTestStore(t)
		assert.NoError(t, s.Ping(context.Background()))
	})

	t.Run("rejects empty namespace", func(t *testing.T) {
		_, err := New(&redis.Options{Addr: "localhost:6379"}, "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "namespace cannot be empty")
	})
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "citycycle:test-city:collection:Arc_Ledger", CollectionKey("test-city", "Arc_Ledger"))
	assert.Equal(t, "citycycle:test-city:collections", CollectionsKey("test-city"))
}

func TestAppend_StoresCanonicalJSON(t *testing.T) {
	s, mr := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "Hooks", []ir.Row{
		ir.RowOf("HookId", "Severity"),
		ir.RowOf("H1", 5),
	}))

	items, err := mr.List(CollectionKey("test-city", "Hooks"))
	require.NoError(t, err)
	assert.Equal(t, []string{`["HookId","Severity"]`, `["H1",5]`}, items)

	ok, err := mr.SIsMember(CollectionsKey("test-city"), "Hooks")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReplace_EmptyKeepsCollection(t *testing.T) {
	s, _ := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "Cooldowns", []ir.Row{ir.RowOf("Domain"), ir.RowOf("civic")}))
	require.NoError(t, s.Replace(ctx, "Cooldowns", nil))

	sheet, err := s.ReadAll(ctx, "Cooldowns")
	require.NoError(t, err)
	assert.True(t, sheet.Exists)
	assert.Empty(t, sheet.Rows)

	names, err := s.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cooldowns"}, names)
}

func TestNamespacesAreIsolated(t *testing.T) {
	s1, mr := setupTestStore(t)
	ctx := context.Background()

	s2, err := New(&redis.Options{Addr: mr.Addr()}, "other-city")
	require.NoError(t, err)
	t.Cleanup(func() { s2.Close() })

	require.NoError(t, s1.Append(ctx, "Hooks", []ir.Row{ir.RowOf("HookId")}))

	_, err = s2.ReadAll(ctx, "Hooks")
	assert.ErrorIs(t, err, table.ErrNotFound)
}

func TestReadAll_CorruptRow(t *testing.T) {
	s, mr := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "Hooks", []ir.Row{ir.RowOf("HookId")}))
	_, err := mr.Push(CollectionKey("test-city", "Hooks"), "{not json")
	require.NoError(t, err)

	_, err = s.ReadAll(ctx, "Hooks")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}
