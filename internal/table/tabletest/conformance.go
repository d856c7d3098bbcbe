// Package tabletest provides a conformance suite that every table.Store
// implementation runs from its own tests.
package tabletest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/citycycle/internal/ir"
	"github.com/roach88/citycycle/internal/table"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) table.Store

// Run exercises the table.Store contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing collection", func(t *testing.T) {
		st := newStore(t)

		_, err := st.ReadAll(ctx, "Nope")
		assert.ErrorIs(t, err, table.ErrNotFound)

		last, err := st.LastRow(ctx, "Nope")
		require.NoError(t, err)
		assert.Equal(t, 0, last)

		err = st.WriteCell(ctx, "Nope", 2, 1, ir.Text("x"))
		assert.ErrorIs(t, err, table.ErrNotFound)

		sheet, err := table.Load(ctx, st, "Nope")
		require.NoError(t, err)
		assert.False(t, sheet.Exists)
		assert.Equal(t, 0, sheet.LastRow())
	})

	t.Run("append creates and preserves order", func(t *testing.T) {
		st := newStore(t)

		require.NoError(t, st.Append(ctx, "Arc_Ledger", []ir.Row{ir.RowOf("ArcId", "Phase")}))
		require.NoError(t, st.Append(ctx, "Arc_Ledger", []ir.Row{
			ir.RowOf("A1", "early"),
			ir.RowOf("A1", "rising"),
		}))
		require.NoError(t, st.Append(ctx, "Arc_Ledger", []ir.Row{ir.RowOf("A2", "peak")}))

		sheet, err := st.ReadAll(ctx, "Arc_Ledger")
		require.NoError(t, err)
		assert.True(t, sheet.Exists)
		assert.Equal(t, []string{"ArcId", "Phase"}, sheet.Header)
		require.Len(t, sheet.Rows, 3)
		assert.Equal(t, ir.RowOf("A1", "early"), sheet.Rows[0])
		assert.Equal(t, ir.RowOf("A1", "rising"), sheet.Rows[1])
		assert.Equal(t, ir.RowOf("A2", "peak"), sheet.Rows[2])

		last, err := st.LastRow(ctx, "Arc_Ledger")
		require.NoError(t, err)
		assert.Equal(t, 4, last)
	})

	t.Run("replace overwrites whole collection", func(t *testing.T) {
		st := newStore(t)

		require.NoError(t, st.Append(ctx, "Cooldowns", []ir.Row{
			ir.RowOf("Domain", "CyclesRemaining"),
			ir.RowOf("civic", 2),
			ir.RowOf("sports", 1),
		}))
		require.NoError(t, st.Replace(ctx, "Cooldowns", []ir.Row{
			ir.RowOf("Domain", "CyclesRemaining"),
			ir.RowOf("media", 3),
		}))

		sheet, err := st.ReadAll(ctx, "Cooldowns")
		require.NoError(t, err)
		require.Len(t, sheet.Rows, 1)
		assert.Equal(t, ir.RowOf("media", 3), sheet.Rows[0])

		last, err := st.LastRow(ctx, "Cooldowns")
		require.NoError(t, err)
		assert.Equal(t, 2, last)
	})

	t.Run("cell and range writes pad", func(t *testing.T) {
		st := newStore(t)

		require.NoError(t, st.Append(ctx, "Hooks", []ir.Row{
			ir.RowOf("HookId", "Severity"),
			ir.RowOf("H1", 5),
		}))

		require.NoError(t, st.WriteCell(ctx, "Hooks", 2, 2, ir.Int(4)))
		require.NoError(t, st.WriteCell(ctx, "Hooks", 2, 4, ir.Bool(true)))
		require.NoError(t, st.WriteRange(ctx, "Hooks", 4, 1, []ir.Row{
			ir.RowOf("H3", 7),
		}))

		sheet, err := st.ReadAll(ctx, "Hooks")
		require.NoError(t, err)
		require.Len(t, sheet.Rows, 3)
		assert.Equal(t, ir.Row{ir.Text("H1"), ir.Int(4), ir.Null{}, ir.Bool(true)}, sheet.Rows[0])
		assert.Empty(t, sheet.Rows[1])
		assert.Equal(t, ir.RowOf("H3", 7), sheet.Rows[2])
	})

	t.Run("invalid address", func(t *testing.T) {
		st := newStore(t)
		require.NoError(t, st.Append(ctx, "Hooks", []ir.Row{ir.RowOf("HookId")}))

		err := st.WriteCell(ctx, "Hooks", 0, 1, ir.Int(1))
		assert.ErrorIs(t, err, table.ErrInvalidAddress)
	})

	t.Run("values round trip", func(t *testing.T) {
		st := newStore(t)
		row := ir.Row{ir.Text("F7"), ir.Float(6.5), ir.Float(9), ir.Int(10), ir.Bool(false), ir.Null{}}

		require.NoError(t, st.Append(ctx, "Arc_Ledger", []ir.Row{ir.RowOf("h"), row}))

		sheet, err := st.ReadAll(ctx, "Arc_Ledger")
		require.NoError(t, err)
		require.Len(t, sheet.Rows, 1)
		assert.Equal(t, row, sheet.Rows[0])
	})
}
