package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/citycycle/internal/ir"
	"github.com/roach88/citycycle/internal/table"
)

// WriteCell implements table.Store.
func (s *Store) WriteCell(ctx context.Context, collection string, row, col int, value ir.Value) error {
	if err := s.WriteRange(ctx, collection, row, col, []ir.Row{{value}}); err != nil {
		return err
	}
	return nil
}

// WriteRange implements table.Store.
// The whole range is written in one transaction; rows between the current
// end of the collection and the target are filled with empty rows.
func (s *Store) WriteRange(ctx context.Context, collection string, row, col int, values []ir.Row) error {
	if err := table.ValidateAddress(row, col); err != nil {
		return fmt.Errorf("write range %s: %w", collection, err)
	}

	return s.inTx(ctx, "write range", collection, func(tx *sql.Tx) error {
		exists, err := collectionExists(ctx, tx, collection)
		if err != nil {
			return err
		}
		if !exists {
			return table.ErrNotFound
		}

		last, err := lastRow(ctx, tx, collection)
		if err != nil {
			return err
		}
		for n := last + 1; n < row; n++ {
			if err := upsertRow(ctx, tx, collection, n, ir.Row{}); err != nil {
				return err
			}
		}

		for i, vals := range values {
			rowNum := row + i
			existing, err := readRow(ctx, tx, collection, rowNum)
			if err != nil {
				return fmt.Errorf("row %d: %w", rowNum, err)
			}
			if err := upsertRow(ctx, tx, collection, rowNum, table.Splice(existing, col, vals)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Append implements table.Store.
// New rows are numbered from max(row_num)+1 inside the same transaction.
func (s *Store) Append(ctx context.Context, collection string, rows []ir.Row) error {
	return s.inTx(ctx, "append", collection, func(tx *sql.Tx) error {
		if err := ensureCollection(ctx, tx, collection); err != nil {
			return err
		}
		last, err := lastRow(ctx, tx, collection)
		if err != nil {
			return err
		}
		return insertRows(ctx, tx, collection, last+1, rows)
	})
}

// Replace implements table.Store.
func (s *Store) Replace(ctx context.Context, collection string, rows []ir.Row) error {
	return s.inTx(ctx, "replace", collection, func(tx *sql.Tx) error {
		if err := ensureCollection(ctx, tx, collection); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM rows WHERE collection = ?`, collection); err != nil {
			return err
		}
		return insertRows(ctx, tx, collection, 1, rows)
	})
}

// inTx runs fn inside a transaction, wrapping any error with the operation
// and collection name.
func (s *Store) inTx(ctx context.Context, op, collection string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s %s: begin tx: %w", op, collection, err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(tx); err != nil {
		return fmt.Errorf("%s %s: %w", op, collection, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s %s: commit: %w", op, collection, err)
	}
	return nil
}

func ensureCollection(ctx context.Context, tx *sql.Tx, collection string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO collections (name) VALUES (?)
		ON CONFLICT(name) DO NOTHING
	`, collection)
	if err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	return nil
}

func insertRows(ctx context.Context, tx *sql.Tx, collection string, start int, rows []ir.Row) error {
	for i, row := range rows {
		data, err := ir.MarshalRow(row)
		if err != nil {
			return fmt.Errorf("row %d: %w", start+i, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rows (collection, row_num, data) VALUES (?, ?, ?)
		`, collection, start+i, string(data)); err != nil {
			return fmt.Errorf("insert row %d: %w", start+i, err)
		}
	}
	return nil
}

func upsertRow(ctx context.Context, tx *sql.Tx, collection string, rowNum int, row ir.Row) error {
	data, err := ir.MarshalRow(row)
	if err != nil {
		return fmt.Errorf("row %d: %w", rowNum, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO rows (collection, row_num, data) VALUES (?, ?, ?)
		ON CONFLICT(collection, row_num) DO UPDATE SET data = excluded.data
	`, collection, rowNum, string(data))
	if err != nil {
		return fmt.Errorf("upsert row %d: %w", rowNum, err)
	}
	return nil
}
