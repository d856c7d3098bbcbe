package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/citycycle/internal/ir"
	"github.com/roach88/citycycle/internal/table"
)

// ReadAll implements table.Store.
// Rows are returned in row_num order; the first row becomes the header.
func (s *Store) ReadAll(ctx context.Context, collection string) (table.Sheet, error) {
	exists, err := collectionExists(ctx, s.db, collection)
	if err != nil {
		return table.Sheet{}, fmt.Errorf("read %s: %w", collection, err)
	}
	if !exists {
		return table.Sheet{}, fmt.Errorf("read %s: %w", collection, table.ErrNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM rows
		WHERE collection = ?
		ORDER BY row_num ASC
	`, collection)
	if err != nil {
		return table.Sheet{}, fmt.Errorf("read %s: %w", collection, err)
	}
	defer rows.Close()

	var grid []ir.Row
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return table.Sheet{}, fmt.Errorf("read %s: scan: %w", collection, err)
		}
		row, err := ir.UnmarshalRow([]byte(data))
		if err != nil {
			return table.Sheet{}, fmt.Errorf("read %s: row %d: %w", collection, len(grid)+1, err)
		}
		grid = append(grid, row)
	}
	if err := rows.Err(); err != nil {
		return table.Sheet{}, fmt.Errorf("read %s: iterate: %w", collection, err)
	}

	return table.NewSheet(collection, grid), nil
}

// LastRow implements table.Store.
func (s *Store) LastRow(ctx context.Context, collection string) (int, error) {
	n, err := lastRow(ctx, s.db, collection)
	if err != nil {
		return 0, fmt.Errorf("last row %s: %w", collection, err)
	}
	return n, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func collectionExists(ctx context.Context, q querier, collection string) (bool, error) {
	var name string
	err := q.QueryRowContext(ctx, `SELECT name FROM collections WHERE name = ?`, collection).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func lastRow(ctx context.Context, q querier, collection string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(row_num), 0) FROM rows WHERE collection = ?
	`, collection).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func readRow(ctx context.Context, q querier, collection string, rowNum int) (ir.Row, error) {
	var data string
	err := q.QueryRowContext(ctx, `
		SELECT data FROM rows WHERE collection = ? AND row_num = ?
	`, collection, rowNum).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ir.UnmarshalRow([]byte(data))
}
