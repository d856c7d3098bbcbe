package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/citycycle/internal/ir"
	"github.com/roach88/citycycle/internal/table"
)

// maxWatchRetries bounds optimistic-lock retries for cell and range writes.
const maxWatchRetries = 5

// Store is a table.Store backed by Redis lists.
// Safe for concurrent use; a single cycle writer is still assumed.
type Store struct {
	rdb       *redis.Client
	namespace string
}

var _ table.Store = (*Store)(nil)

// New creates a store for the given namespace.
// Returns an error if namespace is empty.
func New(opts *redis.Options, namespace string) (*Store, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}
	return &Store{
		rdb:       redis.NewClient(opts),
		namespace: namespace,
	}, nil
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Ping verifies Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Collections lists collection names in sorted order.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	names, err := s.rdb.SMembers(ctx, CollectionsKey(s.namespace)).Result()
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// ReadAll implements table.Store.
func (s *Store) ReadAll(ctx context.Context, collection string) (table.Sheet, error) {
	exists, err := s.exists(ctx, s.rdb, collection)
	if err != nil {
		return table.Sheet{}, fmt.Errorf("read %s: %w", collection, err)
	}
	if !exists {
		return table.Sheet{}, fmt.Errorf("read %s: %w", collection, table.ErrNotFound)
	}

	raw, err := s.rdb.LRange(ctx, s.key(collection), 0, -1).Result()
	if err != nil {
		return table.Sheet{}, fmt.Errorf("read %s: %w", collection, err)
	}
	grid, err := decodeRows(raw, 1)
	if err != nil {
		return table.Sheet{}, fmt.Errorf("read %s: %w", collection, err)
	}
	return table.NewSheet(collection, grid), nil
}

// LastRow implements table.Store.
func (s *Store) LastRow(ctx context.Context, collection string) (int, error) {
	n, err := s.rdb.LLen(ctx, s.key(collection)).Result()
	if err != nil {
		return 0, fmt.Errorf("last row %s: %w", collection, err)
	}
	return int(n), nil
}

// Append implements table.Store.
func (s *Store) Append(ctx context.Context, collection string, rows []ir.Row) error {
	encoded, err := encodeRows(rows)
	if err != nil {
		return fmt.Errorf("append %s: %w", collection, err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, CollectionsKey(s.namespace), collection)
		if len(encoded) > 0 {
			pipe.RPush(ctx, s.key(collection), encoded...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append %s: %w", collection, err)
	}
	return nil
}

// Replace implements table.Store.
func (s *Store) Replace(ctx context.Context, collection string, rows []ir.Row) error {
	encoded, err := encodeRows(rows)
	if err != nil {
		return fmt.Errorf("replace %s: %w", collection, err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, CollectionsKey(s.namespace), collection)
		pipe.Del(ctx, s.key(collection))
		if len(encoded) > 0 {
			pipe.RPush(ctx, s.key(collection), encoded...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace %s: %w", collection, err)
	}
	return nil
}

// WriteCell implements table.Store.
func (s *Store) WriteCell(ctx context.Context, collection string, row, col int, value ir.Value) error {
	return s.WriteRange(ctx, collection, row, col, []ir.Row{{value}})
}

// WriteRange implements table.Store.
func (s *Store) WriteRange(ctx context.Context, collection string, row, col int, values []ir.Row) error {
	if err := table.ValidateAddress(row, col); err != nil {
		return fmt.Errorf("write range %s: %w", collection, err)
	}

	key := s.key(collection)
	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			return s.writeRange(ctx, tx, collection, row, col, values)
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return fmt.Errorf("write range %s: %w", collection, err)
		}
		return nil
	}
	return fmt.Errorf("write range %s: %w after %d attempts", collection, redis.TxFailedErr, maxWatchRetries)
}

func (s *Store) writeRange(ctx context.Context, tx *redis.Tx, collection string, row, col int, values []ir.Row) error {
	exists, err := s.exists(ctx, tx, collection)
	if err != nil {
		return err
	}
	if !exists {
		return table.ErrNotFound
	}

	key := s.key(collection)
	n, err := tx.LLen(ctx, key).Result()
	if err != nil {
		return err
	}
	last := int(n)

	var existing []ir.Row
	if row <= last && len(values) > 0 {
		raw, err := tx.LRange(ctx, key, int64(row-1), int64(row-1+len(values)-1)).Result()
		if err != nil {
			return err
		}
		if existing, err = decodeRows(raw, row); err != nil {
			return err
		}
	}

	var sets []string
	var pushes []any
	for r := last + 1; r < row; r++ {
		pushes = append(pushes, "[]")
	}
	for i, vals := range values {
		var current ir.Row
		if i < len(existing) {
			current = existing[i]
		}
		data, err := ir.MarshalRow(table.Splice(current, col, vals))
		if err != nil {
			return fmt.Errorf("row %d: %w", row+i, err)
		}
		if row+i <= last {
			sets = append(sets, string(data))
		} else {
			pushes = append(pushes, string(data))
		}
	}

	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, data := range sets {
			pipe.LSet(ctx, key, int64(row-1+i), data)
		}
		if len(pushes) > 0 {
			pipe.RPush(ctx, key, pushes...)
		}
		return nil
	})
	return err
}

func (s *Store) key(collection string) string {
	return CollectionKey(s.namespace, collection)
}

// memberChecker is satisfied by *redis.Client and *redis.Tx.
type memberChecker interface {
	SIsMember(ctx context.Context, key string, member interface{}) *redis.BoolCmd
}

func (s *Store) exists(ctx context.Context, c memberChecker, collection string) (bool, error) {
	return c.SIsMember(ctx, CollectionsKey(s.namespace), collection).Result()
}

func encodeRows(rows []ir.Row) ([]any, error) {
	out := make([]any, len(rows))
	for i, row := range rows {
		data, err := ir.MarshalRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out[i] = string(data)
	}
	return out, nil
}

// decodeRows decodes list entries; first is the sheet row number of raw[0].
func decodeRows(raw []string, first int) ([]ir.Row, error) {
	rows := make([]ir.Row, len(raw))
	for i, data := range raw {
		row, err := ir.UnmarshalRow([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", first+i, err)
		}
		rows[i] = row
	}
	return rows, nil
}
