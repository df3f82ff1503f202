package rankstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps lists in the ranked_items table, one row per rank.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps pool. Run db.RunMigrations first.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Backend implements Named.
func (s *PostgresStore) Backend() string { return "postgres" }

// Fetch implements Store.
func (s *PostgresStore) Fetch(ctx context.Context, window string) ([]string, error) {
	if err := CheckWindow(window); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT item FROM ranked_items WHERE window_name = $1 ORDER BY rank`, window)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", window, err)
	}

	items, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", window, err)
	}
	if items == nil {
		items = []string{}
	}
	return items, nil
}

// Put implements Store. The old list is replaced in a single transaction.
func (s *PostgresStore) Put(ctx context.Context, window string, items []string) error {
	if err := CheckWindow(window); err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM ranked_items WHERE window_name = $1`, window); err != nil {
			return fmt.Errorf("clearing %s: %w", window, err)
		}

		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"ranked_items"},
			[]string{"window_name", "rank", "item"},
			pgx.CopyFromSlice(len(items), func(i int) ([]any, error) {
				return []any{window, i, items[i]}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("writing %s: %w", window, err)
		}
		return nil
	})
}
