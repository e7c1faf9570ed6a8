package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgSchema = `CREATE TABLE IF NOT EXISTS ledger_kv (
	kv_key     TEXT PRIMARY KEY,
	kv_value   TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Documents are stored as TEXT so the bytes read back are the bytes written.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the key-value table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var v string
	err := s.pool.QueryRow(ctx,
		`SELECT kv_value FROM ledger_kv WHERE kv_key = $1`, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return []byte(v), nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	if _, err := s.pool.Exec(ctx, upsertSQL, key, string(value)); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM ledger_kv WHERE kv_key = $1`, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Commit(ctx context.Context, b *Batch) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, w := range b.Writes() {
		if w.Value == nil {
			_, err = tx.Exec(ctx, `DELETE FROM ledger_kv WHERE kv_key = $1`, w.Key)
		} else {
			_, err = tx.Exec(ctx, upsertSQL, w.Key, string(w.Value))
		}
		if err != nil {
			return fmt.Errorf("commit %s: %w", w.Key, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const upsertSQL = `INSERT INTO ledger_kv (kv_key, kv_value, updated_at)
	VALUES ($1, $2, now())
	ON CONFLICT (kv_key) DO UPDATE SET kv_value = EXCLUDED.kv_value, updated_at = now()`
