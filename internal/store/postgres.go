package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// Store keeps small key-value application state (the CRM token bundle) in
// the local_state table.
type Store struct{ DB Pool }

func Open(ctx context.Context, dsn string) (*Store, *pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: parse dsn")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: connect")
	}
	return &Store{DB: pool}, pool, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.DB.Ping(ctx) }

func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS local_state (
            key        TEXT PRIMARY KEY,
            value      TEXT NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
	}
	for _, q := range stmts {
		if _, err := s.DB.Exec(ctx, q); err != nil {
			return eris.Wrap(err, "store: migrate")
		}
	}
	return nil
}

func (s *Store) Read(ctx context.Context, keys []string) (map[string]string, error) {
	rows, err := s.DB.Query(ctx, `SELECT key, value FROM local_state WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, eris.Wrap(err, "store: read state")
	}
	defer rows.Close()

	out := make(map[string]string, len(keys))
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, eris.Wrap(err, "store: scan state")
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "store: iterate state")
	}
	return out, nil
}

// Write upserts every key inside one transaction.
func (s *Store) Write(ctx context.Context, kv map[string]string) (err error) {
	if len(kv) == 0 {
		return nil
	}
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "store: begin")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for k, v := range kv {
		if _, err = tx.Exec(ctx, `
            INSERT INTO local_state (key, value, updated_at)
            VALUES ($1, $2, now())
            ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
			k, v,
		); err != nil {
			return eris.Wrapf(err, "store: upsert %s", k)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "store: commit")
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if _, err := s.DB.Exec(ctx, `DELETE FROM local_state WHERE key = ANY($1)`, keys); err != nil {
		return eris.Wrap(err, "store: delete state")
	}
	return nil
}
