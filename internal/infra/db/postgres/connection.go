package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
)

// NewPgxPool connects a pgx pool with a bounded connection count.
func NewPgxPool(ctx context.Context, url string, maxConns int) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.ConnectConfig(cctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return pool, nil
}

// EnsureSchema creates the orders table and its supporting indexes if they do
// not exist yet. Safe to run on every start.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const schema = `
CREATE TABLE IF NOT EXISTS orders (
  ref               UUID PRIMARY KEY,
  account_id        TEXT NOT NULL,
  kind              TEXT NOT NULL,
  instrument        TEXT NOT NULL,
  requested_amount  BIGINT NOT NULL CHECK (requested_amount >= 0),
  discount          BIGINT NOT NULL DEFAULT 0 CHECK (discount >= 0),
  currency          TEXT NOT NULL,
  status            TEXT NOT NULL,
  authority         TEXT,
  params_payload    BYTEA,
  params_expires_at TIMESTAMPTZ,
  created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  expires_at        TIMESTAMPTZ NOT NULL,
  settled_at        TIMESTAMPTZ,
  ref_id            TEXT,
  description       TEXT NOT NULL DEFAULT '',
  discount_ref      TEXT
);

-- At most one active hold per account and order kind. The engine relies on
-- the store to reject a second in-flight order of the same kind.
CREATE UNIQUE INDEX IF NOT EXISTS uq_orders_active
  ON orders (account_id, kind)
  WHERE status IN ('awaiting_confirmation', 'processing');

CREATE INDEX IF NOT EXISTS idx_orders_unsettled
  ON orders (updated_at)
  WHERE status IN ('awaiting_confirmation', 'processing');
`
	_, err := pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
