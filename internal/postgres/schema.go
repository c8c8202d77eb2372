package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema bootstrap runs at startup; every statement is idempotent so repeated
// starts against the same database are safe.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id         SERIAL PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id          SERIAL PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price       NUMERIC(10,2) NOT NULL,
		image_url   TEXT NOT NULL DEFAULT '',
		category_id INTEGER REFERENCES categories(id),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id            SERIAL PRIMARY KEY,
		total_amount  NUMERIC(10,2) NOT NULL,
		notes         TEXT,
		status        TEXT NOT NULL DEFAULT 'PENDING',
		cancel_reason TEXT,
		canceled_at   TIMESTAMPTZ,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id         SERIAL PRIMARY KEY,
		order_id   INTEGER NOT NULL REFERENCES orders(id),
		product_id INTEGER NOT NULL,
		quantity   INTEGER NOT NULL CHECK (quantity > 0)
	)`,
	`CREATE TABLE IF NOT EXISTS order_item_options (
		id            SERIAL PRIMARY KEY,
		order_item_id INTEGER NOT NULL REFERENCES order_items(id),
		name          TEXT NOT NULL,
		price         NUMERIC(10,2) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_status_history (
		id          SERIAL PRIMARY KEY,
		order_id    INTEGER NOT NULL REFERENCES orders(id),
		from_status TEXT,
		to_status   TEXT NOT NULL,
		reason      TEXT,
		note        TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_order_history_order ON order_status_history(order_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_created ON orders(created_at DESC)`,
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
