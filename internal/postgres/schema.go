package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT UNIQUE NOT NULL,
		description TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id          BIGSERIAL PRIMARY KEY,
		category_id BIGINT REFERENCES categories(id),
		name        TEXT NOT NULL,
		price       NUMERIC(12,2) NOT NULL DEFAULT 0,
		description TEXT NOT NULL DEFAULT '',
		stock       INT NOT NULL DEFAULT 0 CHECK (stock >= 0),
		kind        TEXT NOT NULL DEFAULT 'FIXED',
		is_active   BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		order_id            TEXT PRIMARY KEY,
		customer_id         BIGINT NOT NULL,
		username            TEXT NOT NULL DEFAULT '',
		first_name          TEXT NOT NULL DEFAULT '',
		product_id          BIGINT NOT NULL,
		product_name        TEXT NOT NULL,
		product_kind        TEXT NOT NULL DEFAULT 'FIXED',
		custom_amount       NUMERIC(12,2),
		price_amount        NUMERIC(12,2) NOT NULL,
		price_with_fee      NUMERIC(12,2) NOT NULL,
		provider_invoice_id TEXT NOT NULL,
		status              TEXT NOT NULL DEFAULT 'PENDING',
		created_at          TIMESTAMPTZ NOT NULL,
		paid_at             TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS coefficients (
		coefficient_type TEXT PRIMARY KEY,
		value            NUMERIC(12,4) NOT NULL,
		updated_at       TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		customer_id   BIGINT PRIMARY KEY,
		username      TEXT NOT NULL DEFAULT '',
		first_name    TEXT NOT NULL DEFAULT '',
		joined_at     TIMESTAMPTZ NOT NULL,
		last_activity TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS banned_users (
		customer_id BIGINT PRIMARY KEY,
		username    TEXT NOT NULL DEFAULT '',
		banned_by   BIGINT NOT NULL,
		banned_at   TIMESTAMPTZ NOT NULL,
		reason      TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
}

// Migrate creates the schema if it does not exist. Safe to run on every start.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range ddl {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
