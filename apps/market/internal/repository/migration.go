package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// InitMigration initializes the database. In production, this would use a proper migration
// library like go-migrate
func InitMigration(ctx context.Context, db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id BIGSERIAL PRIMARY KEY,
			raw JSONB NOT NULL,
			is_sell BOOLEAN NOT NULL,
			signature VARCHAR(132),
			maker VARCHAR(42) NOT NULL,
			price CHAR(66) NOT NULL,
			contract_address VARCHAR(42) NOT NULL,
			token_id CHAR(66) NOT NULL,
			expiration_time BIGINT NOT NULL,
			verified BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_book ON orders (contract_address, token_id, is_sell, verified, expiration_time)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_maker ON orders (maker)`,
		`CREATE TABLE IF NOT EXISTS event_outbox (
			event_id UUID PRIMARY KEY,
			event_type VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'unsent',
			order_id BIGINT NOT NULL REFERENCES orders (id),
			contract_address VARCHAR(42) NOT NULL,
			token_id CHAR(66) NOT NULL,
			maker VARCHAR(42) NOT NULL,
			is_sell BOOLEAN NOT NULL,
			price CHAR(66) NOT NULL,
			event_blob JSONB NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			claimed_at TIMESTAMP
		)`,
		`ALTER TABLE event_outbox ADD COLUMN IF NOT EXISTS claimed_at TIMESTAMP`,
		`CREATE INDEX IF NOT EXISTS idx_event_outbox_status ON event_outbox (status, created_at)`,
	}

	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query %s: %w", query, err)
		}
	}
	return nil
}
