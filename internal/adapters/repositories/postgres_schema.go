package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		buyer_id TEXT NOT NULL,
		seller_id TEXT NOT NULL,
		pickup_address TEXT NOT NULL,
		pickup_lat DOUBLE PRECISION NOT NULL,
		pickup_lon DOUBLE PRECISION NOT NULL,
		dropoff_address TEXT NOT NULL,
		dropoff_lat DOUBLE PRECISION NOT NULL,
		dropoff_lon DOUBLE PRECISION NOT NULL,
		item_count INTEGER NOT NULL,
		declared_value_cents BIGINT NOT NULL,
		fee_buyer_cents BIGINT NOT NULL DEFAULT 0,
		fee_seller_cents BIGINT NOT NULL DEFAULT 0,
		fee_platform_cents BIGINT NOT NULL DEFAULT 0,
		delivery_method TEXT NOT NULL,
		seller_shipping_cents BIGINT NOT NULL DEFAULT 0,
		tip_cents BIGINT NOT NULL DEFAULT 0,
		large BOOLEAN NOT NULL DEFAULT FALSE,
		time_slot TEXT NOT NULL,
		status TEXT NOT NULL,
		route_id TEXT,
		queued_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	`,
	`
	CREATE INDEX IF NOT EXISTS idx_orders_slot_status
	ON orders(time_slot, status);
	`,
	`
	CREATE TABLE IF NOT EXISTS routes (
		id TEXT PRIMARY KEY,
		time_slot TEXT NOT NULL,
		colour INTEGER NOT NULL,
		status TEXT NOT NULL,
		claimed_by TEXT,
		base_pay_cents BIGINT NOT NULL,
		mileage_pay_cents BIGINT NOT NULL,
		tips_pool_cents BIGINT NOT NULL,
		total_distance_meters INTEGER NOT NULL,
		estimated_duration_minutes INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		available_since TIMESTAMPTZ NOT NULL,
		claimed_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		abandon_reason TEXT NOT NULL DEFAULT '',
		offered_count INTEGER NOT NULL DEFAULT 0
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS route_stops (
		id TEXT PRIMARY KEY,
		route_id TEXT NOT NULL REFERENCES routes(id) ON DELETE CASCADE,
		order_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		sequence_index INTEGER NOT NULL,
		status TEXT NOT NULL,
		address TEXT NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION NOT NULL,
		completed_at TIMESTAMPTZ,
		completed_by TEXT NOT NULL DEFAULT '',
		fail_reason TEXT NOT NULL DEFAULT '',
		UNIQUE (route_id, sequence_index)
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS driver_sessions (
		driver_id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		time_slot TEXT NOT NULL DEFAULT '',
		current_route_id TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL,
		last_seen TIMESTAMPTZ NOT NULL,
		offline_since TIMESTAMPTZ
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS earnings_records (
		route_id TEXT PRIMARY KEY REFERENCES routes(id),
		driver_id TEXT NOT NULL,
		net_payout_cents BIGINT NOT NULL,
		computed_at TIMESTAMPTZ NOT NULL,
		record JSONB NOT NULL
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS distance_cache (
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		distance_meters INTEGER NOT NULL,
		duration_seconds INTEGER NOT NULL,
		fetched_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (origin, destination)
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS geocode_cache (
		address TEXT PRIMARY KEY,
		lon DOUBLE PRECISION NOT NULL,
		lat DOUBLE PRECISION NOT NULL
	);
	`,
}

// Initialize the Postgres schema. Safe to run repeatedly.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
