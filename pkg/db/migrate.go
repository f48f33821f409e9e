package db

import (
	"context"

	"github.com/jackc/pgx/v5"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS withdrawals (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		amount NUMERIC(20,2) NOT NULL,
		fee_amount NUMERIC(20,2) NOT NULL,
		network_fee NUMERIC(20,2) NOT NULL,
		total_required NUMERIC(20,2) NOT NULL,
		currency TEXT NOT NULL,
		payout_key_type TEXT NOT NULL,
		payout_key TEXT NOT NULL,
		deposit_address TEXT NOT NULL,
		derivation_index BIGINT NOT NULL UNIQUE,
		txid TEXT NOT NULL DEFAULT '',
		paid_amount NUMERIC(20,2) NOT NULL DEFAULT 0,
		confirmations INT NOT NULL DEFAULT 0,
		excess_amount NUMERIC(20,2) NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires_at TIMESTAMPTZ NOT NULL,
		estimated_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS withdrawals_single_active
		ON withdrawals (user_id)
		WHERE status IN ('AWAITING_PAYMENT', 'PAYMENT_DETECTED', 'PROCESSING')`,
	`CREATE INDEX IF NOT EXISTS withdrawals_status_expiry
		ON withdrawals (status, expires_at)`,
	`CREATE TABLE IF NOT EXISTS verifications (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		external_ref TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS verifications_status_created
		ON verifications (status, created_at)`,
	`CREATE TABLE IF NOT EXISTS derivation_counter (
		id INT PRIMARY KEY,
		next_index BIGINT NOT NULL
	)`,
	`INSERT INTO derivation_counter (id, next_index)
		VALUES (1, 0) ON CONFLICT (id) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS bridge_users (
		id TEXT PRIMARY KEY,
		verified BOOLEAN NOT NULL DEFAULT false,
		daily_limit NUMERIC(20,2) NOT NULL DEFAULT 0,
		daily_spent NUMERIC(20,2) NOT NULL DEFAULT 0
	)`,
}

// Migrate applies the schema in one transaction so a partial run leaves
// nothing behind.
func Migrate(ctx context.Context) error {
	return WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		for _, stmt := range migrations {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}
