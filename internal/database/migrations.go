package database

import (
	"context"
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations(ctx context.Context) error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createTicketsTable,
		createTicketsPendingIndex,
		createTicketsEmailIndex,
		createPriceConfigTable,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createTicketsTable = `
CREATE TABLE IF NOT EXISTS tickets (
    id UUID PRIMARY KEY,
    payment_session_id VARCHAR(255) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    amount BIGINT NOT NULL,
    currency VARCHAR(3) NOT NULL,
    event_name VARCHAR(255),
    payer_email VARCHAR(255) NOT NULL,
    payer_name VARCHAR(255),
    frontend_domain VARCHAR(500),
    requested_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    failure_reason TEXT,
    verification_code VARCHAR(16),
    created_at TIMESTAMPTZ,
    expires_at TIMESTAMPTZ,
    redeemed BOOLEAN NOT NULL DEFAULT FALSE,
    redeemed_at TIMESTAMPTZ,
    CONSTRAINT tickets_payment_session_id_key UNIQUE (payment_session_id),
    CONSTRAINT tickets_verification_code_key UNIQUE (verification_code),
    CONSTRAINT tickets_status_check CHECK (status IN ('pending', 'completed', 'failed')),
    CONSTRAINT tickets_amount_check CHECK (amount > 0),
    CONSTRAINT tickets_issue_check CHECK (
        (status = 'completed') = (verification_code IS NOT NULL AND created_at IS NOT NULL AND expires_at IS NOT NULL)
    ),
    CONSTRAINT tickets_redeemed_check CHECK (NOT redeemed OR status = 'completed'),
    CONSTRAINT tickets_redeemed_at_check CHECK (redeemed = (redeemed_at IS NOT NULL))
);`

const createTicketsPendingIndex = `
CREATE INDEX IF NOT EXISTS idx_tickets_pending_requested_at
    ON tickets (requested_at) WHERE status = 'pending';`

const createTicketsEmailIndex = `
CREATE INDEX IF NOT EXISTS idx_tickets_payer_email ON tickets (payer_email);`

const createPriceConfigTable = `
CREATE TABLE IF NOT EXISTS price_config (
    config_id VARCHAR(64) PRIMARY KEY,
    price_in_cents BIGINT NOT NULL CHECK (price_in_cents > 0),
    event_name VARCHAR(255) NOT NULL CHECK (event_name <> ''),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`
