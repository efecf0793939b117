package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gatepass/internal/database"
	"gatepass/internal/models"
)

// PriceConfigID is the key of the single price row.
const PriceConfigID = "current_event_price"

type PriceRepository struct {
	db *database.DB
}

func NewPriceRepository(db *database.DB) *PriceRepository {
	return &PriceRepository{db: db}
}

// Current returns the configured price or nil when none is set.
func (r *PriceRepository) Current(ctx context.Context) (*models.PriceConfig, error) {
	pc := &models.PriceConfig{}
	err := r.db.QueryRowContext(ctx,
		`SELECT price_in_cents, event_name, updated_at FROM price_config WHERE config_id = $1`,
		PriceConfigID,
	).Scan(&pc.PriceInCents, &pc.EventName, &pc.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get price config: %w", err)
	}
	return pc, nil
}

func (r *PriceRepository) Set(ctx context.Context, pc *models.PriceConfig) error {
	query := `
		INSERT INTO price_config (config_id, price_in_cents, event_name, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (config_id) DO UPDATE
		SET price_in_cents = EXCLUDED.price_in_cents,
		    event_name = EXCLUDED.event_name,
		    updated_at = EXCLUDED.updated_at`

	if _, err := r.db.ExecContext(ctx, query, PriceConfigID, pc.PriceInCents, pc.EventName, pc.UpdatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to set price config: %w", err)
	}
	return nil
}

// Unset removes the price. Removing an absent price is not an error.
func (r *PriceRepository) Unset(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM price_config WHERE config_id = $1`, PriceConfigID); err != nil {
		return fmt.Errorf("failed to unset price config: %w", err)
	}
	return nil
}
