package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatepass/internal/database"
	"gatepass/internal/models"
)

func TestPriceRepository(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	repo := NewPriceRepository(database.Wrap(sqlDB))
	ctx := context.Background()
	updated := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT price_in_cents, event_name, updated_at FROM price_config`).
		WithArgs(PriceConfigID).
		WillReturnRows(sqlmock.NewRows([]string{"price_in_cents", "event_name", "updated_at"}))

	pc, err := repo.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, pc)

	mock.ExpectExec(`(?s)INSERT INTO price_config.*ON CONFLICT \(config_id\) DO UPDATE`).
		WithArgs(PriceConfigID, int64(2500), "Spring Gala", updated).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Set(ctx, &models.PriceConfig{PriceInCents: 2500, EventName: "Spring Gala", UpdatedAt: updated}))

	mock.ExpectQuery(`SELECT price_in_cents, event_name, updated_at FROM price_config`).
		WithArgs(PriceConfigID).
		WillReturnRows(sqlmock.NewRows([]string{"price_in_cents", "event_name", "updated_at"}).
			AddRow(int64(2500), "Spring Gala", updated))

	pc, err = repo.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, pc)
	assert.Equal(t, int64(2500), pc.PriceInCents)
	assert.Equal(t, "Spring Gala", pc.EventName)

	mock.ExpectExec(`DELETE FROM price_config WHERE config_id = \$1`).
		WithArgs(PriceConfigID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Unset(ctx), "unsetting an absent price is not an error")
	assert.NoError(t, mock.ExpectationsWereMet())
}
