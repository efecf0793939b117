package service

import (
	"context"
	"fmt"
	"strings"

	apperrors "gatepass/internal/errors"
	"gatepass/internal/logger"
	"gatepass/internal/models"
)

type PriceService struct {
	store PriceStore
	clock Clock
}

func NewPriceService(store PriceStore, clock Clock) *PriceService {
	return &PriceService{store: store, clock: clock}
}

// Current returns the fixed price or apperrors.ErrNotFound.
func (s *PriceService) Current(ctx context.Context) (*models.PriceConfig, error) {
	pc, err := s.store.Current(ctx)
	if err != nil {
		return nil, err
	}
	if pc == nil {
		return nil, apperrors.ErrNotFound
	}
	return pc, nil
}

func (s *PriceService) Set(ctx context.Context, req *models.SetPriceRequest) (*models.PriceConfig, error) {
	if req.Price == nil || req.Price.Int64() <= 0 {
		return nil, fmt.Errorf("%w: price must be a positive integer", apperrors.ErrInvalidInput)
	}
	eventName := strings.TrimSpace(req.EventName)
	if eventName == "" {
		return nil, fmt.Errorf("%w: eventName is required", apperrors.ErrInvalidInput)
	}

	pc := &models.PriceConfig{
		PriceInCents: req.Price.Int64(),
		EventName:    eventName,
		UpdatedAt:    s.clock().UTC(),
	}
	if err := s.store.Set(ctx, pc); err != nil {
		return nil, err
	}

	logger.WithContext(ctx).Info("Event price set", "price_in_cents", pc.PriceInCents, "event_name", pc.EventName)
	return pc, nil
}

func (s *PriceService) Unset(ctx context.Context) error {
	if err := s.store.Unset(ctx); err != nil {
		return err
	}
	logger.WithContext(ctx).Info("Event price unset")
	return nil
}
