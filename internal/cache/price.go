package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"gatepass/internal/logger"
	"gatepass/internal/models"
)

const priceKey = "price:current_event_price"

// absent price is cached as JSON null
const nullValue = "null"

// PriceSource is the durable store behind the cache.
type PriceSource interface {
	Current(ctx context.Context) (*models.PriceConfig, error)
	Set(ctx context.Context, pc *models.PriceConfig) error
	Unset(ctx context.Context) error
}

// PriceCache is a read-through cache of the price configuration.
// Redis failures fall back to the source.
type PriceCache struct {
	client *redis.Client
	source PriceSource
	ttl    time.Duration
}

func NewPriceCache(client *redis.Client, source PriceSource, ttl time.Duration) *PriceCache {
	return &PriceCache{client: client, source: source, ttl: ttl}
}

func (c *PriceCache) Current(ctx context.Context) (*models.PriceConfig, error) {
	log := logger.WithContext(ctx)

	raw, err := c.client.Get(ctx, priceKey).Result()
	switch {
	case err == nil:
		if raw == nullValue {
			return nil, nil
		}
		var pc models.PriceConfig
		if err := json.Unmarshal([]byte(raw), &pc); err == nil {
			return &pc, nil
		}
		log.Warn("Discarding malformed cached price", "value", raw)
	case !errors.Is(err, redis.Nil):
		log.Warn("Price cache read failed, using database", "error", err)
		return c.source.Current(ctx)
	}

	pc, err := c.source.Current(ctx)
	if err != nil {
		return nil, err
	}

	value := nullValue
	if pc != nil {
		data, err := json.Marshal(pc)
		if err != nil {
			return pc, nil
		}
		value = string(data)
	}
	if err := c.client.Set(ctx, priceKey, value, c.ttl).Err(); err != nil {
		log.Warn("Failed to populate price cache", "error", err)
	}

	return pc, nil
}

func (c *PriceCache) Set(ctx context.Context, pc *models.PriceConfig) error {
	if err := c.source.Set(ctx, pc); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *PriceCache) Unset(ctx context.Context) error {
	if err := c.source.Unset(ctx); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *PriceCache) invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, priceKey).Err(); err != nil {
		logger.WithContext(ctx).Warn("Failed to invalidate price cache", "error", err)
	}
}
