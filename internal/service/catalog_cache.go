package service

import (
	"context"
	"time"

	"rentalhub/internal/domain"
	"rentalhub/internal/models"

	"github.com/rs/zerolog"
)

const (
	catalogKeyAll        = "equipment:public:all"
	catalogKeyCategories = "equipment:categories"
	catalogKeyCategory   = "equipment:public:category:"
)

// CatalogCache keeps the public equipment listings. Any write that changes
// catalog rows or available quantity must call Invalidate.
type CatalogCache struct {
	store  domain.CacheStore
	ttl    time.Duration
	logger *zerolog.Logger
}

// NewCatalogCache returns nil when store is nil; a nil cache is a no-op.
func NewCatalogCache(store domain.CacheStore, ttl time.Duration, logger *zerolog.Logger) *CatalogCache {
	if store == nil {
		return nil
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &CatalogCache{store: store, ttl: ttl, logger: logger}
}

func (c *CatalogCache) get(ctx context.Context, key string, dest interface{}) bool {
	if c == nil {
		return false
	}
	found, err := c.store.GetJSON(ctx, key, dest)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
		return false
	}
	return found
}

func (c *CatalogCache) set(ctx context.Context, key string, value interface{}) {
	if c == nil {
		return
	}
	if err := c.store.SetJSON(ctx, key, value, c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
}

func (c *CatalogCache) Invalidate(ctx context.Context) {
	if c == nil {
		return
	}
	keys := []string{catalogKeyAll, catalogKeyCategories}
	for _, category := range models.Categories {
		keys = append(keys, catalogKeyCategory+category)
	}
	if err := c.store.Delete(ctx, keys...); err != nil {
		c.logger.Warn().Err(err).Msg("catalog cache invalidation failed")
	}
}
