package repository

import (
	"context"
	"sync/atomic"
	"time"

	"rentalhub/internal/domain"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverCacheStore serves from primary until it errors, then from fallback.
// Primary is retried once recoveryInterval has passed since the last failure.
type FailoverCacheStore struct {
	primary   domain.CacheStore
	fallback  domain.CacheStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverCacheStore(primary, fallback domain.CacheStore, logger *zerolog.Logger) *FailoverCacheStore {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverCacheStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// usePrimary reports whether the next call should go to primary.
func (r *FailoverCacheStore) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverCacheStore) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary cache store failed, falling back to memory")
	}
	r.lastCheck.Store(time.Now().UnixNano())
}

func (r *FailoverCacheStore) markUp() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary cache store recovered")
	}
}

func (r *FailoverCacheStore) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	if r.usePrimary() {
		found, err := r.primary.GetJSON(ctx, key, dest)
		if err == nil {
			r.markUp()
			return found, nil
		}
		r.markDown(err)
	}
	return r.fallback.GetJSON(ctx, key, dest)
}

func (r *FailoverCacheStore) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.usePrimary() {
		err := r.primary.SetJSON(ctx, key, value, ttl)
		if err == nil {
			r.markUp()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetJSON(ctx, key, value, ttl)
}

// Delete always clears fallback too, so stale entries do not survive a recovery.
func (r *FailoverCacheStore) Delete(ctx context.Context, keys ...string) error {
	if r.usePrimary() {
		if err := r.primary.Delete(ctx, keys...); err != nil {
			r.markDown(err)
		} else {
			r.markUp()
		}
	}
	return r.fallback.Delete(ctx, keys...)
}

func (r *FailoverCacheStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.markUp()
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}
