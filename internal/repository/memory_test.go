package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheStore(t *testing.T) {
	repo := NewMemoryCacheStore()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }
	ctx := context.Background()

	t.Run("SetAndGet", func(t *testing.T) {
		original := cachedCatalog{Names: []string{"Drill"}, Count: 1}
		require.NoError(t, repo.SetJSON(ctx, "k", original, time.Minute))

		// mutating the original does not affect the cached copy
		original.Names[0] = "Saw"

		var got cachedCatalog
		found, err := repo.GetJSON(ctx, "k", &got)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []string{"Drill"}, got.Names)
	})

	t.Run("Expiry", func(t *testing.T) {
		clock = clock.Add(2 * time.Minute)
		var got cachedCatalog
		found, err := repo.GetJSON(ctx, "k", &got)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.SetJSON(ctx, "k", 1, 0))
		require.NoError(t, repo.Delete(ctx, "k"))
		var v int
		found, _ := repo.GetJSON(ctx, "k", &v)
		assert.False(t, found)
	})

	t.Run("RateLimit", func(t *testing.T) {
		allowed, _ := repo.CheckRateLimit(ctx, "ip", 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, "ip", 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, "ip", 2, time.Second)
		assert.False(t, allowed)

		allowed, _ = repo.CheckRateLimit(ctx, "other", 2, time.Second)
		assert.True(t, allowed)

		clock = clock.Add(time.Second + 10*time.Millisecond)
		allowed, _ = repo.CheckRateLimit(ctx, "ip", 2, time.Second)
		assert.True(t, allowed)
	})

	t.Run("MarshalError", func(t *testing.T) {
		assert.Error(t, repo.SetJSON(ctx, "bad", make(chan int), 0))
	})
}
