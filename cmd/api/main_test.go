package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"rentalhub/internal/database"
	"rentalhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSeed(t *testing.T) {
	items, err := loadSeed(writeSeed(t, `
equipment:
  - name: "Cordless Drill"
    category: "Power Tools"
    quantity: 4
    daily_rate: 15
`))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Cordless Drill", items[0].Name)
	assert.Equal(t, int64(4), items[0].TotalQuantity)
	assert.Equal(t, 15.0, items[0].DailyRate)

	_, err = loadSeed(writeSeed(t, "equipment:\n  - name: X\n    category: Boats\n"))
	assert.Error(t, err)

	_, err = loadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSeedCatalog(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	defer db.Close()

	t.Setenv("SEED_PATH", writeSeed(t, `
equipment:
  - name: "Hard Hat"
    category: "Safety Equipment"
    quantity: 10
    daily_rate: 2
  - name: "Laser Level"
    category: "Measuring Equipment"
    quantity: 2
    daily_rate: 18
`))

	ctx := context.Background()
	require.NoError(t, seedCatalog(ctx, db, &logger))

	items, err := db.ListEquipment(ctx, models.EquipmentFilter{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.True(t, item.Approved)
		assert.Equal(t, models.EquipmentAvailable, item.Status)
		assert.Equal(t, item.TotalQuantity, item.AvailableQuantity)
	}

	// повторный запуск не дублирует каталог
	require.NoError(t, seedCatalog(ctx, db, &logger))
	count, err := db.CountEquipment(ctx, models.EquipmentFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	t.Setenv("SEED_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NoError(t, seedCatalog(ctx, db, &logger))
}
