package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rentalhub/internal/config"
	"rentalhub/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService(t *testing.T) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "source.db")
	storagePath := filepath.Join(tempDir, "backups")

	logger := zerolog.Nop()
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.CreateEquipment(ctx, &models.Equipment{
		Name: "Drill", Category: "Power Tools", TotalQuantity: 1, AvailableQuantity: 1,
		Status: models.EquipmentAvailable, Approved: true,
	}))

	cfg := config.BackupConfig{
		Enabled:       true,
		StoragePath:   storagePath,
		RetentionDays: 1,
	}
	s := NewBackupService(db, dbPath, cfg, &logger)

	t.Run("PerformBackup", func(t *testing.T) {
		path, err := s.PerformBackup(ctx)
		require.NoError(t, err)
		assert.FileExists(t, path)

		restored, err := NewDB(path, &logger)
		require.NoError(t, err)
		defer restored.Close()

		items, err := restored.ListEquipment(ctx, models.EquipmentFilter{})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "Drill", items[0].Name)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldFile := filepath.Join(storagePath, "backup_old.db")
		require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))

		unrelated := filepath.Join(storagePath, "notes.txt")
		require.NoError(t, os.WriteFile(unrelated, []byte("keep"), 0o644))

		oldTime := time.Now().AddDate(0, 0, -2)
		require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))
		require.NoError(t, os.Chtimes(unrelated, oldTime, oldTime))

		s.CleanupOldBackups()

		assert.NoFileExists(t, oldFile)
		assert.FileExists(t, unrelated)
	})

	t.Run("Run", func(t *testing.T) {
		require.NoError(t, s.Run(ctx))

		files, err := os.ReadDir(storagePath)
		require.NoError(t, err)
		// two backups plus notes.txt
		assert.Len(t, files, 3)
	})
}

func TestBackupService_FallbackWithoutFile(t *testing.T) {
	logger := zerolog.Nop()
	db := setupTestDB(t)

	s := NewBackupService(db, memoryPath, config.BackupConfig{StoragePath: t.TempDir()}, &logger)
	require.NoError(t, db.Close())

	_, err := s.PerformBackup(context.Background())
	assert.Error(t, err)
}
