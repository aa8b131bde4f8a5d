package database

import (
	"context"
	"testing"

	"rentalhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := &models.User{Name: "Ann", Email: "  Ann@Example.com ", PasswordHash: "h1", Role: models.RoleUser}
	require.NoError(t, db.CreateUser(ctx, user))
	assert.NotZero(t, user.ID)
	assert.Equal(t, "ann@example.com", user.Email)

	t.Run("GetByEmailIsCaseInsensitive", func(t *testing.T) {
		got, err := db.GetUserByEmail(ctx, "ANN@example.COM")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, "h1", got.PasswordHash)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		err := db.CreateUser(ctx, &models.User{Name: "Other", Email: "ann@EXAMPLE.com", PasswordHash: "h", Role: models.RoleUser})
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})

	t.Run("Update", func(t *testing.T) {
		user.Phone = "(555) 123-4567"
		user.Role = models.RoleDelivery
		require.NoError(t, db.UpdateUser(ctx, user))

		got, err := db.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "(555) 123-4567", got.Phone)
		assert.Equal(t, models.RoleDelivery, got.Role)
		assert.Equal(t, "h1", got.PasswordHash)
	})

	t.Run("UpdatePassword", func(t *testing.T) {
		require.NoError(t, db.UpdatePassword(ctx, user.ID, "h2"))
		got, err := db.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "h2", got.PasswordHash)

		assert.ErrorIs(t, db.UpdatePassword(ctx, 999, "x"), ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, db.DeleteUser(ctx, user.ID))
		_, err := db.GetUserByID(ctx, user.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, db.DeleteUser(ctx, user.ID), ErrNotFound)
	})
}

func TestUpdateUser_DuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	createTestUser(t, db, "a@example.com", models.RoleUser)
	b := createTestUser(t, db, "b@example.com", models.RoleUser)

	b.Email = "A@example.com"
	assert.ErrorIs(t, db.UpdateUser(ctx, b), ErrDuplicateEmail)

	b.ID = 999
	b.Email = "c@example.com"
	assert.ErrorIs(t, db.UpdateUser(ctx, b), ErrNotFound)
}

func TestUsersByRole(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.FirstUserByRole(ctx, models.RoleDelivery)
	assert.ErrorIs(t, err, ErrNotFound)

	createTestUser(t, db, "admin@example.com", models.RoleAdmin)
	first := createTestUser(t, db, "courier1@example.com", models.RoleDelivery)
	createTestUser(t, db, "courier2@example.com", models.RoleDelivery)
	createTestUser(t, db, "user@example.com", models.RoleUser)

	got, err := db.FirstUserByRole(ctx, models.RoleDelivery)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	couriers, err := db.ListUsersByRole(ctx, models.RoleDelivery)
	require.NoError(t, err)
	assert.Len(t, couriers, 2)

	all, err := db.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	count, err := db.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}
