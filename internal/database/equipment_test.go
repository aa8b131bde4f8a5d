package database

import (
	"context"
	"testing"

	"rentalhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEquipmentCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	creator := int64(42)
	e := &models.Equipment{
		Name:              "Pressure Washer",
		Category:          models.CategoryOthers,
		CustomCategory:    "Garden",
		TotalQuantity:     4,
		AvailableQuantity: 4,
		DailyRate:         12.5,
		Status:            models.EquipmentAvailable,
		CreatedBy:         &creator,
	}
	require.NoError(t, db.CreateEquipment(ctx, e))
	assert.NotZero(t, e.ID)

	got, err := db.GetEquipment(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pressure Washer", got.Name)
	assert.Equal(t, "Garden", got.CategoryLabel())
	assert.False(t, got.Approved)
	require.NotNil(t, got.CreatedBy)
	assert.Equal(t, creator, *got.CreatedBy)
	assert.Nil(t, got.ApprovedBy)

	t.Run("Approve", func(t *testing.T) {
		require.NoError(t, db.ApproveEquipment(ctx, e.ID, true, 1, "looks fine"))
		got, err := db.GetEquipment(ctx, e.ID)
		require.NoError(t, err)
		assert.True(t, got.Approved)
		require.NotNil(t, got.ApprovedBy)
		assert.Equal(t, int64(1), *got.ApprovedBy)
		assert.Equal(t, "looks fine", got.ApprovalNotes)

		assert.ErrorIs(t, db.ApproveEquipment(ctx, 999, true, 1, ""), ErrNotFound)
	})

	t.Run("Update", func(t *testing.T) {
		got.DailyRate = 20
		got.Description = "2000 psi"
		require.NoError(t, db.UpdateEquipment(ctx, got, nil))

		updated, err := db.GetEquipment(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, 20.0, updated.DailyRate)
		assert.Equal(t, "2000 psi", updated.Description)

		tooMany := updated.TotalQuantity + 1
		assert.ErrorIs(t, db.UpdateEquipment(ctx, updated, &tooMany), ErrQuantityExceedsTotal)
		negative := int64(-1)
		assert.ErrorIs(t, db.UpdateEquipment(ctx, updated, &negative), ErrInsufficientQuantity)

		two := int64(2)
		require.NoError(t, db.UpdateEquipment(ctx, updated, &two))
		assert.Equal(t, int64(2), updated.AvailableQuantity)

		missing := *updated
		missing.ID = 999
		assert.ErrorIs(t, db.UpdateEquipment(ctx, &missing, nil), ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, db.DeleteEquipment(ctx, e.ID))
		_, err := db.GetEquipment(ctx, e.ID)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, db.DeleteEquipment(ctx, e.ID), ErrNotFound)
	})
}

func TestCreateEquipment_AvailableAboveTotal(t *testing.T) {
	db := setupTestDB(t)
	err := db.CreateEquipment(context.Background(), &models.Equipment{
		Name: "Ladder", Category: "Hand Tools", TotalQuantity: 1, AvailableQuantity: 2,
		Status: models.EquipmentAvailable,
	})
	assert.ErrorIs(t, err, ErrQuantityExceedsTotal)
}

func TestListEquipment_Filters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	items := []*models.Equipment{
		{Name: "Drill", Category: "Power Tools", TotalQuantity: 1, AvailableQuantity: 1, Status: models.EquipmentAvailable, Approved: true},
		{Name: "Saw", Category: "Power Tools", TotalQuantity: 1, AvailableQuantity: 1, Status: models.EquipmentMaintenance, Approved: true},
		{Name: "Hammer", Category: "Hand Tools", TotalQuantity: 3, AvailableQuantity: 3, Status: models.EquipmentAvailable},
	}
	for _, e := range items {
		require.NoError(t, db.CreateEquipment(ctx, e))
	}

	power := "Power Tools"
	available := models.EquipmentAvailable
	approved := true
	pending := false

	tests := []struct {
		name   string
		filter models.EquipmentFilter
		want   []string
	}{
		{name: "all", filter: models.EquipmentFilter{}, want: []string{"Drill", "Saw", "Hammer"}},
		{name: "category", filter: models.EquipmentFilter{Category: &power}, want: []string{"Drill", "Saw"}},
		{name: "status", filter: models.EquipmentFilter{Status: &available}, want: []string{"Drill", "Hammer"}},
		{name: "approved", filter: models.EquipmentFilter{Approved: &approved}, want: []string{"Drill", "Saw"}},
		{name: "pending approval", filter: models.EquipmentFilter{Approved: &pending}, want: []string{"Hammer"}},
		{name: "combined", filter: models.EquipmentFilter{Category: &power, Status: &available, Approved: &approved}, want: []string{"Drill"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := db.ListEquipment(ctx, tt.filter)
			require.NoError(t, err)

			names := make([]string, 0, len(list))
			for _, e := range list {
				names = append(names, e.Name)
			}
			assert.ElementsMatch(t, tt.want, names)

			count, err := db.CountEquipment(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), count)
		})
	}

	categories, err := db.ListCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hand Tools", "Power Tools"}, categories)
}

func TestInventoryCounter(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	e := createTestEquipment(t, db, 5, 10)

	available := func() int64 {
		got, err := db.GetEquipment(ctx, e.ID)
		require.NoError(t, err)
		return got.AvailableQuantity
	}

	t.Run("Reserve", func(t *testing.T) {
		require.NoError(t, db.ReserveUnits(ctx, e.ID, 2))
		assert.Equal(t, int64(3), available())

		assert.ErrorIs(t, db.ReserveUnits(ctx, e.ID, 4), ErrInsufficientQuantity)
		assert.Equal(t, int64(3), available())

		assert.ErrorIs(t, db.ReserveUnits(ctx, e.ID, 0), ErrInsufficientQuantity)
		assert.ErrorIs(t, db.ReserveUnits(ctx, 999, 1), ErrNotFound)
	})

	t.Run("ReleaseCapsAtTotal", func(t *testing.T) {
		require.NoError(t, db.ReleaseUnits(ctx, e.ID, 10))
		assert.Equal(t, int64(5), available())
	})

	t.Run("SetAbsolute", func(t *testing.T) {
		require.NoError(t, db.SetAvailableQuantity(ctx, e.ID, 1))
		assert.Equal(t, int64(1), available())

		assert.ErrorIs(t, db.SetAvailableQuantity(ctx, e.ID, 6), ErrQuantityExceedsTotal)
		assert.ErrorIs(t, db.SetAvailableQuantity(ctx, e.ID, -1), ErrInsufficientQuantity)
		assert.ErrorIs(t, db.SetAvailableQuantity(ctx, 999, 1), ErrNotFound)
		assert.Equal(t, int64(1), available())
	})

	t.Run("NotRentable", func(t *testing.T) {
		require.NoError(t, db.SetAvailableQuantity(ctx, e.ID, 5))
		got, err := db.GetEquipment(ctx, e.ID)
		require.NoError(t, err)

		got.Status = models.EquipmentMaintenance
		require.NoError(t, db.UpdateEquipment(ctx, got, nil))
		assert.ErrorIs(t, db.ReserveUnits(ctx, e.ID, 1), ErrInsufficientQuantity)

		got.Status = models.EquipmentAvailable
		require.NoError(t, db.UpdateEquipment(ctx, got, nil))
		require.NoError(t, db.ApproveEquipment(ctx, e.ID, false, 1, "recalled"))
		assert.ErrorIs(t, db.ReserveUnits(ctx, e.ID, 1), ErrInsufficientQuantity)
	})
}

func TestDeleteEquipment_OpenRentals(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	e := createTestEquipment(t, db, 2, 10)
	u := createTestUser(t, db, "renter@example.com", models.RoleUser)

	r := checkoutTestRental(t, db, e.ID, u.ID, 1)
	assert.ErrorIs(t, db.DeleteEquipment(ctx, e.ID), ErrEquipmentInUse)

	_, err := db.ReturnRental(ctx, r.ID)
	require.NoError(t, err)
	require.NoError(t, db.DeleteEquipment(ctx, e.ID))

	// history survives with an empty equipment name
	got, err := db.GetRental(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, got.EquipmentName)
}

func TestUpdateEquipment_KeepsReservedUnits(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	e := createTestEquipment(t, db, 5, 10)
	u := createTestUser(t, db, "renter@example.com", models.RoleUser)

	t.Run("StaleSnapshot", func(t *testing.T) {
		snapshot, err := db.GetEquipment(ctx, e.ID)
		require.NoError(t, err)

		checkoutTestRental(t, db, e.ID, u.ID, 2)

		snapshot.Description = "serviced"
		require.NoError(t, db.UpdateEquipment(ctx, snapshot, nil))

		got, err := db.GetEquipment(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, "serviced", got.Description)
		assert.Equal(t, int64(3), got.AvailableQuantity)
		assert.Equal(t, int64(3), snapshot.AvailableQuantity)
	})

	t.Run("TotalChangeMovesAvailable", func(t *testing.T) {
		got, err := db.GetEquipment(ctx, e.ID)
		require.NoError(t, err)

		got.TotalQuantity = 3
		require.NoError(t, db.UpdateEquipment(ctx, got, nil))
		assert.Equal(t, int64(1), got.AvailableQuantity)

		// two units are out, the total cannot drop below them
		got.TotalQuantity = 1
		assert.ErrorIs(t, db.UpdateEquipment(ctx, got, nil), ErrQuantityBelowReserved)

		assert.NoError(t, db.ReserveUnits(ctx, e.ID, 1))
		assert.ErrorIs(t, db.ReserveUnits(ctx, e.ID, 1), ErrInsufficientQuantity)

		after, err := db.GetEquipment(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), after.TotalQuantity)
		assert.Equal(t, int64(0), after.AvailableQuantity)

		after.TotalQuantity = 6
		require.NoError(t, db.UpdateEquipment(ctx, after, nil))
		assert.Equal(t, int64(3), after.AvailableQuantity)
	})
}
