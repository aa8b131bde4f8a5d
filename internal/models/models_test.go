package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRentalCost(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("WholeWeek", func(t *testing.T) {
		assert.Equal(t, 105.0, RentalCost(start, start.AddDate(0, 0, 7), 15.0, 1))
	})

	t.Run("MultiUnit", func(t *testing.T) {
		assert.Equal(t, 60.0, RentalCost(start, start.AddDate(0, 0, 3), 10, 2))
	})

	t.Run("PartialDayRoundsUp", func(t *testing.T) {
		end := start.Add(49 * time.Hour)
		assert.Equal(t, int64(3), RentalDays(start, end))
		assert.Equal(t, 30.0, RentalCost(start, end, 10, 1))
	})

	t.Run("EmptyWindow", func(t *testing.T) {
		assert.Equal(t, int64(0), RentalDays(start, start))
		assert.Equal(t, int64(0), RentalDays(start, start.Add(-time.Hour)))
	})
}

func TestRental_IsOverdue(t *testing.T) {
	now := time.Now()
	r := &Rental{Status: RentalActive, EndDate: now.Add(-time.Hour)}
	assert.True(t, r.IsOverdue(now))

	r.Status = RentalCompleted
	assert.False(t, r.IsOverdue(now))
	assert.True(t, r.IsTerminal())

	r = &Rental{Status: RentalActive, EndDate: now.Add(time.Hour)}
	assert.False(t, r.IsOverdue(now))
	assert.False(t, r.IsTerminal())
}

func TestEquipment_Helpers(t *testing.T) {
	e := &Equipment{Status: EquipmentAvailable, Approved: true, Category: "Hand Tools"}
	assert.True(t, e.IsRentable())
	assert.Equal(t, "Hand Tools", e.CategoryLabel())

	e.Approved = false
	assert.False(t, e.IsRentable())

	e = &Equipment{Status: EquipmentMaintenance, Approved: true, Category: CategoryOthers, CustomCategory: "Scaffolding"}
	assert.False(t, e.IsRentable())
	assert.Equal(t, "Scaffolding", e.CategoryLabel())
}

func TestValidators(t *testing.T) {
	assert.True(t, IsValidRole(RoleDelivery))
	assert.False(t, IsValidRole("root"))
	assert.True(t, IsValidCategory("Power Tools"))
	assert.False(t, IsValidCategory("power tools"))
	assert.True(t, IsValidRentalStatus(RentalApproved))
	assert.False(t, IsValidRentalStatus("returned"))
	assert.True(t, IsValidPaymentMethod(MethodBankTransfer))
	assert.False(t, IsValidPaymentMethod("crypto"))
	assert.True(t, IsValidPaymentStatus(PaymentRefunded))
	assert.True(t, IsValidEquipmentStatus(EquipmentRetired))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "jane@example.com", NormalizeEmail("  Jane@Example.COM "))
}

func TestActor(t *testing.T) {
	admin := Actor{UserID: 1, Role: RoleAdmin}
	user := Actor{UserID: 2, Role: RoleUser}

	assert.True(t, admin.Owns(2))
	assert.True(t, user.Owns(2))
	assert.False(t, user.Owns(3))
	assert.False(t, user.IsAdmin())
	assert.True(t, Actor{Role: RoleDelivery}.IsDelivery())
}

func TestInitialPaymentStatus(t *testing.T) {
	assert.Equal(t, PaymentPending, InitialPaymentStatus(MethodCash))
	assert.Equal(t, PaymentCompleted, InitialPaymentStatus(MethodCard))
	assert.Equal(t, PaymentCompleted, InitialPaymentStatus(MethodBankTransfer))
}

func TestAppendNote(t *testing.T) {
	assert.Equal(t, "first", AppendNote("", "first"))
	assert.Equal(t, "first\nsecond", AppendNote("first", "second"))
	assert.Equal(t, "first", AppendNote("first", ""))
}

func TestReportWindow(t *testing.T) {
	now := time.Date(2025, 6, 18, 15, 30, 0, 0, time.UTC)

	period, start, end, err := ReportWindow(PeriodMonthly, now)
	require.NoError(t, err)
	assert.Equal(t, PeriodMonthly, period)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, now, end)

	period, start, _, err = ReportWindow("", now)
	require.NoError(t, err)
	assert.Equal(t, PeriodDaily, period)
	assert.Equal(t, time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC), start)

	_, _, _, err = ReportWindow("weekly", now)
	assert.ErrorIs(t, err, ErrUnknownPeriod)
}
