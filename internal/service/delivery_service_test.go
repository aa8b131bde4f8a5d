package service

import (
	"context"
	"testing"

	"rentalhub/internal/events"
	"rentalhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestDeliveryService_Flow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.admin(t)
	user := env.user(t, "user@example.com", models.RoleUser)
	courier := env.user(t, "courier@example.com", models.RoleDelivery)
	env.user(t, "courier2@example.com", models.RoleDelivery)
	item := env.item(t, admin, 4, 10)
	rental := env.checkout(t, user, item.ID, 2)

	d, err := env.deliveries.Create(ctx, admin, DeliveryInput{RentalID: rental.ID, Address: "1 Main St"})
	require.NoError(t, err)
	require.NotNil(t, d.DeliveryPersonID)
	assert.Equal(t, courier.UserID, *d.DeliveryPersonID, "first delivery user is assigned")
	assert.Equal(t, models.DeliveryAssigned, d.Status)

	_, err = env.deliveries.Create(ctx, admin, DeliveryInput{RentalID: rental.ID, Address: "again"})
	assertKind(t, err, KindConflict)

	_, err = env.deliveries.MarkReturned(ctx, courier, d.ID, "")
	assertKind(t, err, KindValidation)

	delivered, err := env.deliveries.MarkDelivered(ctx, courier, d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryDelivered, delivered.Status)
	assert.NotNil(t, delivered.DeliveredAt)

	got, err := env.rentals.Get(ctx, admin, rental.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RentalActive, got.Status)

	_, err = env.deliveries.MarkDelivered(ctx, courier, d.ID)
	assertKind(t, err, KindValidation)

	returned, err := env.deliveries.MarkReturned(ctx, courier, d.ID, "scratched handle")
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryReturned, returned.Status)
	assert.Equal(t, "scratched handle", returned.Notes)

	got, err = env.rentals.Get(ctx, admin, rental.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RentalCompleted, got.Status)
	assert.Equal(t, int64(4), env.available(t, item.ID))

	_, err = env.deliveries.MarkReturned(ctx, courier, d.ID, "")
	assertKind(t, err, KindValidation)

	env.events.AssertCalled(t, "PublishJSON", events.EventDeliveryReturned, mock.Anything)
}

func TestDeliveryService_ReturnAfterRentalClosed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.admin(t)
	user := env.user(t, "user@example.com", models.RoleUser)
	courier := env.user(t, "courier@example.com", models.RoleDelivery)
	item := env.item(t, admin, 2, 10)
	rental := env.checkout(t, user, item.ID, 1)

	d, err := env.deliveries.Create(ctx, admin, DeliveryInput{RentalID: rental.ID, Address: "2 Side St", Notes: "call first"})
	require.NoError(t, err)
	_, err = env.deliveries.MarkDelivered(ctx, courier, d.ID)
	require.NoError(t, err)

	_, err = env.rentals.Return(ctx, user, rental.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), env.available(t, item.ID))

	returned, err := env.deliveries.MarkReturned(ctx, courier, d.ID, "picked up")
	require.NoError(t, err)
	assert.Equal(t, "call first\npicked up", returned.Notes)
	assert.Equal(t, int64(2), env.available(t, item.ID), "units are released once")
}

func TestDeliveryService_Access(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.admin(t)
	user := env.user(t, "user@example.com", models.RoleUser)
	courier := env.user(t, "courier@example.com", models.RoleDelivery)
	stranger := env.user(t, "stranger@example.com", models.RoleDelivery)
	item := env.item(t, admin, 2, 10)
	rental := env.checkout(t, user, item.ID, 1)

	_, err := env.deliveries.Create(ctx, user, DeliveryInput{RentalID: rental.ID, Address: "x"})
	assertKind(t, err, KindForbidden)
	_, err = env.deliveries.Create(ctx, admin, DeliveryInput{RentalID: rental.ID})
	assertKind(t, err, KindValidation)
	_, err = env.deliveries.Create(ctx, admin, DeliveryInput{RentalID: 999, Address: "x"})
	assertKind(t, err, KindNotFound)
	_, err = env.deliveries.Create(ctx, admin, DeliveryInput{RentalID: rental.ID, Address: "x", DeliveryPersonID: &user.UserID})
	assertKind(t, err, KindValidation)

	d, err := env.deliveries.Create(ctx, admin, DeliveryInput{RentalID: rental.ID, Address: "x", DeliveryPersonID: &stranger.UserID})
	require.NoError(t, err)

	_, err = env.deliveries.MarkDelivered(ctx, courier, d.ID)
	assertKind(t, err, KindForbidden)
	_, err = env.deliveries.MarkDelivered(ctx, user, d.ID)
	assertKind(t, err, KindForbidden)
	_, err = env.deliveries.MarkDelivered(ctx, courier, 999)
	assertKind(t, err, KindNotFound)

	assigned, err := env.deliveries.ListAssigned(ctx, stranger)
	require.NoError(t, err)
	assert.Len(t, assigned, 1)
	assigned, err = env.deliveries.ListAssigned(ctx, courier)
	require.NoError(t, err)
	assert.Empty(t, assigned)
	_, err = env.deliveries.ListAssigned(ctx, user)
	assertKind(t, err, KindForbidden)

	all, err := env.deliveries.ListAll(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	_, err = env.deliveries.ListAll(ctx, courier)
	assertKind(t, err, KindForbidden)

	// admins may complete any delivery
	_, err = env.deliveries.MarkDelivered(ctx, admin, d.ID)
	assert.NoError(t, err)
}

func TestDeliveryService_NoCouriers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.admin(t)
	item := env.item(t, admin, 1, 10)
	rental := env.checkout(t, admin, item.ID, 1)

	d, err := env.deliveries.Create(ctx, admin, DeliveryInput{RentalID: rental.ID, Address: "3 High St"})
	require.NoError(t, err)
	assert.Nil(t, d.DeliveryPersonID)

	_, err = env.rentals.Cancel(ctx, admin, rental.ID)
	require.NoError(t, err)
	other := env.checkout(t, admin, item.ID, 1)
	_, err = env.rentals.Cancel(ctx, admin, other.ID)
	require.NoError(t, err)
	_, err = env.deliveries.Create(ctx, admin, DeliveryInput{RentalID: other.ID, Address: "x"})
	assertKind(t, err, KindValidation)
}
