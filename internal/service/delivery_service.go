package service

import (
	"context"
	"errors"
	"strings"

	"rentalhub/internal/database"
	"rentalhub/internal/domain"
	"rentalhub/internal/events"
	"rentalhub/internal/metrics"
	"rentalhub/internal/models"

	"github.com/rs/zerolog"
)

type DeliveryInput struct {
	RentalID         int64  `json:"rental_id"`
	Address          string `json:"address"`
	DeliveryPersonID *int64 `json:"delivery_person_id"`
	Notes            string `json:"notes"`
}

type DeliveryService struct {
	deliveries domain.DeliveryRepository
	rentals    domain.RentalRepository
	users      domain.UserRepository
	cache      *CatalogCache
	notifier
}

func NewDeliveryService(
	deliveries domain.DeliveryRepository,
	rentals domain.RentalRepository,
	users domain.UserRepository,
	cache *CatalogCache,
	eventBus domain.EventPublisher,
	audit domain.AuditSink,
	logger *zerolog.Logger,
) *DeliveryService {
	return &DeliveryService{
		deliveries: deliveries,
		rentals:    rentals,
		users:      users,
		cache:      cache,
		notifier:   newNotifier(eventBus, audit, logger),
	}
}

// Create schedules a delivery. Without an explicit courier the first delivery user is assigned.
func (s *DeliveryService) Create(ctx context.Context, actor models.Actor, in DeliveryInput) (*models.Delivery, error) {
	if !actor.IsAdmin() {
		return nil, forbiddenError("Admin access required")
	}
	address := strings.TrimSpace(in.Address)
	if in.RentalID <= 0 || address == "" {
		return nil, validationError("Rental ID and address are required")
	}

	rental, err := s.rentals.GetRental(ctx, in.RentalID)
	if err != nil {
		return nil, storeError(err, "Rental not found", "get rental")
	}
	if rental.IsTerminal() {
		return nil, validationError("Cannot schedule a delivery for a " + rental.Status + " rental")
	}

	personID, err := s.courier(ctx, in.DeliveryPersonID)
	if err != nil {
		return nil, err
	}

	d := &models.Delivery{
		RentalID:         in.RentalID,
		DeliveryPersonID: personID,
		Status:           models.DeliveryAssigned,
		Address:          address,
		Notes:            strings.TrimSpace(in.Notes),
	}
	if err := s.deliveries.CreateDelivery(ctx, d); err != nil {
		return nil, storeError(err, "Delivery not found", "create delivery")
	}
	metrics.IncDelivery(models.DeliveryAssigned)

	s.publish(events.EventDeliveryCreated, deliveryPayload(d, actor))
	s.record(ctx, actor, "delivery.create", "Created delivery ID: %d for rental ID: %d", d.ID, d.RentalID)
	return d, nil
}

func (s *DeliveryService) courier(ctx context.Context, requested *int64) (*int64, error) {
	if requested != nil {
		user, err := s.users.GetUserByID(ctx, *requested)
		if err != nil {
			return nil, storeError(err, "Delivery person not found", "get delivery person")
		}
		if user.Role != models.RoleDelivery {
			return nil, validationError("Assigned user is not a delivery person")
		}
		return &user.ID, nil
	}

	user, err := s.users.FirstUserByRole(ctx, models.RoleDelivery)
	if errors.Is(err, database.ErrNotFound) {
		s.logger.Warn().Msg("No delivery users, delivery left unassigned")
		return nil, nil
	}
	if err != nil {
		return nil, storeError(err, "", "find delivery person")
	}
	return &user.ID, nil
}

func deliveryPayload(d *models.Delivery, actor models.Actor) events.DeliveryEventPayload {
	p := events.DeliveryEventPayload{
		DeliveryID: d.ID,
		RentalID:   d.RentalID,
		Status:     d.Status,
		ActorID:    actor.UserID,
	}
	if d.DeliveryPersonID != nil {
		p.DeliveryPersonID = *d.DeliveryPersonID
	}
	return p
}

// assigned loads a delivery the actor may update: admins any, couriers their own.
func (s *DeliveryService) assigned(ctx context.Context, actor models.Actor, id int64) (*models.Delivery, error) {
	if !actor.IsAdmin() && !actor.IsDelivery() {
		return nil, forbiddenError("Delivery access required")
	}
	d, err := s.deliveries.GetDelivery(ctx, id)
	if err != nil {
		return nil, storeError(err, "Delivery not found", "get delivery")
	}
	if !actor.IsAdmin() && !d.AssignedTo(actor.UserID) {
		return nil, forbiddenError("You can only update your own assigned deliveries")
	}
	return d, nil
}

// MarkDelivered moves assigned -> delivered; the rental becomes active in the same transaction.
func (s *DeliveryService) MarkDelivered(ctx context.Context, actor models.Actor, id int64) (*models.Delivery, error) {
	d, err := s.assigned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if d.Status != models.DeliveryAssigned {
		return nil, validationError("Delivery already " + d.Status)
	}

	d, err = s.deliveries.MarkDelivered(ctx, id)
	if err != nil {
		return nil, storeError(err, "Delivery not found", "mark delivered")
	}
	metrics.IncDelivery(models.DeliveryDelivered)

	s.publish(events.EventDeliveryDelivered, deliveryPayload(d, actor))
	s.record(ctx, actor, "delivery.delivered", "Marked delivery ID: %d as delivered", d.ID)
	return d, nil
}

// MarkReturned moves delivered -> returned and completes the rental, releasing its units.
func (s *DeliveryService) MarkReturned(ctx context.Context, actor models.Actor, id int64, note string) (*models.Delivery, error) {
	d, err := s.assigned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	switch d.Status {
	case models.DeliveryAssigned:
		return nil, validationError("Cannot mark as returned before delivery")
	case models.DeliveryReturned:
		return nil, validationError("Delivery already marked as returned")
	}

	d, err = s.deliveries.MarkReturned(ctx, id, strings.TrimSpace(note))
	if err != nil {
		return nil, storeError(err, "Delivery not found", "mark returned")
	}
	metrics.IncDelivery(models.DeliveryReturned)
	s.cache.Invalidate(ctx)

	s.publish(events.EventDeliveryReturned, deliveryPayload(d, actor))
	s.record(ctx, actor, "delivery.returned", "Marked delivery ID: %d as returned", d.ID)
	return d, nil
}

func (s *DeliveryService) ListAll(ctx context.Context, actor models.Actor) ([]*models.Delivery, error) {
	if !actor.IsAdmin() {
		return nil, forbiddenError("Admin access required")
	}
	deliveries, err := s.deliveries.ListDeliveries(ctx, 0)
	return deliveries, storeError(err, "", "list deliveries")
}

// ListAssigned returns the courier's open deliveries.
func (s *DeliveryService) ListAssigned(ctx context.Context, actor models.Actor) ([]*models.Delivery, error) {
	if !actor.IsDelivery() {
		return nil, forbiddenError("Delivery access required")
	}
	deliveries, err := s.deliveries.ListDeliveries(ctx, actor.UserID, models.DeliveryAssigned, models.DeliveryDelivered)
	return deliveries, storeError(err, "", "list deliveries")
}
