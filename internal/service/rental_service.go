package service

import (
	"context"
	"strings"
	"time"

	"rentalhub/internal/domain"
	"rentalhub/internal/events"
	"rentalhub/internal/metrics"
	"rentalhub/internal/models"

	"github.com/rs/zerolog"
)

type CheckoutInput struct {
	EquipmentID int64 `json:"equipment_id"`
	// StartDate defaults to now.
	StartDate *time.Time `json:"start_date"`
	EndDate   time.Time  `json:"end_date"`
	Quantity  int64      `json:"quantity"`
	Notes     string     `json:"notes"`
}

type RentalService struct {
	rentals       domain.RentalRepository
	cache         *CatalogCache
	initialStatus string
	now           func() time.Time
	notifier
}

func NewRentalService(
	rentals domain.RentalRepository,
	cache *CatalogCache,
	initialStatus string,
	eventBus domain.EventPublisher,
	audit domain.AuditSink,
	logger *zerolog.Logger,
) *RentalService {
	if initialStatus == "" {
		initialStatus = models.RentalPending
	}
	return &RentalService{
		rentals:       rentals,
		cache:         cache,
		initialStatus: initialStatus,
		now:           time.Now,
		notifier:      newNotifier(eventBus, audit, logger),
	}
}

// Checkout reserves units for the actor and records the rental.
func (s *RentalService) Checkout(ctx context.Context, actor models.Actor, in CheckoutInput) (*models.Rental, error) {
	if in.EquipmentID <= 0 || in.EndDate.IsZero() {
		return nil, validationError("Equipment ID and end date are required")
	}
	if in.Quantity == 0 {
		in.Quantity = models.DefaultRentalQuantity
	}
	if in.Quantity < 0 {
		return nil, validationError("Quantity must be at least 1")
	}

	// dates are stored with second precision; compare them the way they will be persisted
	now := s.now().UTC().Truncate(time.Second)
	start := now
	if in.StartDate != nil && !in.StartDate.IsZero() {
		start = in.StartDate.UTC().Truncate(time.Second)
	}
	end := in.EndDate.UTC().Truncate(time.Second)
	if !end.After(start) {
		return nil, validationError("End date must be after start date")
	}
	if !end.After(now) {
		return nil, validationError("End date must be in the future")
	}

	r := &models.Rental{
		EquipmentID: in.EquipmentID,
		UserID:      actor.UserID,
		Status:      s.initialStatus,
		StartDate:   start,
		EndDate:     end,
		Quantity:    in.Quantity,
		Notes:       strings.TrimSpace(in.Notes),
	}
	if err := s.rentals.Checkout(ctx, r); err != nil {
		metrics.IncCheckout("rejected")
		return nil, storeError(err, "Equipment not found", "checkout")
	}
	metrics.IncCheckout("ok")
	s.cache.Invalidate(ctx)

	s.publish(events.EventRentalCreated, rentalPayload(r, actor, false))
	s.record(ctx, actor, "rental.checkout", "Checked out equipment: %s (ID: %d) x%d", r.EquipmentName, r.EquipmentID, r.Quantity)
	return r, nil
}

func rentalPayload(r *models.Rental, actor models.Actor, overdue bool) events.RentalEventPayload {
	return events.RentalEventPayload{
		RentalID:    r.ID,
		EquipmentID: r.EquipmentID,
		UserID:      r.UserID,
		Status:      r.Status,
		Quantity:    r.Quantity,
		TotalCost:   r.TotalCost,
		EndDate:     r.EndDate,
		Overdue:     overdue,
		ActorID:     actor.UserID,
	}
}

// owned loads a rental the actor is allowed to act on.
func (s *RentalService) owned(ctx context.Context, actor models.Actor, id int64, denied string) (*models.Rental, error) {
	r, err := s.rentals.GetRental(ctx, id)
	if err != nil {
		return nil, storeError(err, "Rental not found", "get rental")
	}
	if !actor.Owns(r.UserID) {
		return nil, forbiddenError(denied)
	}
	return r, nil
}

// Return completes the rental and gives its units back. Overdue is informational.
func (s *RentalService) Return(ctx context.Context, actor models.Actor, id int64) (*models.ReturnResult, error) {
	r, err := s.owned(ctx, actor, id, "You do not have permission to return this rental")
	if err != nil {
		return nil, err
	}
	if r.IsTerminal() {
		return nil, validationError("Rental has already been " + r.Status)
	}
	overdue := s.now().After(r.EndDate)

	r, err = s.rentals.ReturnRental(ctx, id)
	if err != nil {
		if IsKind(storeError(err, "", ""), KindValidation) {
			return nil, validationError("Rental has already been closed")
		}
		return nil, storeError(err, "Rental not found", "return rental")
	}
	metrics.AddReleased("return", r.Quantity)
	s.cache.Invalidate(ctx)

	suffix := ""
	if overdue {
		suffix = " - OVERDUE"
	}
	s.publish(events.EventRentalReturned, rentalPayload(r, actor, overdue))
	s.record(ctx, actor, "rental.return", "Returned equipment: %s (ID: %d)%s", r.EquipmentName, r.EquipmentID, suffix)
	return &models.ReturnResult{Rental: r, Overdue: overdue}, nil
}

// Cancel closes the rental and releases its reserved units.
func (s *RentalService) Cancel(ctx context.Context, actor models.Actor, id int64) (*models.Rental, error) {
	r, err := s.owned(ctx, actor, id, "You do not have permission to cancel this rental")
	if err != nil {
		return nil, err
	}
	if r.IsTerminal() {
		return nil, validationError("Cannot cancel a " + r.Status + " rental")
	}

	r, err = s.rentals.CancelRental(ctx, id)
	if err != nil {
		if IsKind(storeError(err, "", ""), KindValidation) {
			return nil, validationError("Rental has already been closed")
		}
		return nil, storeError(err, "Rental not found", "cancel rental")
	}
	metrics.AddReleased("cancel", r.Quantity)
	s.cache.Invalidate(ctx)

	s.publish(events.EventRentalCancelled, rentalPayload(r, actor, false))
	s.record(ctx, actor, "rental.cancel", "Cancelled rental ID: %d", r.ID)
	return r, nil
}

// UpdateStatus is the admin workflow write between open statuses. It never changes
// inventory, so completing or cancelling goes through Return / Cancel.
func (s *RentalService) UpdateStatus(ctx context.Context, actor models.Actor, id int64, status string) (*models.Rental, error) {
	if !actor.IsAdmin() {
		return nil, forbiddenError("Admin access required")
	}
	if !models.IsValidRentalStatus(status) {
		return nil, validationError("Invalid status")
	}
	if models.IsTerminalRentalStatus(status) {
		return nil, validationError("Use return or cancel to close a rental")
	}
	if err := s.rentals.UpdateRentalStatus(ctx, id, status); err != nil {
		return nil, storeError(err, "Rental not found", "update rental status")
	}
	r, err := s.rentals.GetRental(ctx, id)
	if err != nil {
		return nil, storeError(err, "Rental not found", "get rental")
	}

	s.publish(events.EventRentalStatusChanged, rentalPayload(r, actor, false))
	s.record(ctx, actor, "rental.status", "Updated rental ID: %d status to %s", id, status)
	return r, nil
}

func (s *RentalService) Get(ctx context.Context, actor models.Actor, id int64) (*models.Rental, error) {
	return s.owned(ctx, actor, id, "Not authorized to view this rental")
}

func (s *RentalService) list(ctx context.Context, filter models.RentalFilter) ([]*models.Rental, error) {
	rentals, err := s.rentals.ListRentals(ctx, filter)
	return rentals, storeError(err, "", "list rentals")
}

func (s *RentalService) ListAll(ctx context.Context, actor models.Actor) ([]*models.Rental, error) {
	if !actor.IsAdmin() {
		return nil, forbiddenError("Admin access required")
	}
	return s.list(ctx, models.RentalFilter{})
}

func (s *RentalService) ListMine(ctx context.Context, actor models.Actor) ([]*models.Rental, error) {
	return s.list(ctx, models.RentalFilter{UserID: actor.UserID})
}

func (s *RentalService) ListByUser(ctx context.Context, actor models.Actor, userID int64) ([]*models.Rental, error) {
	if !actor.Owns(userID) {
		return nil, forbiddenError("Not authorized to view these rentals")
	}
	return s.list(ctx, models.RentalFilter{UserID: userID})
}

func (s *RentalService) ListByEquipment(ctx context.Context, actor models.Actor, equipmentID int64) ([]*models.Rental, error) {
	if !actor.IsAdmin() {
		return nil, forbiddenError("Admin access required")
	}
	return s.list(ctx, models.RentalFilter{EquipmentID: equipmentID})
}

// ListActive returns every active rental for admins and the caller's own otherwise.
func (s *RentalService) ListActive(ctx context.Context, actor models.Actor) ([]*models.Rental, error) {
	filter := models.RentalFilter{Status: models.RentalActive}
	if !actor.IsAdmin() {
		filter.UserID = actor.UserID
	}
	return s.list(ctx, filter)
}

func (s *RentalService) ListOverdue(ctx context.Context, actor models.Actor) ([]*models.Rental, error) {
	if !actor.IsAdmin() {
		return nil, forbiddenError("Admin access required")
	}
	rentals, err := s.rentals.ListOverdueRentals(ctx, s.now())
	return rentals, storeError(err, "", "list overdue rentals")
}

// SweepOverdue publishes an overdue event per late rental and refreshes the gauge.
func (s *RentalService) SweepOverdue(ctx context.Context) (int, error) {
	rentals, err := s.rentals.ListOverdueRentals(ctx, s.now())
	if err != nil {
		return 0, storeError(err, "", "list overdue rentals")
	}
	metrics.SetOverdue(len(rentals))

	system := models.Actor{}
	for _, r := range rentals {
		s.publish(events.EventRentalOverdue, rentalPayload(r, system, true))
	}
	if len(rentals) > 0 {
		s.logger.Info().Int("count", len(rentals)).Msg("Overdue rentals found")
	}
	return len(rentals), nil
}
