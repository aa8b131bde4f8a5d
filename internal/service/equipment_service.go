package service

import (
	"context"
	"strings"

	"rentalhub/internal/domain"
	"rentalhub/internal/events"
	"rentalhub/internal/models"

	"github.com/rs/zerolog"
)

type EquipmentInput struct {
	Name           string  `json:"name"`
	Category       string  `json:"category"`
	CustomCategory string  `json:"custom_category"`
	Description    string  `json:"description"`
	Quantity       int64   `json:"quantity"`
	Available      *int64  `json:"available"`
	DailyRate      float64 `json:"daily_rate"`
	Status         string  `json:"status"`
	Image          string  `json:"image"`
}

// EquipmentUpdate is a partial update; nil fields keep their value.
type EquipmentUpdate struct {
	Name           *string  `json:"name"`
	Category       *string  `json:"category"`
	CustomCategory *string  `json:"custom_category"`
	Description    *string  `json:"description"`
	Quantity       *int64   `json:"quantity"`
	Available      *int64   `json:"available"`
	DailyRate      *float64 `json:"daily_rate"`
	Status         *string  `json:"status"`
	Image          *string  `json:"image"`
}

type ApprovalInput struct {
	Approved *bool  `json:"approved"`
	Notes    string `json:"notes"`
}

type EquipmentService struct {
	repo  domain.EquipmentRepository
	cache *CatalogCache
	notifier
}

func NewEquipmentService(
	repo domain.EquipmentRepository,
	cache *CatalogCache,
	eventBus domain.EventPublisher,
	audit domain.AuditSink,
	logger *zerolog.Logger,
) *EquipmentService {
	return &EquipmentService{
		repo:     repo,
		cache:    cache,
		notifier: newNotifier(eventBus, audit, logger),
	}
}

// Create adds an item. Items created by admins are approved right away,
// everything else waits for approval.
func (s *EquipmentService) Create(ctx context.Context, actor models.Actor, in EquipmentInput) (*models.Equipment, error) {
	e := &models.Equipment{
		Name:           strings.TrimSpace(in.Name),
		Category:       strings.TrimSpace(in.Category),
		CustomCategory: strings.TrimSpace(in.CustomCategory),
		Description:    strings.TrimSpace(in.Description),
		TotalQuantity:  in.Quantity,
		DailyRate:      in.DailyRate,
		Status:         in.Status,
		Image:          in.Image,
	}
	if e.Status == "" {
		e.Status = models.EquipmentAvailable
	}
	e.AvailableQuantity = e.TotalQuantity
	if in.Available != nil {
		e.AvailableQuantity = *in.Available
	}
	if err := validateEquipment(e); err != nil {
		return nil, err
	}

	creator := actor.UserID
	e.CreatedBy = &creator
	if actor.IsAdmin() {
		e.Approved = true
		e.ApprovedBy = &creator
	}

	if err := s.repo.CreateEquipment(ctx, e); err != nil {
		return nil, storeError(err, "Equipment not found", "create equipment")
	}
	s.cache.Invalidate(ctx)

	s.publish(events.EventEquipmentCreated, equipmentPayload(e, actor))
	s.record(ctx, actor, "equipment.create", "Created equipment: %s (ID: %d)", e.Name, e.ID)
	return e, nil
}

func validateEquipment(e *models.Equipment) error {
	if err := validateCatalogFields(e); err != nil {
		return err
	}
	if e.TotalQuantity < 0 || e.AvailableQuantity < 0 {
		return validationError("Quantities cannot be negative")
	}
	if e.AvailableQuantity > e.TotalQuantity {
		return validationError("Available quantity cannot exceed total quantity")
	}
	return nil
}

func validateCatalogFields(e *models.Equipment) error {
	if e.Name == "" || e.Category == "" {
		return validationError("Name, category, and quantity are required")
	}
	if !models.IsValidCategory(e.Category) {
		return validationError("Invalid category")
	}
	if e.Category == models.CategoryOthers && e.CustomCategory == "" {
		return validationError("Custom category is required for Others")
	}
	if e.Category != models.CategoryOthers {
		e.CustomCategory = ""
	}
	if !models.IsValidEquipmentStatus(e.Status) {
		return validationError("Invalid equipment status")
	}
	if e.DailyRate < 0 {
		return validationError("Daily rate cannot be negative")
	}
	return nil
}

func equipmentPayload(e *models.Equipment, actor models.Actor) events.EquipmentEventPayload {
	return events.EquipmentEventPayload{
		EquipmentID: e.ID,
		Name:        e.Name,
		Category:    e.Category,
		Status:      e.Status,
		Approved:    e.Approved,
		ActorID:     actor.UserID,
	}
}

// List returns the catalog. Non-admin callers only see approved items.
func (s *EquipmentService) List(ctx context.Context, actor models.Actor) ([]*models.Equipment, error) {
	if actor.IsAdmin() {
		items, err := s.repo.ListEquipment(ctx, models.EquipmentFilter{})
		return items, storeError(err, "", "list equipment")
	}
	return s.listPublic(ctx, catalogKeyAll, models.EquipmentFilter{})
}

func (s *EquipmentService) ListByCategory(ctx context.Context, actor models.Actor, category string) ([]*models.Equipment, error) {
	if category == "" {
		return nil, validationError("Category is required")
	}
	filter := models.EquipmentFilter{Category: &category}
	if actor.IsAdmin() {
		items, err := s.repo.ListEquipment(ctx, filter)
		return items, storeError(err, "", "list equipment")
	}
	return s.listPublic(ctx, catalogKeyCategory+category, filter)
}

func (s *EquipmentService) listPublic(ctx context.Context, key string, filter models.EquipmentFilter) ([]*models.Equipment, error) {
	var items []*models.Equipment
	if s.cache.get(ctx, key, &items) {
		return items, nil
	}

	approved := true
	filter.Approved = &approved
	items, err := s.repo.ListEquipment(ctx, filter)
	if err != nil {
		return nil, storeError(err, "", "list equipment")
	}
	s.cache.set(ctx, key, items)
	return items, nil
}

// Categories returns the distinct categories that have catalog entries.
func (s *EquipmentService) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	if s.cache.get(ctx, catalogKeyCategories, &categories) {
		return categories, nil
	}
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, storeError(err, "", "list categories")
	}
	s.cache.set(ctx, catalogKeyCategories, categories)
	return categories, nil
}

// Get hides unapproved items from everyone except admins and the creator.
func (s *EquipmentService) Get(ctx context.Context, actor models.Actor, id int64) (*models.Equipment, error) {
	e, err := s.repo.GetEquipment(ctx, id)
	if err != nil {
		return nil, storeError(err, "Equipment not found", "get equipment")
	}
	if !e.Approved && !actor.IsAdmin() && (e.CreatedBy == nil || *e.CreatedBy != actor.UserID) {
		return nil, notFoundError("Equipment not found")
	}
	return e, nil
}

func (s *EquipmentService) Update(ctx context.Context, actor models.Actor, id int64, in EquipmentUpdate) (*models.Equipment, error) {
	if !actor.IsAdmin() {
		return nil, forbiddenError("Admin access required")
	}
	e, err := s.repo.GetEquipment(ctx, id)
	if err != nil {
		return nil, storeError(err, "Equipment not found", "get equipment")
	}

	if in.Name != nil {
		e.Name = strings.TrimSpace(*in.Name)
	}
	if in.Category != nil {
		e.Category = strings.TrimSpace(*in.Category)
	}
	if in.CustomCategory != nil {
		e.CustomCategory = strings.TrimSpace(*in.CustomCategory)
	}
	if in.Description != nil {
		e.Description = strings.TrimSpace(*in.Description)
	}
	if in.Quantity != nil {
		e.TotalQuantity = *in.Quantity
	}
	if in.DailyRate != nil {
		e.DailyRate = *in.DailyRate
	}
	if in.Status != nil {
		e.Status = *in.Status
	}
	if in.Image != nil {
		e.Image = *in.Image
	}
	if err := validateCatalogFields(e); err != nil {
		return nil, err
	}
	// available quantity is moved by the store, the snapshot above may be stale
	if e.TotalQuantity < 0 || (in.Available != nil && *in.Available < 0) {
		return nil, validationError("Quantities cannot be negative")
	}
	if in.Available != nil && *in.Available > e.TotalQuantity {
		return nil, validationError("Available quantity cannot exceed total quantity")
	}

	if err := s.repo.UpdateEquipment(ctx, e, in.Available); err != nil {
		return nil, storeError(err, "Equipment not found", "update equipment")
	}
	s.cache.Invalidate(ctx)

	s.publish(events.EventEquipmentUpdated, equipmentPayload(e, actor))
	s.record(ctx, actor, "equipment.update", "Updated equipment: %s (ID: %d)", e.Name, e.ID)
	return e, nil
}

// Approve sets the approval flag. A missing flag means approve.
func (s *EquipmentService) Approve(ctx context.Context, actor models.Actor, id int64, in ApprovalInput) (*models.Equipment, error) {
	if !actor.IsAdmin() {
		return nil, forbiddenError("Admin access required")
	}
	approved := true
	if in.Approved != nil {
		approved = *in.Approved
	}

	if err := s.repo.ApproveEquipment(ctx, id, approved, actor.UserID, strings.TrimSpace(in.Notes)); err != nil {
		return nil, storeError(err, "Equipment not found", "approve equipment")
	}
	e, err := s.repo.GetEquipment(ctx, id)
	if err != nil {
		return nil, storeError(err, "Equipment not found", "get equipment")
	}
	s.cache.Invalidate(ctx)

	verb := "Approved"
	if !approved {
		verb = "Rejected"
	}
	s.publish(events.EventEquipmentApproved, equipmentPayload(e, actor))
	s.record(ctx, actor, "equipment.approve", "%s equipment: %s (ID: %d)", verb, e.Name, e.ID)
	return e, nil
}

func (s *EquipmentService) Delete(ctx context.Context, actor models.Actor, id int64) error {
	if !actor.IsAdmin() {
		return forbiddenError("Admin access required")
	}
	e, err := s.repo.GetEquipment(ctx, id)
	if err != nil {
		return storeError(err, "Equipment not found", "get equipment")
	}
	if err := s.repo.DeleteEquipment(ctx, id); err != nil {
		return storeError(err, "Equipment not found", "delete equipment")
	}
	s.cache.Invalidate(ctx)

	s.publish(events.EventEquipmentDeleted, equipmentPayload(e, actor))
	s.record(ctx, actor, "equipment.delete", "Deleted equipment: %s (ID: %d)", e.Name, e.ID)
	return nil
}

// SetAvailability is the corrective absolute write of the available counter.
func (s *EquipmentService) SetAvailability(ctx context.Context, actor models.Actor, id, available int64) (*models.Equipment, error) {
	if !actor.IsAdmin() {
		return nil, forbiddenError("Admin access required")
	}
	if available < 0 {
		return nil, validationError("Available quantity cannot be negative")
	}
	if err := s.repo.SetAvailableQuantity(ctx, id, available); err != nil {
		return nil, storeError(err, "Equipment not found", "set availability")
	}
	return s.afterCounterChange(ctx, actor, id)
}

// AdjustAvailability moves the counter by delta: negative takes units out, positive puts them back.
func (s *EquipmentService) AdjustAvailability(ctx context.Context, actor models.Actor, id, delta int64) (*models.Equipment, error) {
	if !actor.IsAdmin() {
		return nil, forbiddenError("Admin access required")
	}
	var err error
	switch {
	case delta < 0:
		err = s.repo.ReserveUnits(ctx, id, -delta)
	case delta > 0:
		if _, err = s.repo.GetEquipment(ctx, id); err == nil {
			err = s.repo.ReleaseUnits(ctx, id, delta)
		}
	default:
		return nil, validationError("Adjustment must not be zero")
	}
	if err != nil {
		return nil, storeError(err, "Equipment not found", "adjust availability")
	}
	return s.afterCounterChange(ctx, actor, id)
}

func (s *EquipmentService) afterCounterChange(ctx context.Context, actor models.Actor, id int64) (*models.Equipment, error) {
	e, err := s.repo.GetEquipment(ctx, id)
	if err != nil {
		return nil, storeError(err, "Equipment not found", "get equipment")
	}
	s.cache.Invalidate(ctx)

	s.publish(events.EventEquipmentUpdated, equipmentPayload(e, actor))
	s.record(ctx, actor, "equipment.availability", "Set available quantity of %s (ID: %d) to %d", e.Name, e.ID, e.AvailableQuantity)
	return e, nil
}
