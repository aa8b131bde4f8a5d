package service

import (
	"context"
	"crypto/rand"
	"strings"
	"time"

	"rentalhub/internal/domain"
	"rentalhub/internal/events"
	"rentalhub/internal/metrics"
	"rentalhub/internal/models"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

type PaymentInput struct {
	RentalID int64   `json:"rental_id"`
	Amount   float64 `json:"amount"`
	Method   string  `json:"method"`
	Notes    string  `json:"notes"`
}

type PaymentStatusInput struct {
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
}

type PaymentService struct {
	payments domain.PaymentRepository
	rentals  domain.RentalRepository
	now      func() time.Time
	notifier
}

func NewPaymentService(
	payments domain.PaymentRepository,
	rentals domain.RentalRepository,
	eventBus domain.EventPublisher,
	audit domain.AuditSink,
	logger *zerolog.Logger,
) *PaymentService {
	return &PaymentService{
		payments: payments,
		rentals:  rentals,
		now:      time.Now,
		notifier: newNotifier(eventBus, audit, logger),
	}
}

// newTransactionID returns a sortable reference for settled payments.
func newTransactionID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return "TXN-" + ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Create records a payment against a rental. The payer is always the rental owner.
func (s *PaymentService) Create(ctx context.Context, actor models.Actor, in PaymentInput) (*models.Payment, error) {
	if in.RentalID <= 0 || in.Method == "" {
		return nil, validationError("Rental ID, amount, and payment method are required")
	}
	if in.Amount < 0 {
		return nil, validationError("Amount cannot be negative")
	}
	if !models.IsValidPaymentMethod(in.Method) {
		return nil, validationError("Invalid payment method")
	}

	rental, err := s.rentals.GetRental(ctx, in.RentalID)
	if err != nil {
		return nil, storeError(err, "Rental not found", "get rental")
	}
	if !actor.Owns(rental.UserID) {
		return nil, forbiddenError("You can only make payments for your own rentals")
	}

	p := &models.Payment{
		RentalID: rental.ID,
		UserID:   rental.UserID,
		Amount:   in.Amount,
		Method:   in.Method,
		Status:   models.InitialPaymentStatus(in.Method),
		Notes:    strings.TrimSpace(in.Notes),
	}
	if p.Status == models.PaymentCompleted {
		now := s.now()
		p.TransactionID = newTransactionID(now)
		p.ProcessedAt = &now
	}

	if err := s.payments.CreatePayment(ctx, p); err != nil {
		return nil, storeError(err, "Payment not found", "create payment")
	}
	metrics.IncPayment(p.Method, p.Status)

	s.publish(events.EventPaymentCreated, paymentPayload(p, actor))
	s.record(ctx, actor, "payment.create", "Created %s payment ID: %d of %.2f for rental ID: %d", p.Method, p.ID, p.Amount, p.RentalID)
	return p, nil
}

func paymentPayload(p *models.Payment, actor models.Actor) events.PaymentEventPayload {
	return events.PaymentEventPayload{
		PaymentID: p.ID,
		RentalID:  p.RentalID,
		UserID:    p.UserID,
		Amount:    p.Amount,
		Method:    p.Method,
		Status:    p.Status,
		ActorID:   actor.UserID,
	}
}

// List returns all payments for admins and the caller's own otherwise.
func (s *PaymentService) List(ctx context.Context, actor models.Actor) ([]*models.Payment, error) {
	var userID int64
	if !actor.IsAdmin() {
		userID = actor.UserID
	}
	payments, err := s.payments.ListPayments(ctx, userID)
	return payments, storeError(err, "", "list payments")
}

func (s *PaymentService) Get(ctx context.Context, actor models.Actor, id int64) (*models.Payment, error) {
	p, err := s.payments.GetPayment(ctx, id)
	if err != nil {
		return nil, storeError(err, "Payment not found", "get payment")
	}
	if !actor.Owns(p.UserID) {
		return nil, forbiddenError("You can only view your own payments")
	}
	return p, nil
}

// UpdateStatus is the admin transition. Completing without a reference stamps processedAt.
func (s *PaymentService) UpdateStatus(ctx context.Context, actor models.Actor, id int64, in PaymentStatusInput) (*models.Payment, error) {
	if !actor.IsAdmin() {
		return nil, forbiddenError("Admin access required")
	}
	if in.Status == "" {
		return nil, validationError("Status is required")
	}
	if !models.IsValidPaymentStatus(in.Status) {
		return nil, validationError("Invalid status")
	}

	txID := strings.TrimSpace(in.TransactionID)
	var processedAt *time.Time
	if in.Status == models.PaymentCompleted && txID == "" {
		now := s.now()
		processedAt = &now
	}

	if err := s.payments.UpdatePaymentStatus(ctx, id, in.Status, txID, processedAt); err != nil {
		return nil, storeError(err, "Payment not found", "update payment status")
	}
	p, err := s.payments.GetPayment(ctx, id)
	if err != nil {
		return nil, storeError(err, "Payment not found", "get payment")
	}
	metrics.IncPayment(p.Method, p.Status)

	s.publish(events.EventPaymentStatusChanged, paymentPayload(p, actor))
	s.record(ctx, actor, "payment.status", "Updated payment ID: %d status to %s", id, in.Status)
	return p, nil
}
