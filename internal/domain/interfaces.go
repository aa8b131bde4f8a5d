package domain

import (
	"context"
	"time"

	"rentalhub/internal/models"
)

type EquipmentRepository interface {
	CreateEquipment(ctx context.Context, e *models.Equipment) error
	GetEquipment(ctx context.Context, id int64) (*models.Equipment, error)
	ListEquipment(ctx context.Context, filter models.EquipmentFilter) ([]*models.Equipment, error)
	ListCategories(ctx context.Context) ([]string, error)
	UpdateEquipment(ctx context.Context, e *models.Equipment, available *int64) error
	ApproveEquipment(ctx context.Context, id int64, approved bool, approverID int64, notes string) error
	DeleteEquipment(ctx context.Context, id int64) error
	SetAvailableQuantity(ctx context.Context, id, available int64) error
	ReserveUnits(ctx context.Context, id, n int64) error
	ReleaseUnits(ctx context.Context, id, n int64) error
	CountEquipment(ctx context.Context, filter models.EquipmentFilter) (int, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	FirstUserByRole(ctx context.Context, role string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	ListUsersByRole(ctx context.Context, role string) ([]*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	DeleteUser(ctx context.Context, id int64) error
	CountUsers(ctx context.Context) (int64, error)
}

type RentalRepository interface {
	Checkout(ctx context.Context, r *models.Rental) error
	GetRental(ctx context.Context, id int64) (*models.Rental, error)
	ListRentals(ctx context.Context, filter models.RentalFilter) ([]*models.Rental, error)
	ListOverdueRentals(ctx context.Context, now time.Time) ([]*models.Rental, error)
	ListRentalsCreatedBetween(ctx context.Context, userID int64, start, end time.Time) ([]*models.Rental, error)
	ReturnRental(ctx context.Context, id int64) (*models.Rental, error)
	CancelRental(ctx context.Context, id int64) (*models.Rental, error)
	UpdateRentalStatus(ctx context.Context, id int64, status string) error
	RentalCountsByStatus(ctx context.Context, userID int64) (map[string]int, error)
	RentalRevenue(ctx context.Context, userID int64, status string) (float64, error)
	CountOverdueRentals(ctx context.Context, now time.Time) (int, error)
}

type DeliveryRepository interface {
	CreateDelivery(ctx context.Context, d *models.Delivery) error
	GetDelivery(ctx context.Context, id int64) (*models.Delivery, error)
	ListDeliveries(ctx context.Context, personID int64, statuses ...string) ([]*models.Delivery, error)
	ListDeliveriesCreatedBetween(ctx context.Context, start, end time.Time) ([]*models.Delivery, error)
	MarkDelivered(ctx context.Context, id int64) (*models.Delivery, error)
	MarkReturned(ctx context.Context, id int64, note string) (*models.Delivery, error)
	DeliveryCountsByStatus(ctx context.Context, personID int64) (map[string]int, error)
}

type PaymentRepository interface {
	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPayment(ctx context.Context, id int64) (*models.Payment, error)
	ListPayments(ctx context.Context, userID int64) ([]*models.Payment, error)
	ListPaymentsCreatedBetween(ctx context.Context, start, end time.Time) ([]*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status, transactionID string, processedAt *time.Time) error
}

type ActivityLogRepository interface {
	CreateActivityLog(ctx context.Context, entry *models.ActivityLog) error
	ListActivityLogs(ctx context.Context, userID int64, limit int) ([]*models.ActivityLog, error)
}

// Repository is the full storage surface implemented by database.DB.
type Repository interface {
	EquipmentRepository
	UserRepository
	RentalRepository
	DeliveryRepository
	PaymentRepository
	ActivityLogRepository
	PingContext(ctx context.Context) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// AuditSink accepts activity entries for asynchronous persistence.
type AuditSink interface {
	Enqueue(ctx context.Context, entry *models.ActivityLog) error
}

// CacheStore is a small key/value cache with a fixed-window rate limiter.
type CacheStore interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
