package models

// Roles carried in the auth token.
const (
	RoleAdmin    = "admin"
	RoleUser     = "user"
	RoleDelivery = "delivery"
)

const (
	EquipmentAvailable   = "available"
	EquipmentMaintenance = "maintenance"
	EquipmentRetired     = "retired"
)

const (
	RentalPending   = "pending"
	RentalApproved  = "approved"
	RentalActive    = "active"
	RentalCompleted = "completed"
	RentalCancelled = "cancelled"
)

const (
	DeliveryAssigned  = "assigned"
	DeliveryDelivered = "delivered"
	DeliveryReturned  = "returned"
)

const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
	PaymentRefunded  = "refunded"
)

const (
	MethodCard         = "card"
	MethodCash         = "cash"
	MethodBankTransfer = "bank_transfer"
)

// CategoryOthers requires a free-text custom label on the equipment.
const CategoryOthers = "Others"

// Categories lists the closed set of equipment categories in display order.
var Categories = []string{
	"Power Tools",
	"Hand Tools",
	"Outdoor Equipment",
	"Cleaning Equipment",
	"Safety Equipment",
	"Measuring Equipment",
	CategoryOthers,
}

const (
	// MinPasswordLength минимальная длина пароля
	MinPasswordLength = 6

	// DefaultRentalQuantity количество единиц, если не указано в заявке
	DefaultRentalQuantity = 1

	// RecentItemsLimit размер списков "последние" на дашбордах
	RecentItemsLimit = 10

	// DefaultLogsLimit количество записей журнала по умолчанию
	DefaultLogsLimit = 100

	// HoursPerDay используется при расчёте стоимости аренды
	HoursPerDay = 24
)

const (
	PeriodDaily   = "daily"
	PeriodMonthly = "monthly"
)

func IsValidRole(role string) bool {
	switch role {
	case RoleAdmin, RoleUser, RoleDelivery:
		return true
	}
	return false
}

func IsValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

func IsValidEquipmentStatus(status string) bool {
	switch status {
	case EquipmentAvailable, EquipmentMaintenance, EquipmentRetired:
		return true
	}
	return false
}

func IsValidRentalStatus(status string) bool {
	switch status {
	case RentalPending, RentalApproved, RentalActive, RentalCompleted, RentalCancelled:
		return true
	}
	return false
}

func IsValidPaymentStatus(status string) bool {
	switch status {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

func IsValidPaymentMethod(method string) bool {
	switch method {
	case MethodCard, MethodCash, MethodBankTransfer:
		return true
	}
	return false
}
