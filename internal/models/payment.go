package models

import "time"

type Payment struct {
	ID            int64      `json:"id"`
	RentalID      int64      `json:"rental_id"`
	UserID        int64      `json:"user_id"`
	Amount        float64    `json:"amount"`
	Method        string     `json:"method"`
	Status        string     `json:"status"`
	TransactionID string     `json:"transaction_id,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	UserName      string `json:"user_name,omitempty"`
	EquipmentName string `json:"equipment_name,omitempty"`
}

// InitialPaymentStatus: card and bank transfers settle immediately, cash waits for an admin.
func InitialPaymentStatus(method string) string {
	if method == MethodCash {
		return PaymentPending
	}
	return PaymentCompleted
}
