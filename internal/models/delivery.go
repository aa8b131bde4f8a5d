package models

import "time"

type Delivery struct {
	ID               int64      `json:"id"`
	RentalID         int64      `json:"rental_id"`
	DeliveryPersonID *int64     `json:"delivery_person_id,omitempty"`
	Status           string     `json:"status"`
	Address          string     `json:"address"`
	Notes            string     `json:"notes,omitempty"`
	DeliveredAt      *time.Time `json:"delivered_at,omitempty"`
	ReturnedAt       *time.Time `json:"returned_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	DeliveryPersonName string `json:"delivery_person_name,omitempty"`
	EquipmentName      string `json:"equipment_name,omitempty"`
	CustomerName       string `json:"customer_name,omitempty"`
	CustomerPhone      string `json:"customer_phone,omitempty"`
}

// AssignedTo reports whether the delivery belongs to the given courier.
func (d *Delivery) AssignedTo(userID int64) bool {
	return d.DeliveryPersonID != nil && *d.DeliveryPersonID == userID
}

// AppendNote adds a line to the existing notes instead of replacing them.
func AppendNote(existing, note string) string {
	if note == "" {
		return existing
	}
	if existing == "" {
		return note
	}
	return existing + "\n" + note
}
