package models

import "time"

type Equipment struct {
	ID                int64     `json:"id" yaml:"id"`
	Name              string    `json:"name" yaml:"name"`
	Category          string    `json:"category" yaml:"category"`
	CustomCategory    string    `json:"custom_category,omitempty" yaml:"custom_category"`
	Description       string    `json:"description" yaml:"description"`
	TotalQuantity     int64     `json:"quantity" yaml:"quantity"`
	AvailableQuantity int64     `json:"available_quantity" yaml:"available_quantity"`
	DailyRate         float64   `json:"daily_rate" yaml:"daily_rate"`
	Status            string    `json:"status" yaml:"status"`
	Approved          bool      `json:"approved" yaml:"approved"`
	ApprovedBy        *int64    `json:"approved_by,omitempty" yaml:"-"`
	ApprovalNotes     string    `json:"approval_notes,omitempty" yaml:"-"`
	CreatedBy         *int64    `json:"created_by,omitempty" yaml:"-"`
	Image             string    `json:"image,omitempty" yaml:"image"`
	CreatedAt         time.Time `json:"created_at" yaml:"-"`
	UpdatedAt         time.Time `json:"updated_at" yaml:"-"`
}

// IsRentable reports whether new checkouts may reserve units of e.
func (e *Equipment) IsRentable() bool {
	return e.Status == EquipmentAvailable && e.Approved
}

// CategoryLabel returns the custom label for "Others", the category otherwise.
func (e *Equipment) CategoryLabel() string {
	if e.Category == CategoryOthers && e.CustomCategory != "" {
		return e.CustomCategory
	}
	return e.Category
}

// EquipmentFilter narrows catalog listings. Nil fields are not applied.
type EquipmentFilter struct {
	Category *string
	Status   *string
	Approved *bool
}
