package models

import (
	"math"
	"time"
)

type Rental struct {
	ID          int64      `json:"id"`
	EquipmentID int64      `json:"equipment_id"`
	UserID      int64      `json:"user_id"`
	Status      string     `json:"status"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     time.Time  `json:"end_date"`
	Quantity    int64      `json:"quantity"`
	TotalCost   float64    `json:"total_cost"`
	Notes       string     `json:"notes,omitempty"`
	ReturnedAt  *time.Time `json:"returned_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Populated by joined queries.
	EquipmentName     string `json:"equipment_name,omitempty"`
	EquipmentCategory string `json:"equipment_category,omitempty"`
	UserName          string `json:"user_name,omitempty"`
	UserEmail         string `json:"user_email,omitempty"`
	UserPhone         string `json:"user_phone,omitempty"`
}

// IsTerminal reports whether the rental no longer holds reserved units.
func (r *Rental) IsTerminal() bool {
	return IsTerminalRentalStatus(r.Status)
}

// IsOverdue is true for an active rental whose end date has passed.
func (r *Rental) IsOverdue(now time.Time) bool {
	return r.Status == RentalActive && r.EndDate.Before(now)
}

func IsTerminalRentalStatus(status string) bool {
	return status == RentalCompleted || status == RentalCancelled
}

// RentalDays counts started days in [start, end).
func RentalDays(start, end time.Time) int64 {
	hours := end.Sub(start).Hours()
	if hours <= 0 {
		return 0
	}
	return int64(math.Ceil(hours / HoursPerDay))
}

// RentalCost is ceil(days) × dailyRate × quantity.
func RentalCost(start, end time.Time, dailyRate float64, quantity int64) float64 {
	return float64(RentalDays(start, end)) * dailyRate * float64(quantity)
}

// RentalFilter narrows rental listings. Zero fields are not applied.
type RentalFilter struct {
	UserID      int64
	EquipmentID int64
	Status      string
	Limit       int
}

// ReturnResult is reported back to the caller after a return.
type ReturnResult struct {
	Rental  *Rental `json:"rental"`
	Overdue bool    `json:"overdue"`
}
