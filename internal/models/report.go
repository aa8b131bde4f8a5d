package models

import (
	"errors"
	"time"
)

var ErrUnknownPeriod = errors.New("unknown report period")

// ReportWindow returns [start of today, now] for daily and [first of month, now] for monthly.
// An empty period means daily.
func ReportWindow(period string, now time.Time) (string, time.Time, time.Time, error) {
	y, m, d := now.Date()
	switch period {
	case "", PeriodDaily:
		return PeriodDaily, time.Date(y, m, d, 0, 0, 0, 0, now.Location()), now, nil
	case PeriodMonthly:
		return PeriodMonthly, time.Date(y, m, 1, 0, 0, 0, 0, now.Location()), now, nil
	default:
		return "", time.Time{}, time.Time{}, ErrUnknownPeriod
	}
}

type RentalReport struct {
	Period        string         `json:"period"`
	StartDate     time.Time      `json:"start_date"`
	EndDate       time.Time      `json:"end_date"`
	TotalRentals  int            `json:"total_rentals"`
	TotalAmount   float64        `json:"total_amount"`
	AverageAmount float64        `json:"average_amount"`
	ByStatus      map[string]int `json:"by_status"`
	ByCategory    map[string]int `json:"by_category"`
	Rentals       []*Rental      `json:"rentals"`
}

type EquipmentReport struct {
	TotalEquipment  int            `json:"total_equipment"`
	TotalUnits      int64          `json:"total_units"`
	AvailableUnits  int64          `json:"available_units"`
	RentedUnits     int64          `json:"rented_units"`
	PendingApproval int            `json:"pending_approval"`
	ByStatus        map[string]int `json:"by_status"`
	ByCategory      map[string]int `json:"by_category"`
	Equipment       []*Equipment   `json:"equipment"`
}

type DeliveryReport struct {
	Period          string         `json:"period"`
	StartDate       time.Time      `json:"start_date"`
	EndDate         time.Time      `json:"end_date"`
	TotalDeliveries int            `json:"total_deliveries"`
	ByStatus        map[string]int `json:"by_status"`
	Deliveries      []*Delivery    `json:"deliveries"`
}

type MethodSummary struct {
	Count  int     `json:"count"`
	Amount float64 `json:"amount"`
}

type PaymentReport struct {
	Period          string                   `json:"period"`
	StartDate       time.Time                `json:"start_date"`
	EndDate         time.Time                `json:"end_date"`
	TotalPayments   int                      `json:"total_payments"`
	TotalAmount     float64                  `json:"total_amount"`
	CompletedAmount float64                  `json:"completed_amount"`
	ByStatus        map[string]int           `json:"by_status"`
	ByMethod        map[string]MethodSummary `json:"by_method"`
	Payments        []*Payment               `json:"payments"`
}

type AdminStats struct {
	TotalUsers       int     `json:"total_users"`
	TotalEquipment   int     `json:"total_equipment"`
	TotalRentals     int     `json:"total_rentals"`
	ActiveRentals    int     `json:"active_rentals"`
	PendingRentals   int     `json:"pending_rentals"`
	OverdueRentals   int     `json:"overdue_rentals"`
	PendingEquipment int     `json:"pending_equipment"`
	TotalRevenue     float64 `json:"total_revenue"`
}

type AdminDashboard struct {
	Stats         AdminStats `json:"stats"`
	RecentRentals []*Rental  `json:"recent_rentals"`
}

type UserStats struct {
	TotalRentals       int     `json:"total_rentals"`
	ActiveRentals      int     `json:"active_rentals"`
	CompletedRentals   int     `json:"completed_rentals"`
	PendingRentals     int     `json:"pending_rentals"`
	TotalSpent         float64 `json:"total_spent"`
	AvailableEquipment int     `json:"available_equipment"`
}

type UserDashboard struct {
	Stats         UserStats `json:"stats"`
	RecentRentals []*Rental `json:"recent_rentals"`
}

type DeliveryStats struct {
	TotalDeliveries     int `json:"total_deliveries"`
	AssignedDeliveries  int `json:"assigned_deliveries"`
	DeliveredDeliveries int `json:"delivered_deliveries"`
	ReturnedDeliveries  int `json:"returned_deliveries"`
}

type DeliveryDashboard struct {
	Stats             DeliveryStats `json:"stats"`
	PendingDeliveries []*Delivery   `json:"pending_deliveries"`
}
