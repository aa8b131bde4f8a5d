package export

import "rentalhub/internal/models"

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func RentalsTable(rentals []*models.Rental) *Table {
	t := &Table{
		Sheet: "Rentals",
		Headers: []string{
			"ID", "Equipment", "Category", "Customer", "Email", "Status",
			"Start Date", "End Date", "Quantity", "Total Cost", "Created At",
		},
		Widths: []float64{8, 28, 20, 22, 28, 12, 14, 14, 10, 12, 14},
	}
	for _, r := range rentals {
		t.Rows = append(t.Rows, []interface{}{
			r.ID, orNA(r.EquipmentName), orNA(r.EquipmentCategory), orNA(r.UserName), orNA(r.UserEmail),
			r.Status, r.StartDate, r.EndDate, r.Quantity, r.TotalCost, r.CreatedAt,
		})
	}
	return t
}

func EquipmentTable(items []*models.Equipment) *Table {
	t := &Table{
		Sheet: "Equipment",
		Headers: []string{
			"ID", "Name", "Category", "Daily Rate", "Status", "Approved",
			"Quantity", "Available", "Created At",
		},
		Widths: []float64{8, 28, 22, 12, 14, 10, 10, 10, 14},
	}
	for _, e := range items {
		approved := "No"
		if e.Approved {
			approved = "Yes"
		}
		t.Rows = append(t.Rows, []interface{}{
			e.ID, e.Name, e.CategoryLabel(), e.DailyRate, e.Status, approved,
			e.TotalQuantity, e.AvailableQuantity, e.CreatedAt,
		})
	}
	return t
}

func DeliveriesTable(deliveries []*models.Delivery) *Table {
	t := &Table{
		Sheet: "Deliveries",
		Headers: []string{
			"ID", "Rental ID", "Equipment", "Customer", "Phone", "Delivery Person",
			"Address", "Status", "Delivered At", "Returned At", "Created At",
		},
		Widths: []float64{8, 10, 28, 22, 16, 22, 36, 12, 14, 14, 14},
	}
	for _, d := range deliveries {
		t.Rows = append(t.Rows, []interface{}{
			d.ID, d.RentalID, orNA(d.EquipmentName), orNA(d.CustomerName), orNA(d.CustomerPhone),
			orNA(d.DeliveryPersonName), d.Address, d.Status, d.DeliveredAt, d.ReturnedAt, d.CreatedAt,
		})
	}
	return t
}

func PaymentsTable(payments []*models.Payment) *Table {
	t := &Table{
		Sheet: "Payments",
		Headers: []string{
			"ID", "Rental ID", "Customer", "Equipment", "Amount", "Method",
			"Status", "Transaction ID", "Processed At", "Created At",
		},
		Widths: []float64{8, 10, 22, 28, 12, 14, 12, 34, 14, 14},
	}
	for _, p := range payments {
		t.Rows = append(t.Rows, []interface{}{
			p.ID, p.RentalID, orNA(p.UserName), orNA(p.EquipmentName), p.Amount, p.Method,
			p.Status, p.TransactionID, p.ProcessedAt, p.CreatedAt,
		})
	}
	return t
}
