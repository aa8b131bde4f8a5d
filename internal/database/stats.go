package database

import (
	"context"
	"fmt"
	"time"

	"rentalhub/internal/models"
)

// RentalCountsByStatus groups rentals by status; userID 0 counts everyone.
func (db *DB) RentalCountsByStatus(ctx context.Context, userID int64) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM rentals`
	var args []interface{}
	if userID != 0 {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` GROUP BY status`
	return db.countByStatus(ctx, query, args...)
}

// DeliveryCountsByStatus groups deliveries by status; personID 0 counts every courier.
func (db *DB) DeliveryCountsByStatus(ctx context.Context, personID int64) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM deliveries`
	var args []interface{}
	if personID != 0 {
		query += ` WHERE delivery_person_id = ?`
		args = append(args, personID)
	}
	query += ` GROUP BY status`
	return db.countByStatus(ctx, query, args...)
}

func (db *DB) countByStatus(ctx context.Context, query string, args ...interface{}) (map[string]int, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// RentalRevenue sums total cost of rentals in status; userID 0 sums everyone.
func (db *DB) RentalRevenue(ctx context.Context, userID int64, status string) (float64, error) {
	query := `SELECT COALESCE(SUM(total_cost), 0) FROM rentals WHERE status = ?`
	args := []interface{}{status}
	if userID != 0 {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}

	var total float64
	if err := db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum revenue: %w", err)
	}
	return total, nil
}

func (db *DB) CountOverdueRentals(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM rentals WHERE status = ? AND end_date < ?`,
		models.RentalActive, dbTime(now),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count overdue rentals: %w", err)
	}
	return count, nil
}

func (db *DB) CountEquipment(ctx context.Context, filter models.EquipmentFilter) (int, error) {
	where, args := equipmentWhere(filter)
	query := `SELECT COUNT(*) FROM equipment` + where

	var count int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count equipment: %w", err)
	}
	return count, nil
}
