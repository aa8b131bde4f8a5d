package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"rentalhub/internal/models"
)

const rentalSelect = `SELECT r.id, r.equipment_id, r.user_id, r.status, r.start_date, r.end_date,
	r.quantity, r.total_cost, r.notes, r.returned_at, r.created_at, r.updated_at,
	COALESCE(e.name, ''), COALESCE(e.category, ''),
	COALESCE(u.name, ''), COALESCE(u.email, ''), COALESCE(u.phone, '')
	FROM rentals r
	LEFT JOIN equipment e ON e.id = r.equipment_id
	LEFT JOIN users u ON u.id = r.user_id`

func scanRental(row rowScanner) (*models.Rental, error) {
	var (
		r          models.Rental
		returnedAt sql.NullTime
	)
	err := row.Scan(
		&r.ID, &r.EquipmentID, &r.UserID, &r.Status, &r.StartDate, &r.EndDate,
		&r.Quantity, &r.TotalCost, &r.Notes, &returnedAt, &r.CreatedAt, &r.UpdatedAt,
		&r.EquipmentName, &r.EquipmentCategory,
		&r.UserName, &r.UserEmail, &r.UserPhone,
	)
	if err != nil {
		return nil, err
	}
	r.ReturnedAt = timePtr(returnedAt)
	return &r, nil
}

// Checkout reserves units and records the rental in one transaction.
// TotalCost is computed from the daily rate read under the same lock.
func (db *DB) Checkout(ctx context.Context, r *models.Rental) error {
	if r.Quantity < 1 {
		r.Quantity = models.DefaultRentalQuantity
	}
	start, end := dbTime(r.StartDate), dbTime(r.EndDate)

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := reserveUnits(ctx, tx, r.EquipmentID, r.Quantity); err != nil {
			return err
		}

		var rate float64
		err := tx.QueryRowContext(ctx, `SELECT daily_rate, name, category FROM equipment WHERE id = ?`, r.EquipmentID).
			Scan(&rate, &r.EquipmentName, &r.EquipmentCategory)
		if err != nil {
			return fmt.Errorf("failed to read equipment rate: %w", err)
		}
		r.TotalCost = models.RentalCost(start, end, rate, r.Quantity)

		ts := now()
		result, err := tx.ExecContext(ctx, `INSERT INTO rentals (
				equipment_id, user_id, status, start_date, end_date, quantity, total_cost, notes,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.EquipmentID, r.UserID, r.Status, start, end, r.Quantity, r.TotalCost, r.Notes, ts, ts,
		)
		if err != nil {
			return fmt.Errorf("failed to insert rental: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		r.ID = id
		r.StartDate = start
		r.EndDate = end
		r.CreatedAt = ts
		r.UpdatedAt = ts
		return nil
	})
	if err != nil {
		db.logger.Debug().Err(err).Int64("equipment_id", r.EquipmentID).Int64("quantity", r.Quantity).Msg("Checkout rejected")
	}
	return err
}

func (db *DB) GetRental(ctx context.Context, id int64) (*models.Rental, error) {
	r, err := scanRental(db.QueryRowContext(ctx, rentalSelect+` WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rental: %w", err)
	}
	return r, nil
}

func (db *DB) ListRentals(ctx context.Context, filter models.RentalFilter) ([]*models.Rental, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.UserID != 0 {
		where = append(where, "r.user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.EquipmentID != 0 {
		where = append(where, "r.equipment_id = ?")
		args = append(args, filter.EquipmentID)
	}
	if filter.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, filter.Status)
	}

	query := rentalSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY r.created_at DESC, r.id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	return db.queryRentals(ctx, query, args...)
}

// ListOverdueRentals returns active rentals whose end date is before now.
func (db *DB) ListOverdueRentals(ctx context.Context, now time.Time) ([]*models.Rental, error) {
	return db.queryRentals(ctx,
		rentalSelect+` WHERE r.status = ? AND r.end_date < ? ORDER BY r.end_date`,
		models.RentalActive, dbTime(now),
	)
}

// ListRentalsCreatedBetween feeds the report windows; userID 0 means all users.
func (db *DB) ListRentalsCreatedBetween(ctx context.Context, userID int64, start, end time.Time) ([]*models.Rental, error) {
	query := rentalSelect + ` WHERE r.created_at >= ? AND r.created_at <= ?`
	args := []interface{}{dbTime(start), dbTime(end)}
	if userID != 0 {
		query += ` AND r.user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY r.created_at DESC, r.id DESC`
	return db.queryRentals(ctx, query, args...)
}

func (db *DB) queryRentals(ctx context.Context, query string, args ...interface{}) ([]*models.Rental, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rentals: %w", err)
	}
	defer rows.Close()

	rentals := make([]*models.Rental, 0)
	for rows.Next() {
		r, err := scanRental(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rental: %w", err)
		}
		rentals = append(rentals, r)
	}
	return rentals, rows.Err()
}

// ReturnRental completes the rental and gives its units back.
func (db *DB) ReturnRental(ctx context.Context, id int64) (*models.Rental, error) {
	return db.closeRental(ctx, id, models.RentalCompleted)
}

// CancelRental cancels the rental and gives its units back.
func (db *DB) CancelRental(ctx context.Context, id int64) (*models.Rental, error) {
	return db.closeRental(ctx, id, models.RentalCancelled)
}

func (db *DB) closeRental(ctx context.Context, id int64, status string) (*models.Rental, error) {
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		closed, err := closeRentalTx(ctx, tx, id, status)
		if err != nil {
			return err
		}
		if !closed {
			var exists int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM rentals WHERE id = ?`, id).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check rental: %w", err)
			}
			if exists == 0 {
				return ErrNotFound
			}
			return ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return db.GetRental(ctx, id)
}

// closeRentalTx moves a non-terminal rental into status and releases its units.
// It reports false when the rental was already terminal, so units are released once.
func closeRentalTx(ctx context.Context, tx *sql.Tx, id int64, status string) (bool, error) {
	ts := now()
	var returnedAt interface{}
	if status == models.RentalCompleted {
		returnedAt = ts
	}

	res, err := tx.ExecContext(ctx, `UPDATE rentals
		SET status = ?, returned_at = COALESCE(?, returned_at), updated_at = ?
		WHERE id = ? AND status NOT IN (?, ?)`,
		status, returnedAt, ts, id, models.RentalCompleted, models.RentalCancelled,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update rental status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	var equipmentID, quantity int64
	err = tx.QueryRowContext(ctx, `SELECT equipment_id, quantity FROM rentals WHERE id = ?`, id).Scan(&equipmentID, &quantity)
	if err != nil {
		return false, fmt.Errorf("failed to read rental quantity: %w", err)
	}
	if err := releaseUnits(ctx, tx, equipmentID, quantity); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateRentalStatus is the administrative status write. It never touches inventory,
// so it can neither close a rental nor reopen a completed or cancelled one:
// closing goes through ReturnRental / CancelRental, which release the units.
func (db *DB) UpdateRentalStatus(ctx context.Context, id int64, status string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx, `SELECT status FROM rentals WHERE id = ?`, id).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read rental status: %w", err)
		}
		if models.IsTerminalRentalStatus(current) || models.IsTerminalRentalStatus(status) {
			return ErrInvalidTransition
		}

		_, err = tx.ExecContext(ctx, `UPDATE rentals SET status = ?, updated_at = ? WHERE id = ?`, status, now(), id)
		if err != nil {
			return fmt.Errorf("failed to update rental status: %w", err)
		}
		return nil
	})
}
