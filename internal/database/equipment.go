package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"rentalhub/internal/models"
)

const equipmentColumns = `id, name, category, custom_category, description, total_quantity,
	available_quantity, daily_rate, status, approved, approved_by, approval_notes,
	created_by, image, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEquipment(row rowScanner) (*models.Equipment, error) {
	var (
		e          models.Equipment
		approvedBy sql.NullInt64
		createdBy  sql.NullInt64
	)
	err := row.Scan(
		&e.ID, &e.Name, &e.Category, &e.CustomCategory, &e.Description, &e.TotalQuantity,
		&e.AvailableQuantity, &e.DailyRate, &e.Status, &e.Approved, &approvedBy, &e.ApprovalNotes,
		&createdBy, &e.Image, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.ApprovedBy = intPtr(approvedBy)
	e.CreatedBy = intPtr(createdBy)
	return &e, nil
}

func (db *DB) CreateEquipment(ctx context.Context, e *models.Equipment) error {
	if e.AvailableQuantity > e.TotalQuantity {
		return ErrQuantityExceedsTotal
	}

	query := `INSERT INTO equipment (
				name, category, custom_category, description, total_quantity, available_quantity,
				daily_rate, status, approved, approved_by, approval_notes, created_by, image,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	ts := now()
	result, err := db.ExecContext(ctx, query,
		e.Name, e.Category, e.CustomCategory, e.Description, e.TotalQuantity, e.AvailableQuantity,
		e.DailyRate, e.Status, e.Approved, nullInt(e.ApprovedBy), e.ApprovalNotes, nullInt(e.CreatedBy), e.Image,
		ts, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to create equipment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	e.ID = id
	e.CreatedAt = ts
	e.UpdatedAt = ts
	return nil
}

func (db *DB) GetEquipment(ctx context.Context, id int64) (*models.Equipment, error) {
	row := db.QueryRowContext(ctx, `SELECT `+equipmentColumns+` FROM equipment WHERE id = ?`, id)
	e, err := scanEquipment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get equipment: %w", err)
	}
	return e, nil
}

func (db *DB) ListEquipment(ctx context.Context, filter models.EquipmentFilter) ([]*models.Equipment, error) {
	where, args := equipmentWhere(filter)
	query := `SELECT ` + equipmentColumns + ` FROM equipment` + where + ` ORDER BY created_at DESC, id DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list equipment: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Equipment, 0)
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan equipment: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func equipmentWhere(filter models.EquipmentFilter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Category != nil {
		where = append(where, "category = ?")
		args = append(args, *filter.Category)
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Approved != nil {
		where = append(where, "approved = ?")
		args = append(args, *filter.Approved)
	}
	if len(where) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(where, " AND "), args
}

// ListCategories returns the distinct categories present in the catalog.
func (db *DB) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT DISTINCT category FROM equipment ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// UpdateEquipment writes the editable catalog fields. Approval is changed only via ApproveEquipment.
// A change of total quantity moves available quantity by the same delta, so units out on
// rental stay reserved; available is overwritten only when given, and never above total.
func (db *DB) UpdateEquipment(ctx context.Context, e *models.Equipment, available *int64) error {
	if available != nil && *available < 0 {
		return ErrInsufficientQuantity
	}

	return db.withTx(ctx, func(tx *sql.Tx) error {
		ts := now()
		res, err := tx.ExecContext(ctx, `UPDATE equipment SET
				name = ?, category = ?, custom_category = ?, description = ?,
				total_quantity = ?, available_quantity = available_quantity + (? - total_quantity),
				daily_rate = ?, status = ?, image = ?, updated_at = ?
			WHERE id = ? AND available_quantity + (? - total_quantity) >= 0`,
			e.Name, e.Category, e.CustomCategory, e.Description,
			e.TotalQuantity, e.TotalQuantity,
			e.DailyRate, e.Status, e.Image, ts,
			e.ID, e.TotalQuantity,
		)
		if err != nil {
			return fmt.Errorf("failed to update equipment: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 0 {
			var exists int
			err := tx.QueryRowContext(ctx, `SELECT 1 FROM equipment WHERE id = ?`, e.ID).Scan(&exists)
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to check equipment: %w", err)
			}
			return ErrQuantityBelowReserved
		}

		if available != nil {
			res, err := tx.ExecContext(ctx,
				`UPDATE equipment SET available_quantity = ? WHERE id = ? AND total_quantity >= ?`,
				*available, e.ID, *available,
			)
			if err != nil {
				return fmt.Errorf("failed to set available quantity: %w", err)
			}
			if n, err := res.RowsAffected(); err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			} else if n == 0 {
				return ErrQuantityExceedsTotal
			}
		}

		row := tx.QueryRowContext(ctx, `SELECT `+equipmentColumns+` FROM equipment WHERE id = ?`, e.ID)
		fresh, err := scanEquipment(row)
		if err != nil {
			return fmt.Errorf("failed to reload equipment: %w", err)
		}
		*e = *fresh
		return nil
	})
}

func (db *DB) ApproveEquipment(ctx context.Context, id int64, approved bool, approverID int64, notes string) error {
	query := `UPDATE equipment SET approved = ?, approved_by = ?, approval_notes = ?, updated_at = ? WHERE id = ?`
	res, err := db.ExecContext(ctx, query, approved, approverID, notes, now(), id)
	if err != nil {
		return fmt.Errorf("failed to approve equipment: %w", err)
	}
	return rowsAffectedOrNotFound(res)
}

// DeleteEquipment removes an item that no open rental still references.
func (db *DB) DeleteEquipment(ctx context.Context, id int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		var open int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM rentals WHERE equipment_id = ? AND status NOT IN (?, ?)`,
			id, models.RentalCompleted, models.RentalCancelled,
		).Scan(&open)
		if err != nil {
			return fmt.Errorf("failed to count open rentals: %w", err)
		}
		if open > 0 {
			return ErrEquipmentInUse
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM equipment WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete equipment: %w", err)
		}
		return rowsAffectedOrNotFound(res)
	})
}

// SetAvailableQuantity is the corrective absolute write; it never exceeds total quantity.
func (db *DB) SetAvailableQuantity(ctx context.Context, id, available int64) error {
	if available < 0 {
		return ErrInsufficientQuantity
	}

	res, err := db.ExecContext(ctx,
		`UPDATE equipment SET available_quantity = ?, updated_at = ? WHERE id = ? AND total_quantity >= ?`,
		available, now(), id, available,
	)
	if err != nil {
		return fmt.Errorf("failed to set available quantity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	if _, err := db.GetEquipment(ctx, id); err != nil {
		return err
	}
	return ErrQuantityExceedsTotal
}

// ReserveUnits decrements available quantity by n in one conditional statement.
func (db *DB) ReserveUnits(ctx context.Context, id, n int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return reserveUnits(ctx, tx, id, n)
	})
}

// ReleaseUnits increments available quantity by n, capped at total quantity.
func (db *DB) ReleaseUnits(ctx context.Context, id, n int64) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return releaseUnits(ctx, tx, id, n)
	})
}

func reserveUnits(ctx context.Context, tx *sql.Tx, id, n int64) error {
	if n < 1 {
		return ErrInsufficientQuantity
	}

	res, err := tx.ExecContext(ctx, `UPDATE equipment
		SET available_quantity = available_quantity - ?, updated_at = ?
		WHERE id = ? AND available_quantity >= ? AND status = ? AND approved = 1`,
		n, now(), id, n, models.EquipmentAvailable,
	)
	if err != nil {
		return fmt.Errorf("failed to reserve units: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM equipment WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check equipment: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	return ErrInsufficientQuantity
}

func releaseUnits(ctx context.Context, tx *sql.Tx, id, n int64) error {
	if n < 1 {
		return nil
	}

	// equipment deleted after checkout leaves nothing to release
	_, err := tx.ExecContext(ctx, `UPDATE equipment
		SET available_quantity = MIN(total_quantity, available_quantity + ?), updated_at = ?
		WHERE id = ?`,
		n, now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to release units: %w", err)
	}
	return nil
}
