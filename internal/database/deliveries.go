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

const deliverySelect = `SELECT d.id, d.rental_id, d.delivery_person_id, d.status, d.address, d.notes,
	d.delivered_at, d.returned_at, d.created_at, d.updated_at,
	COALESCE(p.name, ''), COALESCE(e.name, ''), COALESCE(c.name, ''), COALESCE(c.phone, '')
	FROM deliveries d
	LEFT JOIN users p ON p.id = d.delivery_person_id
	LEFT JOIN rentals r ON r.id = d.rental_id
	LEFT JOIN equipment e ON e.id = r.equipment_id
	LEFT JOIN users c ON c.id = r.user_id`

func scanDelivery(row rowScanner) (*models.Delivery, error) {
	var (
		d           models.Delivery
		personID    sql.NullInt64
		deliveredAt sql.NullTime
		returnedAt  sql.NullTime
	)
	err := row.Scan(
		&d.ID, &d.RentalID, &personID, &d.Status, &d.Address, &d.Notes,
		&deliveredAt, &returnedAt, &d.CreatedAt, &d.UpdatedAt,
		&d.DeliveryPersonName, &d.EquipmentName, &d.CustomerName, &d.CustomerPhone,
	)
	if err != nil {
		return nil, err
	}
	d.DeliveryPersonID = intPtr(personID)
	d.DeliveredAt = timePtr(deliveredAt)
	d.ReturnedAt = timePtr(returnedAt)
	return &d, nil
}

func (db *DB) CreateDelivery(ctx context.Context, d *models.Delivery) error {
	if d.Status == "" {
		d.Status = models.DeliveryAssigned
	}
	ts := now()
	result, err := db.ExecContext(ctx, `INSERT INTO deliveries (
			rental_id, delivery_person_id, status, address, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.RentalID, nullInt(d.DeliveryPersonID), d.Status, d.Address, d.Notes, ts, ts,
	)
	if isUniqueViolation(err) {
		return ErrDeliveryExists
	}
	if err != nil {
		return fmt.Errorf("failed to create delivery: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	d.ID = id
	d.CreatedAt = ts
	d.UpdatedAt = ts
	return nil
}

func (db *DB) GetDelivery(ctx context.Context, id int64) (*models.Delivery, error) {
	d, err := scanDelivery(db.QueryRowContext(ctx, deliverySelect+` WHERE d.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}
	return d, nil
}

// ListDeliveries returns deliveries of a courier (personID 0 means everyone),
// optionally restricted to the given statuses.
func (db *DB) ListDeliveries(ctx context.Context, personID int64, statuses ...string) ([]*models.Delivery, error) {
	var (
		where []string
		args  []interface{}
	)
	if personID != 0 {
		where = append(where, "d.delivery_person_id = ?")
		args = append(args, personID)
	}
	if len(statuses) > 0 {
		where = append(where, "d.status IN (?"+strings.Repeat(", ?", len(statuses)-1)+")")
		for _, s := range statuses {
			args = append(args, s)
		}
	}

	query := deliverySelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY d.created_at DESC, d.id DESC"
	return db.queryDeliveries(ctx, query, args...)
}

func (db *DB) ListDeliveriesCreatedBetween(ctx context.Context, start, end time.Time) ([]*models.Delivery, error) {
	return db.queryDeliveries(ctx,
		deliverySelect+` WHERE d.created_at >= ? AND d.created_at <= ? ORDER BY d.created_at DESC, d.id DESC`,
		dbTime(start), dbTime(end),
	)
}

func (db *DB) queryDeliveries(ctx context.Context, query string, args ...interface{}) ([]*models.Delivery, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	defer rows.Close()

	deliveries := make([]*models.Delivery, 0)
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

// MarkDelivered moves assigned -> delivered and activates the rental in the same transaction.
func (db *DB) MarkDelivered(ctx context.Context, id int64) (*models.Delivery, error) {
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		rentalID, status, _, err := deliveryState(ctx, tx, id)
		if err != nil {
			return err
		}
		if status != models.DeliveryAssigned {
			return ErrInvalidTransition
		}

		ts := now()
		_, err = tx.ExecContext(ctx,
			`UPDATE deliveries SET status = ?, delivered_at = ?, updated_at = ? WHERE id = ?`,
			models.DeliveryDelivered, ts, ts, id,
		)
		if err != nil {
			return fmt.Errorf("failed to mark delivered: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE rentals SET status = ?, updated_at = ? WHERE id = ? AND status NOT IN (?, ?)`,
			models.RentalActive, ts, rentalID, models.RentalCompleted, models.RentalCancelled,
		)
		if err != nil {
			return fmt.Errorf("failed to activate rental: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return db.GetDelivery(ctx, id)
}

// MarkReturned moves delivered -> returned, appends note, completes the rental
// and releases its units unless the rental was already closed.
func (db *DB) MarkReturned(ctx context.Context, id int64, note string) (*models.Delivery, error) {
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		rentalID, status, notes, err := deliveryState(ctx, tx, id)
		if err != nil {
			return err
		}
		if status != models.DeliveryDelivered {
			return ErrInvalidTransition
		}

		ts := now()
		_, err = tx.ExecContext(ctx,
			`UPDATE deliveries SET status = ?, returned_at = ?, notes = ?, updated_at = ? WHERE id = ?`,
			models.DeliveryReturned, ts, models.AppendNote(notes, note), ts, id,
		)
		if err != nil {
			return fmt.Errorf("failed to mark returned: %w", err)
		}

		_, err = closeRentalTx(ctx, tx, rentalID, models.RentalCompleted)
		return err
	})
	if err != nil {
		return nil, err
	}
	return db.GetDelivery(ctx, id)
}

func deliveryState(ctx context.Context, tx *sql.Tx, id int64) (rentalID int64, status, notes string, err error) {
	err = tx.QueryRowContext(ctx, `SELECT rental_id, status, notes FROM deliveries WHERE id = ?`, id).
		Scan(&rentalID, &status, &notes)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", "", ErrNotFound
	}
	if err != nil {
		return 0, "", "", fmt.Errorf("failed to read delivery: %w", err)
	}
	return rentalID, status, notes, nil
}
