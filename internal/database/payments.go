package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rentalhub/internal/models"
)

const paymentSelect = `SELECT p.id, p.rental_id, p.user_id, p.amount, p.method, p.status, p.transaction_id,
	p.notes, p.processed_at, p.created_at, p.updated_at,
	COALESCE(u.name, ''), COALESCE(e.name, '')
	FROM payments p
	LEFT JOIN users u ON u.id = p.user_id
	LEFT JOIN rentals r ON r.id = p.rental_id
	LEFT JOIN equipment e ON e.id = r.equipment_id`

func scanPayment(row rowScanner) (*models.Payment, error) {
	var (
		p           models.Payment
		processedAt sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.RentalID, &p.UserID, &p.Amount, &p.Method, &p.Status, &p.TransactionID,
		&p.Notes, &processedAt, &p.CreatedAt, &p.UpdatedAt,
		&p.UserName, &p.EquipmentName,
	)
	if err != nil {
		return nil, err
	}
	p.ProcessedAt = timePtr(processedAt)
	return &p, nil
}

func (db *DB) CreatePayment(ctx context.Context, p *models.Payment) error {
	ts := now()
	result, err := db.ExecContext(ctx, `INSERT INTO payments (
			rental_id, user_id, amount, method, status, transaction_id, notes, processed_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.RentalID, p.UserID, p.Amount, p.Method, p.Status, p.TransactionID, p.Notes, nullTime(p.ProcessedAt),
		ts, ts,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.ID = id
	p.CreatedAt = ts
	p.UpdatedAt = ts
	return nil
}

func (db *DB) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	p, err := scanPayment(db.QueryRowContext(ctx, paymentSelect+` WHERE p.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// ListPayments returns payments of userID, or all payments when userID is 0.
func (db *DB) ListPayments(ctx context.Context, userID int64) ([]*models.Payment, error) {
	if userID == 0 {
		return db.queryPayments(ctx, paymentSelect+` ORDER BY p.created_at DESC, p.id DESC`)
	}
	return db.queryPayments(ctx, paymentSelect+` WHERE p.user_id = ? ORDER BY p.created_at DESC, p.id DESC`, userID)
}

func (db *DB) ListPaymentsCreatedBetween(ctx context.Context, start, end time.Time) ([]*models.Payment, error) {
	return db.queryPayments(ctx,
		paymentSelect+` WHERE p.created_at >= ? AND p.created_at <= ? ORDER BY p.created_at DESC, p.id DESC`,
		dbTime(start), dbTime(end),
	)
}

func (db *DB) queryPayments(ctx context.Context, query string, args ...interface{}) ([]*models.Payment, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]*models.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// UpdatePaymentStatus writes the new status. A non-empty transactionID replaces the
// stored one and a non-nil processedAt is stamped.
func (db *DB) UpdatePaymentStatus(ctx context.Context, id int64, status, transactionID string, processedAt *time.Time) error {
	res, err := db.ExecContext(ctx, `UPDATE payments SET
			status = ?,
			transaction_id = CASE WHEN ? = '' THEN transaction_id ELSE ? END,
			processed_at = COALESCE(?, processed_at),
			updated_at = ?
		WHERE id = ?`,
		status, transactionID, transactionID, nullTime(processedAt), now(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return rowsAffectedOrNotFound(res)
}
