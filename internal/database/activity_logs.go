package database

import (
	"context"
	"fmt"

	"rentalhub/internal/models"
)

func (db *DB) CreateActivityLog(ctx context.Context, entry *models.ActivityLog) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now()
	}
	var userID interface{}
	if entry.UserID != 0 {
		userID = entry.UserID
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO activity_logs (user_id, action, details, ip_address, created_at) VALUES (?, ?, ?, ?, ?)`,
		userID, entry.Action, entry.Details, entry.IPAddress, dbTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create activity log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	return nil
}

// ListActivityLogs returns newest entries first. userID 0 means every user.
func (db *DB) ListActivityLogs(ctx context.Context, userID int64, limit int) ([]*models.ActivityLog, error) {
	if limit <= 0 {
		limit = models.DefaultLogsLimit
	}

	query := `SELECT l.id, COALESCE(l.user_id, 0), l.action, l.details, l.ip_address, l.created_at,
			COALESCE(u.name, ''), COALESCE(u.email, '')
		FROM activity_logs l
		LEFT JOIN users u ON u.id = l.user_id`
	args := []interface{}{}
	if userID != 0 {
		query += ` WHERE l.user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY l.created_at DESC, l.id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity logs: %w", err)
	}
	defer rows.Close()

	logs := make([]*models.ActivityLog, 0)
	for rows.Next() {
		var l models.ActivityLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.Action, &l.Details, &l.IPAddress, &l.CreatedAt, &l.UserName, &l.UserEmail); err != nil {
			return nil, fmt.Errorf("failed to scan activity log: %w", err)
		}
		logs = append(logs, &l)
	}
	return logs, rows.Err()
}
