package database

import (
	"context"
	"fmt"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/models"
)

func (db *DB) CreateNotification(ctx context.Context, n *models.Notification) error {
	now := time.Now()
	query := `INSERT INTO notifications (id, user_id, kind, title, body, read, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)`
	_, err := db.ExecContext(ctx, query, n.ID, n.UserID, n.Kind, n.Title, n.Body, now)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	n.CreatedAt = now
	return nil
}

func (db *DB) ListNotificationsByUser(ctx context.Context, userID string, unreadOnly bool) ([]*models.Notification, error) {
	query := `SELECT id, user_id, kind, title, body, read, created_at FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Title, &n.Body, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

func (db *DB) MarkNotificationRead(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, `UPDATE notifications SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
