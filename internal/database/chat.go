package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/models"
)

func scanConversation(row interface{ Scan(...any) error }) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := row.Scan(&c.ID, &c.BookingID, &c.CustomerID, &c.VendorID, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreateConversation inserts the booking conversation; the existing one is
// returned when the booking already has a thread.
func (db *DB) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	now := time.Now()
	query := `INSERT INTO conversations (id, booking_id, customer_id, vendor_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(booking_id) DO NOTHING`
	_, err := db.ExecContext(ctx, query, conv.ID, conv.BookingID, conv.CustomerID, conv.VendorID, now)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	conv.CreatedAt = now
	return nil
}

func (db *DB) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	query := `SELECT id, booking_id, customer_id, vendor_id, created_at FROM conversations WHERE id = ?`
	c, err := scanConversation(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (db *DB) GetConversationByBooking(ctx context.Context, bookingID string) (*models.Conversation, error) {
	query := `SELECT id, booking_id, customer_id, vendor_id, created_at FROM conversations WHERE booking_id = ?`
	c, err := scanConversation(db.QueryRowContext(ctx, query, bookingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation by booking: %w", err)
	}
	return c, nil
}

func (db *DB) CreateMessage(ctx context.Context, msg *models.Message) error {
	now := time.Now()
	query := `INSERT INTO messages (id, conversation_id, sender_id, body, created_at)
		VALUES (?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, msg.ID, msg.ConversationID, msg.SenderID, msg.Body, now)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	msg.CreatedAt = now
	return nil
}

// ListMessagesSince returns messages newer than the given instant, oldest
// first. Clients poll with their last-seen timestamp.
func (db *DB) ListMessagesSince(ctx context.Context, conversationID string, since time.Time) ([]*models.Message, error) {
	query := `SELECT id, conversation_id, sender_id, body, created_at FROM messages
		WHERE conversation_id = ? AND created_at > ? ORDER BY created_at ASC`
	rows, err := db.QueryContext(ctx, query, conversationID, since)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
