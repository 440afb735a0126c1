package models

import "time"

// Conversation links the customer and vendor of one booking.
type Conversation struct {
	ID         string    `json:"id"`
	BookingID  string    `json:"booking_id"`
	CustomerID string    `json:"customer_id"`
	VendorID   string    `json:"vendor_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
