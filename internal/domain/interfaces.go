package domain

import (
	"context"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/models"
)

// BookingRepository is the booking store surface the state machine uses.
type BookingRepository interface {
	CreateBookingSlotLocked(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	UpdateBookingStatusVersioned(ctx context.Context, id string, fromVersion int64, status string) error
	SetBookingAlternative(ctx context.Context, id string, fromVersion int64, date, timeOfDay string) error
	ApplyBookingAlternative(ctx context.Context, id string, fromVersion int64) error
	ClearBookingAlternative(ctx context.Context, id string, fromVersion int64) error
	ListBookingsByCustomer(ctx context.Context, customerID string) ([]*models.Booking, error)
	ListBookingsByVendor(ctx context.Context, vendorID string) ([]*models.Booking, error)
	ListBookingsByDateRange(ctx context.Context, startDate, endDate string) ([]*models.Booking, error)
}

// EscrowRepository persists fund state per booking.
type EscrowRepository interface {
	CreateEscrowEntry(ctx context.Context, entry *models.EscrowEntry) error
	GetEscrowEntry(ctx context.Context, bookingID string) (*models.EscrowEntry, error)
	UpdateEscrowEntry(ctx context.Context, entry *models.EscrowEntry) error
	ListDueEscrowReleases(ctx context.Context, now time.Time, limit int) ([]*models.EscrowEntry, error)
}

// DisputeRepository persists disputes and their single-shot resolutions.
type DisputeRepository interface {
	CreateDispute(ctx context.Context, dispute *models.Dispute) error
	GetDispute(ctx context.Context, id string) (*models.Dispute, error)
	HasActiveDispute(ctx context.Context, bookingID string) (bool, error)
	UpdateDisputeStatus(ctx context.Context, id, status string) error
	MarkDisputeResolved(ctx context.Context, id, resolution string, splitCustomerPct int64, resolvedBy string) error
	ListDisputes(ctx context.Context, status string) ([]*models.Dispute, error)
}

// CatalogRepository serves vendor listings.
type CatalogRepository interface {
	CreateService(ctx context.Context, service *models.Service) error
	GetService(ctx context.Context, id string) (*models.Service, error)
	UpdateService(ctx context.Context, service *models.Service) error
	DeactivateService(ctx context.Context, id string) error
	ListServicesByVendor(ctx context.Context, vendorID string) ([]*models.Service, error)
	ListActiveServices(ctx context.Context, category string) ([]*models.Service, error)
}

// UserRepository serves accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	SetUserBlocked(ctx context.Context, id string, blocked bool) error
}

// ChatRepository stores booking conversations and messages.
type ChatRepository interface {
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	GetConversationByBooking(ctx context.Context, bookingID string) (*models.Conversation, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	ListMessagesSince(ctx context.Context, conversationID string, since time.Time) ([]*models.Message, error)
}

// NotificationRepository stores in-app notifications.
type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotificationsByUser(ctx context.Context, userID string, unreadOnly bool) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// SessionRepository keeps auth sessions and shared counters. Backed by redis
// with an in-memory failover.
type SessionRepository interface {
	GetSession(ctx context.Context, token string) (*models.Session, error)
	SetSession(ctx context.Context, session *models.Session) error
	DeleteSession(ctx context.Context, token string) error
	// ClaimOnce marks an idempotency key; false means it was already claimed.
	ClaimOnce(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// ReleaseClaim gives a claimed key back, so the work it guards can be
	// retried after a failure.
	ReleaseClaim(ctx context.Context, key string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// EventPublisher fans out domain events to in-process subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// PaymentProvider is the card/TWINT acquirer the backend talks to.
type PaymentProvider interface {
	CreateCardPayment(ctx context.Context, bookingID string, amount int64) (checkoutURL string, err error)
	CheckTwintEligibility(ctx context.Context, phone string) (bool, error)
}

// EmailSender delivers notification emails.
type EmailSender interface {
	Send(to, subject, body string) error
}
