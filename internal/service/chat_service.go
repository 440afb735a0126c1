package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/domain"
	"github.com/CMZCoder/CommerzioS-sub000/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNotParticipant is returned when a user reads or writes a conversation
// they are not part of.
var ErrNotParticipant = fmt.Errorf("not a conversation participant")

// ChatService is the per-booking message thread between customer and vendor.
// Clients poll ListSince for new messages.
type ChatService struct {
	repo   domain.ChatRepository
	logger *zerolog.Logger
}

func NewChatService(repo domain.ChatRepository, logger *zerolog.Logger) *ChatService {
	return &ChatService{repo: repo, logger: logger}
}

// ConversationForBooking returns the thread behind a booking, restricted to
// its two participants (admins may pass either participant role check via
// the API layer).
func (s *ChatService) ConversationForBooking(ctx context.Context, bookingID, userID string) (*models.Conversation, error) {
	conv, err := s.repo.GetConversationByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if conv.CustomerID != userID && conv.VendorID != userID {
		return nil, ErrNotParticipant
	}
	return conv, nil
}

// Send posts a message to a conversation the sender participates in.
func (s *ChatService) Send(ctx context.Context, conversationID, senderID, body string) (*models.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, fmt.Errorf("message body is empty")
	}
	if len(body) > 4000 {
		return nil, fmt.Errorf("message body too long")
	}

	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.CustomerID != senderID && conv.VendorID != senderID {
		return nil, ErrNotParticipant
	}

	msg := &models.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// ListSince returns messages newer than the given instant, oldest first.
// A zero time returns the whole thread.
func (s *ChatService) ListSince(ctx context.Context, conversationID, userID string, since time.Time) ([]*models.Message, error) {
	conv, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.CustomerID != userID && conv.VendorID != userID {
		return nil, ErrNotParticipant
	}
	return s.repo.ListMessagesSince(ctx, conversationID, since)
}
