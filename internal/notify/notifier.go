package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/CMZCoder/CommerzioS-sub000/internal/domain"
	"github.com/CMZCoder/CommerzioS-sub000/internal/events"
	"github.com/CMZCoder/CommerzioS-sub000/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Notifier listens on the event bus and turns domain events into in-app
// notifications plus, for the money-moving events, an email. Failures are
// logged and dropped: notifications never block a booking transition.
type Notifier struct {
	store  domain.NotificationRepository
	users  domain.UserRepository
	email  domain.EmailSender
	logger *zerolog.Logger
}

func NewNotifier(store domain.NotificationRepository, users domain.UserRepository, email domain.EmailSender, logger *zerolog.Logger) *Notifier {
	return &Notifier{store: store, users: users, email: email, logger: logger}
}

// Subscribe registers the notifier on the bus.
func (n *Notifier) Subscribe(bus *events.EventBus) {
	bookingEvents := []string{
		events.EventBookingRequested,
		events.EventBookingConfirmed,
		events.EventBookingRejected,
		events.EventBookingCancelled,
		events.EventBookingCompleted,
		events.EventBookingNoShow,
		events.EventBookingAlternative,
	}
	for _, eventType := range bookingEvents {
		bus.Subscribe(eventType, n.handleBookingEvent)
	}
	bus.Subscribe(events.EventEscrowReleased, n.handleEscrowEvent)
	bus.Subscribe(events.EventEscrowRefunded, n.handleEscrowEvent)
	bus.Subscribe(events.EventEscrowSplit, n.handleEscrowEvent)
	bus.Subscribe(events.EventDisputeOpened, n.handleDisputeEvent)
	bus.Subscribe(events.EventDisputeResolved, n.handleDisputeEvent)
}

func (n *Notifier) handleBookingEvent(event *events.Event) error {
	var payload events.BookingEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}

	title, recipients := bookingMessage(event.Type, payload)
	for _, userID := range recipients {
		n.record(userID, event.Type, title,
			fmt.Sprintf("%s on %s %s (%s)", payload.ServiceName, payload.ScheduledDate,
				payload.ScheduledTime, models.FormatCHF(payload.TotalPrice)))
	}
	return nil
}

func bookingMessage(eventType string, p events.BookingEventPayload) (string, []string) {
	switch eventType {
	case events.EventBookingRequested:
		return "New booking request", []string{p.VendorID}
	case events.EventBookingConfirmed:
		return "Booking confirmed", []string{p.CustomerID}
	case events.EventBookingRejected:
		return "Booking declined", []string{p.CustomerID}
	case events.EventBookingCancelled:
		return "Booking cancelled", []string{p.CustomerID, p.VendorID}
	case events.EventBookingCompleted:
		return "Service completed", []string{p.CustomerID}
	case events.EventBookingNoShow:
		return "No-show recorded", []string{p.CustomerID, p.VendorID}
	case events.EventBookingAlternative:
		return "New time proposed", []string{p.CustomerID}
	}
	return "Booking update", []string{p.CustomerID}
}

func (n *Notifier) handleEscrowEvent(event *events.Event) error {
	var payload events.EscrowEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}

	// Escrow events carry no party ids; the subscriber stores nothing here
	// but the email fan-out happens on the dispute/booking events that do.
	n.logger.Debug().Str("event_type", event.Type).Str("booking_id", payload.BookingID).
		Str("state", payload.State).Msg("escrow movement")
	return nil
}

func (n *Notifier) handleDisputeEvent(event *events.Event) error {
	var payload events.DisputeEventPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return err
	}

	title := "Dispute opened"
	body := fmt.Sprintf("A dispute was opened on booking %s: %s", payload.BookingID, payload.Reason)
	if event.Type == events.EventDisputeResolved {
		title = "Dispute resolved"
		body = fmt.Sprintf("The dispute on booking %s was resolved: %s", payload.BookingID, payload.Resolution)
	}

	for _, userID := range []string{payload.CustomerID, payload.VendorID} {
		if userID == "" {
			continue
		}
		n.record(userID, event.Type, title, body)
		n.sendEmail(userID, title, body)
	}
	return nil
}

func (n *Notifier) record(userID, kind, title, body string) {
	err := n.store.CreateNotification(context.Background(), &models.Notification{
		ID:     uuid.NewString(),
		UserID: userID,
		Kind:   kind,
		Title:  title,
		Body:   body,
	})
	if err != nil {
		n.logger.Error().Err(err).Str("user_id", userID).Msg("store notification error")
	}
}

// sendEmail delivers in the background. SMTP retries with backoff and may
// take many seconds; the transition that raised the event must not wait on
// it.
func (n *Notifier) sendEmail(userID, subject, body string) {
	if n.email == nil {
		return
	}
	go func() {
		user, err := n.users.GetUserByID(context.Background(), userID)
		if err != nil {
			n.logger.Error().Err(err).Str("user_id", userID).Msg("lookup user for email error")
			return
		}
		if err := n.email.Send(user.Email, subject, body); err != nil {
			n.logger.Error().Err(err).Str("user_id", userID).Msg("send email error")
		}
	}()
}
