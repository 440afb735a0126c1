package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/database"
	"github.com/CMZCoder/CommerzioS-sub000/internal/domain"
	"github.com/CMZCoder/CommerzioS-sub000/internal/events"
	"github.com/CMZCoder/CommerzioS-sub000/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BookingService enforces the booking status graph and drives the escrow
// ledger on the transitions that move money.
type BookingService struct {
	bookings domain.BookingRepository
	catalog  domain.CatalogRepository
	chat     domain.ChatRepository
	ledger   *EscrowLedger
	eventBus domain.EventPublisher
	locks    *BookingLocks
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewBookingService(
	bookings domain.BookingRepository,
	catalog domain.CatalogRepository,
	chat domain.ChatRepository,
	ledger *EscrowLedger,
	eventBus domain.EventPublisher,
	locks *BookingLocks,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		bookings: bookings,
		catalog:  catalog,
		chat:     chat,
		ledger:   ledger,
		eventBus: eventBus,
		locks:    locks,
		logger:   logger,
		now:      time.Now,
	}
}

// RequestBookingInput is the customer's booking request.
type RequestBookingInput struct {
	ServiceID     string
	ScheduledDate string // YYYY-MM-DD
	ScheduledTime string // HH:MM
	PaymentMethod string
	Notes         string
	Address       string
}

func validPaymentMethod(method string) bool {
	switch method {
	case models.PaymentCard, models.PaymentTwint, models.PaymentCash:
		return true
	}
	return false
}

// RequestBooking creates a pending booking, failing with ErrSlotUnavailable
// when the vendor slot is already held by a non-cancelled booking.
func (s *BookingService) RequestBooking(ctx context.Context, customerID string, input RequestBookingInput) (*models.Booking, error) {
	if !validPaymentMethod(input.PaymentMethod) {
		return nil, fmt.Errorf("unknown payment method %q", input.PaymentMethod)
	}

	slot, err := time.Parse("2006-01-02 15:04", input.ScheduledDate+" "+input.ScheduledTime)
	if err != nil {
		return nil, fmt.Errorf("invalid slot: %w", err)
	}
	if slot.Before(s.now().Truncate(time.Minute)) {
		return nil, fmt.Errorf("slot is in the past")
	}

	svc, err := s.catalog.GetService(ctx, input.ServiceID)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return nil, database.ErrNotFound
	}
	if svc.VendorID == customerID {
		return nil, fmt.Errorf("cannot book own service")
	}

	booking := &models.Booking{
		ID:            uuid.NewString(),
		ServiceID:     svc.ID,
		ServiceName:   svc.Name,
		CustomerID:    customerID,
		VendorID:      svc.VendorID,
		Status:        models.BookingPending,
		ScheduledDate: input.ScheduledDate,
		ScheduledTime: input.ScheduledTime,
		TotalPrice:    svc.Price,
		PaymentMethod: input.PaymentMethod,
		Notes:         input.Notes,
		Address:       input.Address,
	}

	if err := s.bookings.CreateBookingSlotLocked(ctx, booking); err != nil {
		return nil, err
	}

	conv := &models.Conversation{
		ID:         uuid.NewString(),
		BookingID:  booking.ID,
		CustomerID: booking.CustomerID,
		VendorID:   booking.VendorID,
	}
	if err := s.chat.CreateConversation(ctx, conv); err != nil {
		s.logger.Error().Err(err).Str("booking_id", booking.ID).Msg("create conversation error")
	}

	s.publish(events.EventBookingRequested, booking, models.ActorCustomer, "")
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return s.bookings.GetBooking(ctx, id)
}

func (s *BookingService) ListByCustomer(ctx context.Context, customerID string) ([]*models.Booking, error) {
	return s.bookings.ListBookingsByCustomer(ctx, customerID)
}

func (s *BookingService) ListByVendor(ctx context.Context, vendorID string) ([]*models.Booking, error) {
	return s.bookings.ListBookingsByVendor(ctx, vendorID)
}

// Accept confirms a pending booking (vendor action).
func (s *BookingService) Accept(ctx context.Context, bookingID string) (*models.Booking, error) {
	return s.transition(ctx, bookingID, models.BookingConfirmed,
		models.ActorVendor, "", events.EventBookingConfirmed, nil)
}

// Reject declines a pending booking; a held payment is refunded.
func (s *BookingService) Reject(ctx context.Context, bookingID, reason string) (*models.Booking, error) {
	return s.transition(ctx, bookingID, models.BookingCancelled,
		models.ActorVendor, reason, events.EventBookingRejected, s.refundHeld)
}

// Cancel is allowed while pending or confirmed; once the service is running
// the dispute or no-show paths apply instead. A held payment is refunded.
func (s *BookingService) Cancel(ctx context.Context, bookingID, actor, reason string) (*models.Booking, error) {
	return s.transition(ctx, bookingID, models.BookingCancelled,
		actor, reason, events.EventBookingCancelled, s.refundHeld)
}

// StartService begins the appointment; not before the booked slot.
func (s *BookingService) StartService(ctx context.Context, bookingID string) (*models.Booking, error) {
	guard := func(ctx context.Context, b *models.Booking) error {
		slot := b.SlotAt()
		if slot.IsZero() {
			return fmt.Errorf("booking %s has malformed slot", b.ID)
		}
		if s.now().Before(slot) {
			return database.ErrInvalidTransition
		}
		return nil
	}
	return s.transitionGuarded(ctx, bookingID, models.BookingInProgress,
		models.ActorVendor, "", events.EventBookingStarted, guard, nil)
}

// CompleteService finishes the appointment and arms the escrow auto-release.
func (s *BookingService) CompleteService(ctx context.Context, bookingID string) (*models.Booking, error) {
	after := func(ctx context.Context, b *models.Booking) error {
		return s.ledger.scheduleAutoReleaseLocked(ctx, b.ID, 0)
	}
	return s.transition(ctx, bookingID, models.BookingCompleted,
		models.ActorVendor, "", events.EventBookingCompleted, after)
}

// MarkNoShow records an absence. The reporting actor determines who keeps
// the held funds: a vendor reporting a customer no-show keeps the payment,
// a customer reporting a vendor no-show is refunded.
func (s *BookingService) MarkNoShow(ctx context.Context, bookingID, actor string) (*models.Booking, error) {
	after := func(ctx context.Context, b *models.Booking) error {
		switch actor {
		case models.ActorVendor:
			return s.settleHeld(ctx, b, s.ledger.releaseLocked)
		default:
			return s.settleHeld(ctx, b, s.ledger.refundLocked)
		}
	}
	return s.transition(ctx, bookingID, models.BookingNoShow,
		actor, "", events.EventBookingNoShow, after)
}

// ProposeAlternative records a vendor counter-offer; the booking stays
// pending until the customer responds. A newer proposal replaces the
// previous one.
func (s *BookingService) ProposeAlternative(ctx context.Context, bookingID, date, timeOfDay string) (*models.Booking, error) {
	if _, err := time.Parse("2006-01-02 15:04", date+" "+timeOfDay); err != nil {
		return nil, fmt.Errorf("invalid slot: %w", err)
	}

	unlock := s.locks.Lock(bookingID)
	defer unlock()

	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != models.BookingPending {
		return nil, database.ErrInvalidTransition
	}

	if err := s.bookings.SetBookingAlternative(ctx, bookingID, b.Version, date, timeOfDay); err != nil {
		return nil, err
	}

	updated, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	s.publish(events.EventBookingAlternative, updated, models.ActorVendor, "")
	return updated, nil
}

// AcceptAlternative moves the counter-offer into the scheduled slot.
func (s *BookingService) AcceptAlternative(ctx context.Context, bookingID string) (*models.Booking, error) {
	unlock := s.locks.Lock(bookingID)
	defer unlock()

	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != models.BookingPending || !b.HasPendingAlternative() {
		return nil, database.ErrInvalidTransition
	}

	if err := s.bookings.ApplyBookingAlternative(ctx, bookingID, b.Version); err != nil {
		return nil, err
	}
	return s.bookings.GetBooking(ctx, bookingID)
}

// RejectAlternative drops the counter-offer, keeping the original slot.
func (s *BookingService) RejectAlternative(ctx context.Context, bookingID string) (*models.Booking, error) {
	unlock := s.locks.Lock(bookingID)
	defer unlock()

	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.HasPendingAlternative() {
		return b, nil
	}

	if err := s.bookings.ClearBookingAlternative(ctx, bookingID, b.Version); err != nil {
		return nil, err
	}
	return s.bookings.GetBooking(ctx, bookingID)
}

type bookingHook func(ctx context.Context, b *models.Booking) error

// transition applies a status change under the booking lock. Re-invoking a
// transition on a booking already in the target state succeeds without side
// effects; anything outside the status graph is ErrInvalidTransition.
func (s *BookingService) transition(ctx context.Context, bookingID, target, actor, reason, eventType string, after bookingHook) (*models.Booking, error) {
	return s.transitionGuarded(ctx, bookingID, target, actor, reason, eventType, nil, after)
}

func (s *BookingService) transitionGuarded(ctx context.Context, bookingID, target, actor, reason, eventType string, guard, after bookingHook) (*models.Booking, error) {
	unlock := s.locks.Lock(bookingID)
	defer unlock()

	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status == target {
		return b, nil
	}
	if !models.CanTransition(b.Status, target) {
		return nil, database.ErrInvalidTransition
	}
	if guard != nil {
		if err := guard(ctx, b); err != nil {
			return nil, err
		}
	}

	if err := s.bookings.UpdateBookingStatusVersioned(ctx, bookingID, b.Version, target); err != nil {
		return nil, err
	}

	updated, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if after != nil {
		if err := after(ctx, updated); err != nil {
			return nil, err
		}
	}

	s.publish(eventType, updated, actor, reason)
	return updated, nil
}

// refundHeld returns a held payment on reject/cancel; bookings without an
// escrow entry (cash) pass through.
func (s *BookingService) refundHeld(ctx context.Context, b *models.Booking) error {
	return s.settleHeld(ctx, b, s.ledger.refundLocked)
}

func (s *BookingService) settleHeld(ctx context.Context, b *models.Booking, settle func(context.Context, string) error) error {
	if !b.UsesEscrow() {
		return nil
	}
	entry, err := s.ledger.Entry(ctx, b.ID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil // payment never captured
		}
		return err
	}
	if entry.State != models.EscrowHeld {
		return nil
	}
	return settle(ctx, b.ID)
}

func (s *BookingService) publish(eventType string, b *models.Booking, actor, reason string) {
	if s.eventBus == nil {
		return
	}
	payload := events.BookingEventPayload{
		BookingID:     b.ID,
		CustomerID:    b.CustomerID,
		VendorID:      b.VendorID,
		ServiceName:   b.ServiceName,
		Status:        b.Status,
		ScheduledDate: b.ScheduledDate,
		ScheduledTime: b.ScheduledTime,
		TotalPrice:    b.TotalPrice,
		Actor:         actor,
		Reason:        reason,
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("booking_id", b.ID).Msg("publish event error")
	}
}
