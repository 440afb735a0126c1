package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/CMZCoder/CommerzioS-sub000/internal/database"
	"github.com/CMZCoder/CommerzioS-sub000/internal/domain"
	"github.com/CMZCoder/CommerzioS-sub000/internal/events"
	"github.com/CMZCoder/CommerzioS-sub000/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DisputeService runs the dispute lifecycle. Opening a dispute immediately
// suspends the escrow auto-release; resolving it settles the held funds and
// closes out the booking.
type DisputeService struct {
	disputes domain.DisputeRepository
	bookings domain.BookingRepository
	ledger   *EscrowLedger
	eventBus domain.EventPublisher
	locks    *BookingLocks
	logger   *zerolog.Logger
}

func NewDisputeService(
	disputes domain.DisputeRepository,
	bookings domain.BookingRepository,
	ledger *EscrowLedger,
	eventBus domain.EventPublisher,
	locks *BookingLocks,
	logger *zerolog.Logger,
) *DisputeService {
	return &DisputeService{
		disputes: disputes,
		bookings: bookings,
		ledger:   ledger,
		eventBus: eventBus,
		locks:    locks,
		logger:   logger,
	}
}

// OpenDisputeInput is a party's complaint about a booking.
type OpenDisputeInput struct {
	BookingID   string
	OpenedBy    string // customer or vendor
	Reason      string
	Description string
	Evidence    string
}

// Open files a dispute on a booking. Only one active dispute may exist per
// booking (ErrDisputeAlreadyOpen). The auto-release timer is disarmed in the
// same locked section, so a release can never slip through after Open
// returns.
func (s *DisputeService) Open(ctx context.Context, input OpenDisputeInput) (*models.Dispute, error) {
	if input.Reason == "" {
		return nil, fmt.Errorf("dispute reason is required")
	}
	if input.OpenedBy != models.ActorCustomer && input.OpenedBy != models.ActorVendor {
		return nil, fmt.Errorf("unknown dispute opener %q", input.OpenedBy)
	}

	unlock := s.locks.Lock(input.BookingID)
	defer unlock()

	booking, err := s.bookings.GetBooking(ctx, input.BookingID)
	if err != nil {
		return nil, err
	}
	switch booking.Status {
	case models.BookingPending, models.BookingCancelled, models.BookingNoShow:
		return nil, database.ErrInvalidTransition
	}

	dispute := &models.Dispute{
		ID:          uuid.NewString(),
		BookingID:   input.BookingID,
		OpenedBy:    input.OpenedBy,
		Status:      models.DisputeOpen,
		Reason:      input.Reason,
		Description: input.Description,
		Evidence:    input.Evidence,
	}
	if err := s.disputes.CreateDispute(ctx, dispute); err != nil {
		return nil, err
	}

	if booking.Status != models.BookingDisputed {
		if err := s.bookings.UpdateBookingStatusVersioned(ctx, booking.ID, booking.Version, models.BookingDisputed); err != nil {
			return nil, err
		}
	}

	if err := s.ledger.suspendLocked(ctx, input.BookingID); err != nil {
		return nil, err
	}

	s.publish(events.EventDisputeOpened, dispute, booking)
	s.logger.Info().Str("dispute_id", dispute.ID).Str("booking_id", input.BookingID).
		Str("opened_by", input.OpenedBy).Msg("dispute opened")
	return dispute, nil
}

func (s *DisputeService) Get(ctx context.Context, id string) (*models.Dispute, error) {
	return s.disputes.GetDispute(ctx, id)
}

func (s *DisputeService) List(ctx context.Context, status string) ([]*models.Dispute, error) {
	return s.disputes.ListDisputes(ctx, status)
}

// MarkUnderReview moves an open dispute into admin review.
func (s *DisputeService) MarkUnderReview(ctx context.Context, disputeID string) (*models.Dispute, error) {
	dispute, err := s.disputes.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if dispute.Status == models.DisputeUnderReview {
		return dispute, nil
	}
	if dispute.Status != models.DisputeOpen {
		return nil, database.ErrAlreadyResolved
	}

	if err := s.disputes.UpdateDisputeStatus(ctx, disputeID, models.DisputeUnderReview); err != nil {
		return nil, err
	}
	return s.disputes.GetDispute(ctx, disputeID)
}

// Close archives a resolved dispute. Purely administrative: funds and the
// booking are untouched.
func (s *DisputeService) Close(ctx context.Context, disputeID string) (*models.Dispute, error) {
	dispute, err := s.disputes.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if dispute.Status == models.DisputeClosed {
		return dispute, nil
	}
	if dispute.Status != models.DisputeResolved {
		return nil, database.ErrInvalidTransition
	}

	if err := s.disputes.UpdateDisputeStatus(ctx, disputeID, models.DisputeClosed); err != nil {
		return nil, err
	}
	return s.disputes.GetDispute(ctx, disputeID)
}

// ResolveInput is the admin verdict on a dispute.
type ResolveInput struct {
	DisputeID        string
	Resolution       string // full_refund, full_release, split
	SplitCustomerPct int64
	ResolvedBy       string
}

// Resolve settles a dispute. Funds move before the verdict is recorded: if
// the escrow entry cannot settle the requested way (a full refund after the
// hold was already released, say), the dispute stays unresolved and a
// corrective verdict remains possible. A concurrent second resolution finds
// the dispute resolved under the lock and gets ErrAlreadyResolved, so the
// funds move exactly once. The booking closes as cancelled on a full refund
// and completed otherwise.
func (s *DisputeService) Resolve(ctx context.Context, input ResolveInput) (*models.Dispute, error) {
	if !models.ValidResolution(input.Resolution, input.SplitCustomerPct) {
		return nil, fmt.Errorf("invalid resolution %q", input.Resolution)
	}

	dispute, err := s.disputes.GetDispute(ctx, input.DisputeID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(dispute.BookingID)
	defer unlock()

	// Re-read under the lock; a concurrent verdict may have landed first.
	dispute, err = s.disputes.GetDispute(ctx, input.DisputeID)
	if err != nil {
		return nil, err
	}
	if dispute.Resolution != "" {
		return nil, database.ErrAlreadyResolved
	}

	if err := s.settle(ctx, dispute.BookingID, input.Resolution, input.SplitCustomerPct); err != nil {
		return nil, err
	}

	if err := s.disputes.MarkDisputeResolved(ctx, input.DisputeID, input.Resolution,
		input.SplitCustomerPct, input.ResolvedBy); err != nil {
		return nil, err
	}

	booking, err := s.bookings.GetBooking(ctx, dispute.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status == models.BookingDisputed {
		target := models.BookingCompleted
		if input.Resolution == models.ResolutionFullRefund {
			target = models.BookingCancelled
		}
		if err := s.bookings.UpdateBookingStatusVersioned(ctx, booking.ID, booking.Version, target); err != nil {
			return nil, err
		}
	}

	resolved, err := s.disputes.GetDispute(ctx, input.DisputeID)
	if err != nil {
		return nil, err
	}

	s.publish(events.EventDisputeResolved, resolved, booking)
	s.logger.Info().Str("dispute_id", resolved.ID).Str("booking_id", resolved.BookingID).
		Str("resolution", input.Resolution).Msg("dispute resolved")
	return resolved, nil
}

// settle moves the held funds per the verdict. Cash bookings have no escrow
// entry; their disputes resolve without a fund movement.
func (s *DisputeService) settle(ctx context.Context, bookingID, resolution string, customerPct int64) error {
	var err error
	switch resolution {
	case models.ResolutionFullRefund:
		err = s.ledger.refundLocked(ctx, bookingID)
	case models.ResolutionFullRelease:
		err = s.ledger.releaseLocked(ctx, bookingID)
	case models.ResolutionSplit:
		err = s.ledger.splitLocked(ctx, bookingID, customerPct)
	default:
		return fmt.Errorf("invalid resolution %q", resolution)
	}
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	return err
}

func (s *DisputeService) publish(eventType string, d *models.Dispute, b *models.Booking) {
	if s.eventBus == nil {
		return
	}
	payload := events.DisputeEventPayload{
		DisputeID:  d.ID,
		BookingID:  d.BookingID,
		Status:     d.Status,
		Reason:     d.Reason,
		Resolution: d.Resolution,
	}
	if b != nil {
		payload.CustomerID = b.CustomerID
		payload.VendorID = b.VendorID
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).
			Str("dispute_id", d.ID).Msg("publish event error")
	}
}
