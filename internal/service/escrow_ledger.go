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

	"github.com/rs/zerolog"
)

// EscrowLedger is the only component that moves funds between the held,
// released and refunded buckets. Every mutation runs inside the per-booking
// lock with the accounting invariant re-checked before the write.
type EscrowLedger struct {
	repo         domain.EscrowRepository
	disputes     domain.DisputeRepository
	locks        *BookingLocks
	eventBus     domain.EventPublisher
	releaseDelay time.Duration
	logger       *zerolog.Logger
	now          func() time.Time
}

func NewEscrowLedger(
	repo domain.EscrowRepository,
	disputes domain.DisputeRepository,
	locks *BookingLocks,
	eventBus domain.EventPublisher,
	releaseDelay time.Duration,
	logger *zerolog.Logger,
) *EscrowLedger {
	if releaseDelay <= 0 {
		releaseDelay = time.Duration(models.DefaultAutoReleaseDelay) * time.Second
	}
	return &EscrowLedger{
		repo:         repo,
		disputes:     disputes,
		locks:        locks,
		eventBus:     eventBus,
		releaseDelay: releaseDelay,
		logger:       logger,
		now:          time.Now,
	}
}

// Hold records a successful card/twint payment. A second hold for the same
// booking fails with ErrDuplicateHold; payment callbacks are retried by
// providers and must not double-charge.
func (l *EscrowLedger) Hold(ctx context.Context, bookingID string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("hold amount must be positive, got %d", amount)
	}

	unlock := l.locks.Lock(bookingID)
	defer unlock()

	entry := &models.EscrowEntry{
		BookingID:  bookingID,
		State:      models.EscrowHeld,
		AmountHeld: amount,
	}
	if err := l.repo.CreateEscrowEntry(ctx, entry); err != nil {
		return err
	}

	l.publish(events.EventEscrowHeld, entry)
	l.logger.Info().Str("booking_id", bookingID).Int64("amount", amount).Msg("escrow hold created")
	return nil
}

// Entry returns the fund state for a booking.
func (l *EscrowLedger) Entry(ctx context.Context, bookingID string) (*models.EscrowEntry, error) {
	return l.repo.GetEscrowEntry(ctx, bookingID)
}

// ScheduleAutoRelease arms the release timer. Funds move to the vendor when
// it fires unless a dispute is opened first. Zero delay means the configured
// default.
func (l *EscrowLedger) ScheduleAutoRelease(ctx context.Context, bookingID string, delay time.Duration) error {
	unlock := l.locks.Lock(bookingID)
	defer unlock()
	return l.scheduleAutoReleaseLocked(ctx, bookingID, delay)
}

func (l *EscrowLedger) scheduleAutoReleaseLocked(ctx context.Context, bookingID string, delay time.Duration) error {
	if delay <= 0 {
		delay = l.releaseDelay
	}

	entry, err := l.repo.GetEscrowEntry(ctx, bookingID)
	if errors.Is(err, database.ErrNotFound) {
		// Cash bookings carry no escrow; nothing to release.
		return nil
	}
	if err != nil {
		return err
	}
	if entry.State != models.EscrowHeld {
		return nil
	}

	at := l.now().Add(delay)
	entry.ReleaseScheduledAt = &at
	if err := l.repo.UpdateEscrowEntry(ctx, entry); err != nil {
		return err
	}

	l.logger.Info().Str("booking_id", bookingID).Time("release_at", at).Msg("auto-release scheduled")
	return nil
}

// SuspendAutoRelease disarms the timer. Once it returns, the worker can no
// longer release the entry: its due-check runs under the same booking lock.
func (l *EscrowLedger) SuspendAutoRelease(ctx context.Context, bookingID string) error {
	unlock := l.locks.Lock(bookingID)
	defer unlock()
	return l.suspendLocked(ctx, bookingID)
}

func (l *EscrowLedger) suspendLocked(ctx context.Context, bookingID string) error {
	entry, err := l.repo.GetEscrowEntry(ctx, bookingID)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if entry.ReleaseScheduledAt == nil {
		return nil
	}

	entry.ReleaseScheduledAt = nil
	if err := l.repo.UpdateEscrowEntry(ctx, entry); err != nil {
		return err
	}

	l.logger.Info().Str("booking_id", bookingID).Msg("auto-release suspended")
	return nil
}

// Release moves the full held amount to the vendor.
func (l *EscrowLedger) Release(ctx context.Context, bookingID string) error {
	unlock := l.locks.Lock(bookingID)
	defer unlock()
	return l.releaseLocked(ctx, bookingID)
}

func (l *EscrowLedger) releaseLocked(ctx context.Context, bookingID string) error {
	entry, err := l.repo.GetEscrowEntry(ctx, bookingID)
	if err != nil {
		return err
	}
	if entry.State == models.EscrowReleased {
		return nil // retried release is a no-op
	}
	if entry.State != models.EscrowHeld {
		return database.ErrInvalidTransition
	}

	entry.State = models.EscrowReleased
	entry.AmountReleased = entry.AmountHeld
	entry.ReleaseScheduledAt = nil
	if err := l.repo.UpdateEscrowEntry(ctx, entry); err != nil {
		return err
	}

	l.publish(events.EventEscrowReleased, entry)
	l.logger.Info().Str("booking_id", bookingID).Int64("amount", entry.AmountReleased).Msg("escrow released")
	return nil
}

// Refund returns the full held amount to the customer.
func (l *EscrowLedger) Refund(ctx context.Context, bookingID string) error {
	unlock := l.locks.Lock(bookingID)
	defer unlock()
	return l.refundLocked(ctx, bookingID)
}

func (l *EscrowLedger) refundLocked(ctx context.Context, bookingID string) error {
	entry, err := l.repo.GetEscrowEntry(ctx, bookingID)
	if err != nil {
		return err
	}
	if entry.State == models.EscrowRefunded {
		return nil
	}
	if entry.State != models.EscrowHeld {
		return database.ErrInvalidTransition
	}

	entry.State = models.EscrowRefunded
	entry.AmountRefunded = entry.AmountHeld
	entry.ReleaseScheduledAt = nil
	if err := l.repo.UpdateEscrowEntry(ctx, entry); err != nil {
		return err
	}

	l.publish(events.EventEscrowRefunded, entry)
	l.logger.Info().Str("booking_id", bookingID).Int64("amount", entry.AmountRefunded).Msg("escrow refunded")
	return nil
}

// Split divides the hold between the parties. Both sides are written in one
// row update, so a split can never half-apply.
func (l *EscrowLedger) Split(ctx context.Context, bookingID string, customerPct int64) error {
	if customerPct < 0 || customerPct > 100 {
		return fmt.Errorf("split customer percentage out of range: %d", customerPct)
	}

	unlock := l.locks.Lock(bookingID)
	defer unlock()
	return l.splitLocked(ctx, bookingID, customerPct)
}

func (l *EscrowLedger) splitLocked(ctx context.Context, bookingID string, customerPct int64) error {
	entry, err := l.repo.GetEscrowEntry(ctx, bookingID)
	if err != nil {
		return err
	}
	if entry.State == models.EscrowSplit {
		return nil
	}
	if entry.State != models.EscrowHeld {
		return database.ErrInvalidTransition
	}

	refund, release := models.SplitAmounts(entry.AmountHeld, customerPct)
	entry.State = models.EscrowSplit
	entry.AmountRefunded = refund
	entry.AmountReleased = release
	entry.ReleaseScheduledAt = nil
	if err := l.repo.UpdateEscrowEntry(ctx, entry); err != nil {
		return err
	}

	l.publish(events.EventEscrowSplit, entry)
	l.logger.Info().Str("booking_id", bookingID).
		Int64("released", release).Int64("refunded", refund).Msg("escrow split")
	return nil
}

// ReleaseIfDue is the auto-release worker entry point. The due-check and the
// dispute re-check both run inside the booking lock, so a dispute opened an
// instant before the timer fires wins.
func (l *EscrowLedger) ReleaseIfDue(ctx context.Context, bookingID string) (bool, error) {
	unlock := l.locks.Lock(bookingID)
	defer unlock()

	entry, err := l.repo.GetEscrowEntry(ctx, bookingID)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if entry.State != models.EscrowHeld || entry.ReleaseScheduledAt == nil ||
		entry.ReleaseScheduledAt.After(l.now()) {
		return false, nil
	}

	active, err := l.disputes.HasActiveDispute(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if active {
		// Timer lost the race against a dispute; disarm it.
		return false, l.suspendLocked(ctx, bookingID)
	}

	if err := l.releaseLocked(ctx, bookingID); err != nil {
		return false, err
	}
	return true, nil
}

func (l *EscrowLedger) publish(eventType string, entry *models.EscrowEntry) {
	if l.eventBus == nil {
		return
	}
	payload := events.EscrowEventPayload{
		BookingID:      entry.BookingID,
		State:          entry.State,
		AmountHeld:     entry.AmountHeld,
		AmountReleased: entry.AmountReleased,
		AmountRefunded: entry.AmountRefunded,
	}
	if err := l.eventBus.PublishJSON(eventType, payload); err != nil {
		l.logger.Error().Err(err).Str("event_type", eventType).
			Str("booking_id", entry.BookingID).Msg("publish event error")
	}
}
