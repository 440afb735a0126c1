package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/models"
)

const bookingColumns = `id, service_id, service_name, customer_id, vendor_id, status,
	scheduled_date, scheduled_time, total_price, payment_method, notes, address,
	proposed_date, proposed_time, created_at, updated_at, version`

func scanBooking(row interface{ Scan(...any) error }) (*models.Booking, error) {
	b := &models.Booking{}
	err := row.Scan(
		&b.ID, &b.ServiceID, &b.ServiceName, &b.CustomerID, &b.VendorID, &b.Status,
		&b.ScheduledDate, &b.ScheduledTime, &b.TotalPrice, &b.PaymentMethod, &b.Notes, &b.Address,
		&b.ProposedDate, &b.ProposedTime, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// countSlotConflicts counts non-cancelled bookings holding the vendor slot.
func countSlotConflicts(ctx context.Context, q interface {
	QueryRowContext(context.Context, string, ...any) *sql.Row
}, vendorID, date, timeOfDay, excludeBookingID string) (int, error) {
	query := `SELECT COUNT(*) FROM bookings
		WHERE vendor_id = ? AND scheduled_date = ? AND scheduled_time = ?
		AND status != ? AND id != ?`
	var count int
	err := q.QueryRowContext(ctx, query, vendorID, date, timeOfDay,
		models.BookingCancelled, excludeBookingID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count slot conflicts: %w", err)
	}
	return count, nil
}

// CreateBookingSlotLocked checks the vendor slot and inserts the booking in
// one transaction, so two concurrent requests for the same slot cannot both
// succeed.
func (db *DB) CreateBookingSlotLocked(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	conflicts, err := countSlotConflicts(ctx, tx, booking.VendorID,
		booking.ScheduledDate, booking.ScheduledTime, booking.ID)
	if err != nil {
		return err
	}
	if conflicts > 0 {
		return ErrSlotUnavailable
	}

	now := time.Now()
	query := `INSERT INTO bookings (` + bookingColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query,
		booking.ID, booking.ServiceID, booking.ServiceName, booking.CustomerID,
		booking.VendorID, booking.Status, booking.ScheduledDate, booking.ScheduledTime,
		booking.TotalPrice, booking.PaymentMethod, booking.Notes, booking.Address,
		booking.ProposedDate, booking.ProposedTime, now, now, 1,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1
	return tx.Commit()
}

func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// UpdateBookingStatusVersioned moves the booking status with an optimistic
// version check; returns ErrConcurrentModification when the row changed.
func (db *DB) UpdateBookingStatusVersioned(ctx context.Context, id string, fromVersion int64, status string) error {
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// SetBookingAlternative records a vendor counter-offer slot. A newer proposal
// overwrites any previous one.
func (db *DB) SetBookingAlternative(ctx context.Context, id string, fromVersion int64, date, timeOfDay string) error {
	query := `UPDATE bookings SET proposed_date = ?, proposed_time = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, date, timeOfDay, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("set booking alternative: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// ApplyBookingAlternative moves the proposed slot into the scheduled slot,
// re-checking the vendor slot inside the same transaction.
func (db *DB) ApplyBookingAlternative(ctx context.Context, id string, fromVersion int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get booking in tx: %w", err)
	}
	if !b.HasPendingAlternative() {
		return ErrNotFound
	}

	conflicts, err := countSlotConflicts(ctx, tx, b.VendorID, b.ProposedDate, b.ProposedTime, b.ID)
	if err != nil {
		return err
	}
	if conflicts > 0 {
		return ErrSlotUnavailable
	}

	update := `UPDATE bookings SET scheduled_date = proposed_date, scheduled_time = proposed_time,
		proposed_date = '', proposed_time = '', version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`
	result, err := tx.ExecContext(ctx, update, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("apply booking alternative: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return tx.Commit()
}

// ClearBookingAlternative drops a pending counter-offer.
func (db *DB) ClearBookingAlternative(ctx context.Context, id string, fromVersion int64) error {
	query := `UPDATE bookings SET proposed_date = '', proposed_time = '', version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("clear booking alternative: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

func (db *DB) listBookings(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (db *DB) ListBookingsByCustomer(ctx context.Context, customerID string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE customer_id = ? ORDER BY scheduled_date DESC, scheduled_time DESC`
	return db.listBookings(ctx, query, customerID)
}

func (db *DB) ListBookingsByVendor(ctx context.Context, vendorID string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE vendor_id = ? ORDER BY scheduled_date DESC, scheduled_time DESC`
	return db.listBookings(ctx, query, vendorID)
}

// ListBookingsByDateRange returns bookings scheduled inside [start, end],
// both formatted YYYY-MM-DD. Used by the admin export.
func (db *DB) ListBookingsByDateRange(ctx context.Context, startDate, endDate string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE scheduled_date >= ? AND scheduled_date <= ?
		ORDER BY scheduled_date ASC, scheduled_time ASC`
	return db.listBookings(ctx, query, startDate, endDate)
}
