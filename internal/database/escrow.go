package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/models"
)

const escrowColumns = `booking_id, state, amount_held, amount_released, amount_refunded,
	release_scheduled_at, created_at, updated_at`

func scanEscrow(row interface{ Scan(...any) error }) (*models.EscrowEntry, error) {
	e := &models.EscrowEntry{}
	var scheduled sql.NullTime
	err := row.Scan(
		&e.BookingID, &e.State, &e.AmountHeld, &e.AmountReleased, &e.AmountRefunded,
		&scheduled, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if scheduled.Valid {
		t := scheduled.Time
		e.ReleaseScheduledAt = &t
	}
	return e, nil
}

// CreateEscrowEntry inserts the hold row; a second hold for the same booking
// fails with ErrDuplicateHold so retried payment callbacks cannot double-charge.
func (db *DB) CreateEscrowEntry(ctx context.Context, entry *models.EscrowEntry) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var existing int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM escrow_entries WHERE booking_id = ?`, entry.BookingID).Scan(&existing)
	if err != nil {
		return fmt.Errorf("check existing hold: %w", err)
	}
	if existing > 0 {
		return ErrDuplicateHold
	}

	now := time.Now()
	query := `INSERT INTO escrow_entries (` + escrowColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query,
		entry.BookingID, entry.State, entry.AmountHeld, entry.AmountReleased,
		entry.AmountRefunded, nullableTime(entry.ReleaseScheduledAt), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert escrow entry: %w", err)
	}

	entry.CreatedAt = now
	entry.UpdatedAt = now
	return tx.Commit()
}

func (db *DB) GetEscrowEntry(ctx context.Context, bookingID string) (*models.EscrowEntry, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrow_entries WHERE booking_id = ?`
	e, err := scanEscrow(db.QueryRowContext(ctx, query, bookingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get escrow entry: %w", err)
	}
	return e, nil
}

// UpdateEscrowEntry persists new fund state. The caller must hold the
// per-booking lock; amounts are validated again here so a ledger bug can
// never write released+refunded > held.
func (db *DB) UpdateEscrowEntry(ctx context.Context, entry *models.EscrowEntry) error {
	if entry.AmountReleased+entry.AmountRefunded > entry.AmountHeld ||
		entry.AmountReleased < 0 || entry.AmountRefunded < 0 {
		return ErrLedgerCorrupt
	}

	query := `UPDATE escrow_entries
		SET state = ?, amount_released = ?, amount_refunded = ?, release_scheduled_at = ?, updated_at = ?
		WHERE booking_id = ?`
	result, err := db.ExecContext(ctx, query,
		entry.State, entry.AmountReleased, entry.AmountRefunded,
		nullableTime(entry.ReleaseScheduledAt), time.Now(), entry.BookingID,
	)
	if err != nil {
		return fmt.Errorf("update escrow entry: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDueEscrowReleases returns held entries whose auto-release timer has
// passed. The worker re-checks each entry under the booking lock before
// moving funds.
func (db *DB) ListDueEscrowReleases(ctx context.Context, now time.Time, limit int) ([]*models.EscrowEntry, error) {
	query := `SELECT ` + escrowColumns + ` FROM escrow_entries
		WHERE state = ? AND release_scheduled_at IS NOT NULL AND release_scheduled_at <= ?
		ORDER BY release_scheduled_at ASC LIMIT ?`
	rows, err := db.QueryContext(ctx, query, models.EscrowHeld, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due releases: %w", err)
	}
	defer rows.Close()

	var entries []*models.EscrowEntry
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan escrow entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
