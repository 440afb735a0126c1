package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/models"
)

const disputeColumns = `id, booking_id, opened_by, status, reason, description, evidence,
	resolution, split_customer_pct, resolved_by, created_at, updated_at, resolved_at`

func scanDispute(row interface{ Scan(...any) error }) (*models.Dispute, error) {
	d := &models.Dispute{}
	var resolvedAt sql.NullTime
	err := row.Scan(
		&d.ID, &d.BookingID, &d.OpenedBy, &d.Status, &d.Reason, &d.Description, &d.Evidence,
		&d.Resolution, &d.SplitCustomerPct, &d.ResolvedBy, &d.CreatedAt, &d.UpdatedAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		d.ResolvedAt = &t
	}
	return d, nil
}

// CreateDispute inserts the dispute, rejecting a second active dispute for
// the same booking inside one transaction.
func (db *DB) CreateDispute(ctx context.Context, dispute *models.Dispute) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var active int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM disputes WHERE booking_id = ? AND status IN (?, ?)`,
		dispute.BookingID, models.DisputeOpen, models.DisputeUnderReview).Scan(&active)
	if err != nil {
		return fmt.Errorf("check active dispute: %w", err)
	}
	if active > 0 {
		return ErrDisputeAlreadyOpen
	}

	now := time.Now()
	query := `INSERT INTO disputes (` + disputeColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, query,
		dispute.ID, dispute.BookingID, dispute.OpenedBy, dispute.Status, dispute.Reason,
		dispute.Description, dispute.Evidence, dispute.Resolution, dispute.SplitCustomerPct,
		dispute.ResolvedBy, now, now, nullableTime(dispute.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("insert dispute: %w", err)
	}

	dispute.CreatedAt = now
	dispute.UpdatedAt = now
	return tx.Commit()
}

func (db *DB) GetDispute(ctx context.Context, id string) (*models.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes WHERE id = ?`
	d, err := scanDispute(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dispute: %w", err)
	}
	return d, nil
}

// HasActiveDispute reports whether an open or under-review dispute exists.
func (db *DB) HasActiveDispute(ctx context.Context, bookingID string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM disputes WHERE booking_id = ? AND status IN (?, ?)`,
		bookingID, models.DisputeOpen, models.DisputeUnderReview).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check active dispute: %w", err)
	}
	return count > 0, nil
}

func (db *DB) UpdateDisputeStatus(ctx context.Context, id, status string) error {
	query := `UPDATE disputes SET status = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("update dispute status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkDisputeResolved records the resolution exactly once: the update only
// matches a row whose resolution is still empty.
func (db *DB) MarkDisputeResolved(ctx context.Context, id, resolution string, splitCustomerPct int64, resolvedBy string) error {
	now := time.Now()
	query := `UPDATE disputes
		SET status = ?, resolution = ?, split_customer_pct = ?, resolved_by = ?, resolved_at = ?, updated_at = ?
		WHERE id = ? AND resolution = ''`
	result, err := db.ExecContext(ctx, query,
		models.DisputeResolved, resolution, splitCustomerPct, resolvedBy, now, now, id)
	if err != nil {
		return fmt.Errorf("mark dispute resolved: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrAlreadyResolved
	}
	return nil
}

func (db *DB) ListDisputes(ctx context.Context, status string) ([]*models.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list disputes: %w", err)
	}
	defer rows.Close()

	var disputes []*models.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dispute: %w", err)
		}
		disputes = append(disputes, d)
	}
	return disputes, rows.Err()
}
