package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/models"
)

const serviceColumns = `id, vendor_id, name, category, description, price, duration_minutes,
	active, created_at, updated_at`

func scanService(row interface{ Scan(...any) error }) (*models.Service, error) {
	s := &models.Service{}
	err := row.Scan(
		&s.ID, &s.VendorID, &s.Name, &s.Category, &s.Description, &s.Price,
		&s.DurationMinutes, &s.Active, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (db *DB) CreateService(ctx context.Context, service *models.Service) error {
	now := time.Now()
	query := `INSERT INTO services (` + serviceColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		service.ID, service.VendorID, service.Name, service.Category, service.Description,
		service.Price, service.DurationMinutes, service.Active, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert service: %w", err)
	}
	service.CreatedAt = now
	service.UpdatedAt = now
	return nil
}

func (db *DB) GetService(ctx context.Context, id string) (*models.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = ?`
	s, err := scanService(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get service: %w", err)
	}
	return s, nil
}

func (db *DB) UpdateService(ctx context.Context, service *models.Service) error {
	query := `UPDATE services SET name = ?, category = ?, description = ?, price = ?,
		duration_minutes = ?, active = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query,
		service.Name, service.Category, service.Description, service.Price,
		service.DurationMinutes, service.Active, time.Now(), service.ID,
	)
	if err != nil {
		return fmt.Errorf("update service: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) DeactivateService(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE services SET active = 0, updated_at = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("deactivate service: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) listServices(ctx context.Context, query string, args ...any) ([]*models.Service, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var services []*models.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

func (db *DB) ListServicesByVendor(ctx context.Context, vendorID string) ([]*models.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE vendor_id = ? ORDER BY created_at DESC`
	return db.listServices(ctx, query, vendorID)
}

// ListActiveServices returns bookable listings, optionally filtered by category.
func (db *DB) ListActiveServices(ctx context.Context, category string) ([]*models.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE active = 1`
	var args []any
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY name ASC`
	return db.listServices(ctx, query, args...)
}
