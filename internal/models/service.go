package models

import "time"

// Service is a vendor listing that bookings are made against.
type Service struct {
	ID              string    `json:"id"`
	VendorID        string    `json:"vendor_id"`
	Name            string    `json:"name"`
	Category        string    `json:"category"`
	Description     string    `json:"description,omitempty"`
	Price           int64     `json:"price"` // rappen
	DurationMinutes int       `json:"duration_minutes"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
