package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/CMZCoder/CommerzioS-sub000/internal/domain"
	"github.com/CMZCoder/CommerzioS-sub000/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CatalogService manages vendor listings.
type CatalogService struct {
	repo   domain.CatalogRepository
	logger *zerolog.Logger
}

func NewCatalogService(repo domain.CatalogRepository, logger *zerolog.Logger) *CatalogService {
	return &CatalogService{repo: repo, logger: logger}
}

type ServiceInput struct {
	Name            string
	Category        string
	Description     string
	Price           int64 // rappen
	DurationMinutes int
}

func (i ServiceInput) validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("service name is required")
	}
	if i.Price <= 0 {
		return fmt.Errorf("service price must be positive")
	}
	if i.DurationMinutes <= 0 {
		return fmt.Errorf("service duration must be positive")
	}
	return nil
}

func (s *CatalogService) Create(ctx context.Context, vendorID string, input ServiceInput) (*models.Service, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	svc := &models.Service{
		ID:              uuid.NewString(),
		VendorID:        vendorID,
		Name:            strings.TrimSpace(input.Name),
		Category:        strings.TrimSpace(input.Category),
		Description:     input.Description,
		Price:           input.Price,
		DurationMinutes: input.DurationMinutes,
		Active:          true,
	}
	if err := s.repo.CreateService(ctx, svc); err != nil {
		return nil, err
	}

	s.logger.Info().Str("service_id", svc.ID).Str("vendor_id", vendorID).Msg("service created")
	return svc, nil
}

func (s *CatalogService) Get(ctx context.Context, id string) (*models.Service, error) {
	return s.repo.GetService(ctx, id)
}

// Update replaces the mutable fields of a vendor's own listing.
func (s *CatalogService) Update(ctx context.Context, vendorID, serviceID string, input ServiceInput) (*models.Service, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	svc, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if svc.VendorID != vendorID {
		return nil, fmt.Errorf("service %s does not belong to vendor", serviceID)
	}

	svc.Name = strings.TrimSpace(input.Name)
	svc.Category = strings.TrimSpace(input.Category)
	svc.Description = input.Description
	svc.Price = input.Price
	svc.DurationMinutes = input.DurationMinutes
	if err := s.repo.UpdateService(ctx, svc); err != nil {
		return nil, err
	}
	return svc, nil
}

// Deactivate hides a listing from the catalog. Existing bookings keep their
// snapshot of name and price.
func (s *CatalogService) Deactivate(ctx context.Context, vendorID, serviceID string) error {
	svc, err := s.repo.GetService(ctx, serviceID)
	if err != nil {
		return err
	}
	if svc.VendorID != vendorID {
		return fmt.Errorf("service %s does not belong to vendor", serviceID)
	}
	return s.repo.DeactivateService(ctx, serviceID)
}

func (s *CatalogService) ListByVendor(ctx context.Context, vendorID string) ([]*models.Service, error) {
	return s.repo.ListServicesByVendor(ctx, vendorID)
}

func (s *CatalogService) ListActive(ctx context.Context, category string) ([]*models.Service, error) {
	return s.repo.ListActiveServices(ctx, category)
}
