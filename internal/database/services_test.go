package database

import (
	"context"
	"testing"

	"github.com/CMZCoder/CommerzioS-sub000/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testService(vendorID, name, category string) *models.Service {
	return &models.Service{
		ID:              uuid.NewString(),
		VendorID:        vendorID,
		Name:            name,
		Category:        category,
		Price:           12000,
		DurationMinutes: 120,
		Active:          true,
	}
}

func TestServiceLifecycle(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	vendorID := uuid.NewString()
	svc := testService(vendorID, "Heckenschnitt", "gardening")
	require.NoError(t, db.CreateService(ctx, svc))

	got, err := db.GetService(ctx, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Heckenschnitt", got.Name)

	got.Price = 14000
	require.NoError(t, db.UpdateService(ctx, got))

	got, err = db.GetService(ctx, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(14000), got.Price)

	require.NoError(t, db.DeactivateService(ctx, svc.ID))
	got, err = db.GetService(ctx, svc.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	assert.ErrorIs(t, db.DeactivateService(ctx, "missing"), ErrNotFound)
}

func TestListActiveServices_CategoryFilter(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	vendorID := uuid.NewString()

	require.NoError(t, db.CreateService(ctx, testService(vendorID, "Wohnungsreinigung", "cleaning")))
	require.NoError(t, db.CreateService(ctx, testService(vendorID, "Heckenschnitt", "gardening")))

	inactive := testService(vendorID, "Altlast", "cleaning")
	require.NoError(t, db.CreateService(ctx, inactive))
	require.NoError(t, db.DeactivateService(ctx, inactive.ID))

	all, err := db.ListActiveServices(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	cleaning, err := db.ListActiveServices(ctx, "cleaning")
	require.NoError(t, err)
	require.Len(t, cleaning, 1)
	assert.Equal(t, "Wohnungsreinigung", cleaning[0].Name)

	byVendor, err := db.ListServicesByVendor(ctx, vendorID)
	require.NoError(t, err)
	assert.Len(t, byVendor, 3)
}
