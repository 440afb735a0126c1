package export

import (
	"context"
	"testing"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/database"
	"github.com/CMZCoder/CommerzioS-sub000/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestBookingsReport(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()

	day := time.Now().UTC().Add(24 * time.Hour).Format("2006-01-02")
	booking := &models.Booking{
		ID:            uuid.NewString(),
		ServiceID:     uuid.NewString(),
		ServiceName:   "Garden Work",
		CustomerID:    uuid.NewString(),
		VendorID:      uuid.NewString(),
		Status:        models.BookingConfirmed,
		ScheduledDate: day,
		ScheduledTime: "09:00",
		TotalPrice:    25000,
		PaymentMethod: models.PaymentCard,
	}
	require.NoError(t, db.CreateBookingSlotLocked(ctx, booking))
	require.NoError(t, db.CreateEscrowEntry(ctx, &models.EscrowEntry{
		BookingID: booking.ID, State: models.EscrowHeld, AmountHeld: 25000,
	}))

	exporter := NewExporter(db, db, t.TempDir(), &logger)
	filePath, err := exporter.BookingsReport(ctx, day, day)
	require.NoError(t, err)

	f, err := excelize.OpenFile(filePath)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Bookings")
	require.NoError(t, err)
	require.Len(t, rows, 2, "header plus one booking")
	assert.Equal(t, "Booking ID", rows[0][0])
	assert.Equal(t, booking.ID, rows[1][0])
	assert.Equal(t, "Garden Work", rows[1][1])
	assert.Equal(t, models.EscrowHeld, rows[1][9])
}
