package service

import (
	"context"
	"testing"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/database"
	"github.com/CMZCoder/CommerzioS-sub000/internal/events"
	"github.com/CMZCoder/CommerzioS-sub000/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// testEnv wires the services against an in-memory database the way main does.
type testEnv struct {
	db       *database.DB
	bus      *events.EventBus
	locks    *BookingLocks
	ledger   *EscrowLedger
	bookings *BookingService
	disputes *DisputeService
	catalog  *CatalogService
	chat     *ChatService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	bus := events.NewEventBus()
	locks := NewBookingLocks()
	ledger := NewEscrowLedger(db, db, locks, bus, 72*time.Hour, &logger)

	return &testEnv{
		db:       db,
		bus:      bus,
		locks:    locks,
		ledger:   ledger,
		bookings: NewBookingService(db, db, db, ledger, bus, locks, &logger),
		disputes: NewDisputeService(db, db, ledger, bus, locks, &logger),
		catalog:  NewCatalogService(db, &logger),
		chat:     NewChatService(db, &logger),
	}
}

// seedService creates a vendor listing to book against.
func (e *testEnv) seedService(t *testing.T, price int64) *models.Service {
	t.Helper()
	svc := &models.Service{
		ID:              uuid.NewString(),
		VendorID:        uuid.NewString(),
		Name:            "Deep Clean",
		Category:        "cleaning",
		Price:           price,
		DurationMinutes: 120,
		Active:          true,
	}
	require.NoError(t, e.db.CreateService(context.Background(), svc))
	return svc
}

// seedBooking books the given service for tomorrow with a card payment.
func (e *testEnv) seedBooking(t *testing.T, svc *models.Service) *models.Booking {
	t.Helper()
	day := time.Now().UTC().Add(24 * time.Hour).Format("2006-01-02")
	booking, err := e.bookings.RequestBooking(context.Background(), uuid.NewString(), RequestBookingInput{
		ServiceID:     svc.ID,
		ScheduledDate: day,
		ScheduledTime: "10:00",
		PaymentMethod: models.PaymentCard,
	})
	require.NoError(t, err)
	return booking
}

// holdFor records a captured payment for the booking's full price.
func (e *testEnv) holdFor(t *testing.T, b *models.Booking) {
	t.Helper()
	require.NoError(t, e.ledger.Hold(context.Background(), b.ID, b.TotalPrice))
}
