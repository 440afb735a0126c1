package database

import (
	"context"
	"testing"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func heldEntry(bookingID string, amount int64) *models.EscrowEntry {
	return &models.EscrowEntry{
		BookingID:  bookingID,
		State:      models.EscrowHeld,
		AmountHeld: amount,
	}
}

func TestCreateEscrowEntry_DuplicateHold(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	bookingID := uuid.NewString()

	require.NoError(t, db.CreateEscrowEntry(ctx, heldEntry(bookingID, 15000)))

	err := db.CreateEscrowEntry(ctx, heldEntry(bookingID, 15000))
	assert.ErrorIs(t, err, ErrDuplicateHold)

	got, err := db.GetEscrowEntry(ctx, bookingID)
	require.NoError(t, err)
	assert.Equal(t, int64(15000), got.AmountHeld)
}

func TestGetEscrowEntry_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, err := db.GetEscrowEntry(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateEscrowEntry_RejectsOverdraw(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	bookingID := uuid.NewString()
	entry := heldEntry(bookingID, 10000)
	require.NoError(t, db.CreateEscrowEntry(ctx, entry))

	entry.State = models.EscrowSplit
	entry.AmountReleased = 6000
	entry.AmountRefunded = 5000 // 11000 > held
	err := db.UpdateEscrowEntry(ctx, entry)
	assert.ErrorIs(t, err, ErrLedgerCorrupt)

	entry.AmountRefunded = -1
	entry.AmountReleased = 0
	err = db.UpdateEscrowEntry(ctx, entry)
	assert.ErrorIs(t, err, ErrLedgerCorrupt)

	// The stored row stays untouched
	got, err := db.GetEscrowEntry(ctx, bookingID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowHeld, got.State)
	assert.Zero(t, got.AmountReleased)
	assert.Zero(t, got.AmountRefunded)
}

func TestUpdateEscrowEntry_Split(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	entry := heldEntry(uuid.NewString(), 10000)
	require.NoError(t, db.CreateEscrowEntry(ctx, entry))

	entry.State = models.EscrowSplit
	entry.AmountReleased = 6000
	entry.AmountRefunded = 4000
	require.NoError(t, db.UpdateEscrowEntry(ctx, entry))

	got, err := db.GetEscrowEntry(ctx, entry.BookingID)
	require.NoError(t, err)
	assert.Equal(t, models.EscrowSplit, got.State)
	assert.Equal(t, int64(6000), got.AmountReleased)
	assert.Equal(t, int64(4000), got.AmountRefunded)
}

func TestListDueEscrowReleases(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()

	due := heldEntry(uuid.NewString(), 5000)
	past := now.Add(-time.Hour)
	due.ReleaseScheduledAt = &past
	require.NoError(t, db.CreateEscrowEntry(ctx, due))

	notYet := heldEntry(uuid.NewString(), 5000)
	future := now.Add(time.Hour)
	notYet.ReleaseScheduledAt = &future
	require.NoError(t, db.CreateEscrowEntry(ctx, notYet))

	// No timer armed
	unscheduled := heldEntry(uuid.NewString(), 5000)
	require.NoError(t, db.CreateEscrowEntry(ctx, unscheduled))

	// Already released entries never come back
	released := heldEntry(uuid.NewString(), 5000)
	released.ReleaseScheduledAt = &past
	require.NoError(t, db.CreateEscrowEntry(ctx, released))
	released.State = models.EscrowReleased
	released.AmountReleased = 5000
	require.NoError(t, db.UpdateEscrowEntry(ctx, released))

	entries, err := db.ListDueEscrowReleases(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, due.BookingID, entries[0].BookingID)
}
