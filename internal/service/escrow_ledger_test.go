package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/database"
	"github.com/CMZCoder/CommerzioS-sub000/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_Hold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.ledger.Hold(ctx, "b1", 10000))

	entry, err := env.ledger.Entry(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.EscrowHeld, entry.State)
	assert.Equal(t, int64(10000), entry.AmountHeld)
	assert.Zero(t, entry.AmountReleased)
	assert.Zero(t, entry.AmountRefunded)
}

func TestLedger_DuplicateHold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.ledger.Hold(ctx, "b1", 10000))
	err := env.ledger.Hold(ctx, "b1", 10000)
	assert.ErrorIs(t, err, database.ErrDuplicateHold)
}

func TestLedger_HoldRejectsNonPositiveAmount(t *testing.T) {
	env := newTestEnv(t)
	assert.Error(t, env.ledger.Hold(context.Background(), "b1", 0))
	assert.Error(t, env.ledger.Hold(context.Background(), "b1", -500))
}

func TestLedger_ReleaseIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.ledger.Hold(ctx, "b1", 10000))

	require.NoError(t, env.ledger.Release(ctx, "b1"))
	require.NoError(t, env.ledger.Release(ctx, "b1"), "repeated release is a no-op")

	entry, err := env.ledger.Entry(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.EscrowReleased, entry.State)
	assert.Equal(t, int64(10000), entry.AmountReleased)
}

func TestLedger_RefundAfterReleaseRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.ledger.Hold(ctx, "b1", 10000))
	require.NoError(t, env.ledger.Release(ctx, "b1"))

	err := env.ledger.Refund(ctx, "b1")
	assert.ErrorIs(t, err, database.ErrInvalidTransition)
}

func TestLedger_SplitExact(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.ledger.Hold(ctx, "b1", 9999))

	require.NoError(t, env.ledger.Split(ctx, "b1", 33))

	entry, err := env.ledger.Entry(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.EscrowSplit, entry.State)
	assert.Equal(t, entry.AmountHeld, entry.AmountReleased+entry.AmountRefunded,
		"split must account for every rappen")
	assert.Equal(t, int64(3299), entry.AmountRefunded)
	assert.Equal(t, int64(6700), entry.AmountReleased)

	// Repeating the split changes nothing.
	require.NoError(t, env.ledger.Split(ctx, "b1", 90))
	again, err := env.ledger.Entry(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, int64(3299), again.AmountRefunded)
}

func TestLedger_SplitPctBounds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.ledger.Hold(ctx, "b1", 10000))

	assert.Error(t, env.ledger.Split(ctx, "b1", -1))
	assert.Error(t, env.ledger.Split(ctx, "b1", 101))
}

func TestLedger_ScheduleAutoRelease(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.ledger.Hold(ctx, "b1", 10000))

	require.NoError(t, env.ledger.ScheduleAutoRelease(ctx, "b1", time.Hour))
	entry, err := env.ledger.Entry(ctx, "b1")
	require.NoError(t, err)
	require.NotNil(t, entry.ReleaseScheduledAt)

	// No entry (cash booking) is fine.
	require.NoError(t, env.ledger.ScheduleAutoRelease(ctx, "missing", time.Hour))
}

func TestLedger_ReleaseIfDue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.ledger.Hold(ctx, "b1", 10000))
	require.NoError(t, env.ledger.ScheduleAutoRelease(ctx, "b1", time.Hour))

	released, err := env.ledger.ReleaseIfDue(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, released, "timer has not fired yet")

	env.ledger.now = func() time.Time { return time.Now().UTC().Add(2 * time.Hour) }
	released, err = env.ledger.ReleaseIfDue(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, released)

	// Unknown bookings and already-released entries report false.
	released, err = env.ledger.ReleaseIfDue(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, released)
	released, err = env.ledger.ReleaseIfDue(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, released)
}

func TestLedger_ConcurrentReleaseAndRefund(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.ledger.Hold(ctx, "b1", 10000))

	// Race a release against a refund; the per-booking lock serializes them,
	// so exactly one wins and the other sees InvalidTransition.
	var wg sync.WaitGroup
	results := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); results[0] = env.ledger.Release(ctx, "b1") }()
	go func() { defer wg.Done(); results[1] = env.ledger.Refund(ctx, "b1") }()
	wg.Wait()

	var failures int
	for _, err := range results {
		if err != nil {
			assert.ErrorIs(t, err, database.ErrInvalidTransition)
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	entry, err := env.ledger.Entry(ctx, "b1")
	require.NoError(t, err)
	assert.LessOrEqual(t, entry.AmountReleased+entry.AmountRefunded, entry.AmountHeld)
	assert.Equal(t, entry.AmountHeld, entry.AmountReleased+entry.AmountRefunded)
}
