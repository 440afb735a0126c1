package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/database"
	"github.com/CMZCoder/CommerzioS-sub000/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryPolicyNextDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, MaxDelay: 10 * time.Second, BackoffFactor: 2}

	assert.Equal(t, time.Second, policy.NextDelay(1))
	assert.Equal(t, 2*time.Second, policy.NextDelay(2))
	assert.Equal(t, 4*time.Second, policy.NextDelay(3))
	assert.Equal(t, 10*time.Second, policy.NextDelay(10), "clamped to max")
	assert.Equal(t, time.Second, policy.NextDelay(0), "attempt below 1 treated as 1")
}

func TestRetryPolicyDefaults(t *testing.T) {
	policy := RetryPolicy{}
	assert.Equal(t, time.Second, policy.NextDelay(1))
	assert.Equal(t, 2*time.Second, policy.NextDelay(2))
}

type fakeReleaser struct {
	mu       sync.Mutex
	released []string
	failures map[string]int
}

func (f *fakeReleaser) ReleaseIfDue(_ context.Context, bookingID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures[bookingID] > 0 {
		f.failures[bookingID]--
		return false, errors.New("transient")
	}
	f.released = append(f.released, bookingID)
	return true, nil
}

func newWorkerDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedDueEntry(t *testing.T, db *database.DB, bookingID string, due time.Time) {
	t.Helper()
	ctx := context.Background()
	entry := &models.EscrowEntry{BookingID: bookingID, State: models.EscrowHeld, AmountHeld: 10000}
	require.NoError(t, db.CreateEscrowEntry(ctx, entry))
	entry.ReleaseScheduledAt = &due
	require.NoError(t, db.UpdateEscrowEntry(ctx, entry))
}

func TestReleaseWorker_RunOnce(t *testing.T) {
	db := newWorkerDB(t)
	past := time.Now().Add(-time.Minute)
	seedDueEntry(t, db, "b1", past)
	seedDueEntry(t, db, "b2", past)
	seedDueEntry(t, db, "b3", time.Now().Add(time.Hour)) // not due yet

	releaser := &fakeReleaser{}
	logger := zerolog.Nop()
	w := NewReleaseWorker(db, releaser, time.Second, 10, &logger)

	w.RunOnce(context.Background())

	assert.ElementsMatch(t, []string{"b1", "b2"}, releaser.released)
}

func TestReleaseWorker_RetriesTransientErrors(t *testing.T) {
	db := newWorkerDB(t)
	seedDueEntry(t, db, "b1", time.Now().Add(-time.Minute))

	releaser := &fakeReleaser{failures: map[string]int{"b1": 2}}
	logger := zerolog.Nop()
	w := NewReleaseWorker(db, releaser, time.Second, 10, &logger)
	w.retryPolicy = RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond, BackoffFactor: 2}

	w.RunOnce(context.Background())

	assert.Equal(t, []string{"b1"}, releaser.released)
}

func TestReleaseWorker_GivesUpAfterMaxRetries(t *testing.T) {
	db := newWorkerDB(t)
	seedDueEntry(t, db, "b1", time.Now().Add(-time.Minute))

	releaser := &fakeReleaser{failures: map[string]int{"b1": 100}}
	logger := zerolog.Nop()
	w := NewReleaseWorker(db, releaser, time.Second, 10, &logger)
	w.retryPolicy = RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, BackoffFactor: 2}

	w.RunOnce(context.Background())

	assert.Empty(t, releaser.released, "entry stays for the next poll")
}

func TestReleaseWorker_RunStopsOnCancel(t *testing.T) {
	db := newWorkerDB(t)
	releaser := &fakeReleaser{}
	logger := zerolog.Nop()
	w := NewReleaseWorker(db, releaser, 10*time.Millisecond, 10, &logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
