package worker

import (
	"context"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/domain"
	"github.com/CMZCoder/CommerzioS-sub000/internal/metrics"
	"github.com/CMZCoder/CommerzioS-sub000/internal/models"

	"github.com/rs/zerolog"
)

// Releaser settles a single escrow entry if its timer has fired. It reports
// whether funds actually moved.
type Releaser interface {
	ReleaseIfDue(ctx context.Context, bookingID string) (bool, error)
}

// ReleaseWorker polls for escrow entries whose auto-release is due and hands
// each one to the ledger. The ledger re-checks state and disputes under the
// per-booking lock, so the worker itself needs no coordination beyond the
// poll loop.
type ReleaseWorker struct {
	escrow       domain.EscrowRepository
	releaser     Releaser
	pollInterval time.Duration
	batchSize    int
	retryPolicy  RetryPolicy
	logger       *zerolog.Logger
}

func NewReleaseWorker(
	escrow domain.EscrowRepository,
	releaser Releaser,
	pollInterval time.Duration,
	batchSize int,
	logger *zerolog.Logger,
) *ReleaseWorker {
	if pollInterval <= 0 {
		pollInterval = time.Duration(models.DefaultReleasePollSeconds) * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &ReleaseWorker{
		escrow:       escrow,
		releaser:     releaser,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		retryPolicy: RetryPolicy{
			MaxRetries:    3,
			InitialDelay:  time.Second,
			MaxDelay:      30 * time.Second,
			BackoffFactor: 2,
		},
		logger: logger,
	}
}

// Run polls until the context is cancelled.
func (w *ReleaseWorker) Run(ctx context.Context) {
	w.logger.Info().Dur("poll_interval", w.pollInterval).Msg("release worker started")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("release worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce processes one batch of due entries. Exported for tests and for a
// manual admin trigger.
func (w *ReleaseWorker) RunOnce(ctx context.Context) {
	due, err := w.escrow.ListDueEscrowReleases(ctx, time.Now(), w.batchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("list due releases error")
		return
	}

	for _, entry := range due {
		if ctx.Err() != nil {
			return
		}
		w.releaseWithRetry(ctx, entry.BookingID)
	}
}

func (w *ReleaseWorker) releaseWithRetry(ctx context.Context, bookingID string) {
	for attempt := 1; ; attempt++ {
		released, err := w.releaser.ReleaseIfDue(ctx, bookingID)
		if err == nil {
			if released {
				metrics.EscrowAutoReleases.Inc()
				w.logger.Info().Str("booking_id", bookingID).Msg("escrow auto-released")
			}
			return
		}

		if attempt > w.retryPolicy.MaxRetries {
			w.logger.Error().Err(err).Str("booking_id", bookingID).
				Int("attempts", attempt).Msg("auto-release gave up, will retry next poll")
			return
		}

		delay := w.retryPolicy.NextDelay(attempt)
		w.logger.Warn().Err(err).Str("booking_id", bookingID).
			Int("attempt", attempt).Dur("retry_in", delay).Msg("auto-release failed, retrying")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}
