package worker

import "time"

// RetryPolicy spaces repeated attempts with exponential backoff. The zero
// value retries from one second, doubling each attempt, with no upper bound.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// NextDelay returns the wait before the given attempt. Attempts count from 1;
// anything lower gets the first delay. The result never exceeds MaxDelay when
// one is set.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	initial := r.InitialDelay
	if initial <= 0 {
		initial = time.Second
	}
	factor := r.BackoffFactor
	if factor <= 0 {
		factor = 2
	}

	delay := float64(initial)
	for i := 1; i < attempt; i++ {
		delay *= factor
		if r.MaxDelay > 0 && delay >= float64(r.MaxDelay) {
			return r.MaxDelay
		}
	}

	d := time.Duration(delay)
	if d <= 0 {
		d = time.Second
	}
	return d
}
