package models

import "time"

// EscrowEntry is the authoritative fund state for one booking.
// Amounts are rappen; released + refunded never exceeds held.
type EscrowEntry struct {
	BookingID          string     `json:"booking_id"`
	State              string     `json:"state"` // held, released, refunded, split, none
	AmountHeld         int64      `json:"amount_held"`
	AmountReleased     int64      `json:"amount_released"`
	AmountRefunded     int64      `json:"amount_refunded"`
	ReleaseScheduledAt *time.Time `json:"release_scheduled_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Remaining returns the held amount not yet released or refunded.
func (e *EscrowEntry) Remaining() int64 {
	return e.AmountHeld - e.AmountReleased - e.AmountRefunded
}

// Terminal reports whether no further fund movement is allowed.
func (e *EscrowEntry) Terminal() bool {
	switch e.State {
	case EscrowReleased, EscrowRefunded, EscrowSplit:
		return true
	}
	return false
}

// SplitAmounts computes the refund/release pair for a split resolution.
// The refund share is rounded down to a whole rappen; the vendor receives
// the remainder, so the two parts always sum to the held amount.
func SplitAmounts(held int64, customerPct int64) (refund, release int64) {
	refund = held * customerPct / 100
	release = held - refund
	return refund, release
}
