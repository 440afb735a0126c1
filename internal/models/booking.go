package models

import "time"

type Booking struct {
	ID            string    `json:"id"`
	ServiceID     string    `json:"service_id"`
	ServiceName   string    `json:"service_name"`
	CustomerID    string    `json:"customer_id"`
	VendorID      string    `json:"vendor_id"`
	Status        string    `json:"status"` // pending, confirmed, in_progress, completed, cancelled, no_show, disputed
	ScheduledDate string    `json:"scheduled_date"` // YYYY-MM-DD
	ScheduledTime string    `json:"scheduled_time"` // HH:MM
	TotalPrice    int64     `json:"total_price"`    // rappen (CHF cents)
	PaymentMethod string    `json:"payment_method"`
	Notes         string    `json:"notes,omitempty"`
	Address       string    `json:"address,omitempty"`
	ProposedDate  string    `json:"proposed_date,omitempty"` // pending counter-offer, empty when none
	ProposedTime  string    `json:"proposed_time,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Version       int64     `json:"version"`
}

// bookingTransitions lists the statuses reachable from each status.
var bookingTransitions = map[string][]string{
	BookingPending:    {BookingConfirmed, BookingCancelled, BookingDisputed},
	BookingConfirmed:  {BookingInProgress, BookingCancelled, BookingNoShow, BookingDisputed},
	BookingInProgress: {BookingCompleted, BookingNoShow, BookingDisputed},
	BookingCompleted:  {BookingDisputed},
	BookingDisputed:   {BookingCompleted, BookingCancelled},
}

// CanTransition reports whether status graph allows from -> to.
func CanTransition(from, to string) bool {
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalBookingStatus reports whether no further transition is possible.
func IsTerminalBookingStatus(status string) bool {
	return len(bookingTransitions[status]) == 0
}

// SlotAt combines scheduled date and time into a single instant.
// The zero time is returned when the slot fields are malformed.
func (b *Booking) SlotAt() time.Time {
	t, err := time.Parse("2006-01-02 15:04", b.ScheduledDate+" "+b.ScheduledTime)
	if err != nil {
		return time.Time{}
	}
	return t
}

// HasPendingAlternative reports whether a counter-offer awaits the customer.
func (b *Booking) HasPendingAlternative() bool {
	return b.ProposedDate != "" && b.ProposedTime != ""
}

// UsesEscrow reports whether the payment method settles through the escrow ledger.
func (b *Booking) UsesEscrow() bool {
	return b.PaymentMethod == PaymentCard || b.PaymentMethod == PaymentTwint
}
