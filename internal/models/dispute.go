package models

import "time"

type Dispute struct {
	ID               string     `json:"id"`
	BookingID        string     `json:"booking_id"`
	OpenedBy         string     `json:"opened_by"`
	Status           string     `json:"status"` // open, under_review, resolved, closed
	Reason           string     `json:"reason"`
	Description      string     `json:"description,omitempty"`
	Evidence         string     `json:"evidence,omitempty"`
	Resolution       string     `json:"resolution,omitempty"` // full_refund, full_release, split
	SplitCustomerPct int64      `json:"split_customer_pct,omitempty"`
	ResolvedBy       string     `json:"resolved_by,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
}

// Active reports whether the dispute still blocks escrow auto-release.
func (d *Dispute) Active() bool {
	return d.Status == DisputeOpen || d.Status == DisputeUnderReview
}

// ValidResolution reports whether the resolution kind and split share are usable.
func ValidResolution(resolution string, customerPct int64) bool {
	switch resolution {
	case ResolutionFullRefund, ResolutionFullRelease:
		return true
	case ResolutionSplit:
		return customerPct >= 0 && customerPct <= 100
	}
	return false
}
