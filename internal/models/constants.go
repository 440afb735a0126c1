package models

// Booking statuses
const (
	BookingPending    = "pending"
	BookingConfirmed  = "confirmed"
	BookingInProgress = "in_progress"
	BookingCompleted  = "completed"
	BookingCancelled  = "cancelled"
	BookingNoShow     = "no_show"
	BookingDisputed   = "disputed"
)

// Payment methods
const (
	PaymentCard  = "card"
	PaymentTwint = "twint"
	PaymentCash  = "cash"
)

// Escrow states
const (
	EscrowHeld     = "held"
	EscrowReleased = "released"
	EscrowRefunded = "refunded"
	EscrowSplit    = "split"
	EscrowNone     = "none"
)

// Dispute statuses
const (
	DisputeOpen        = "open"
	DisputeUnderReview = "under_review"
	DisputeResolved    = "resolved"
	DisputeClosed      = "closed"
)

// Dispute resolutions
const (
	ResolutionFullRefund  = "full_refund"
	ResolutionFullRelease = "full_release"
	ResolutionSplit       = "split"
)

// Actors that can drive a booking transition
const (
	ActorCustomer = "customer"
	ActorVendor   = "vendor"
	ActorAdmin    = "admin"
	ActorSystem   = "system"
)

// User roles
const (
	RoleCustomer = "customer"
	RoleVendor   = "vendor"
	RoleAdmin    = "admin"
)

// Currency is the only settlement currency.
const Currency = "CHF"

const (
	// DefaultAutoReleaseDelay grace period between service completion and
	// automatic escrow release to the vendor.
	DefaultAutoReleaseDelay = 72 * 60 * 60 // 72 hours in seconds

	// DefaultSessionTTL lifetime of an auth session token
	DefaultSessionTTL = 7 * 24 * 60 * 60 // 7 days in seconds

	// DefaultWebhookDedupTTL retention of processed payment event ids
	DefaultWebhookDedupTTL = 24 * 60 * 60 // 24 hours in seconds

	// DefaultReleasePollSeconds auto-release worker poll interval
	DefaultReleasePollSeconds = 30

	// RateLimitRequests requests allowed per client per window
	RateLimitRequests = 60

	// RateLimitWindow rate limit window in seconds
	RateLimitWindow = 60
)
