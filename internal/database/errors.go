package database

import "errors"

var (
	// ErrNotFound entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSlotUnavailable the vendor slot is already held by a non-cancelled booking.
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrInvalidTransition the requested status change is not in the booking graph.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrDuplicateHold an active escrow hold already exists for the booking.
	ErrDuplicateHold = errors.New("duplicate escrow hold")

	// ErrDisputeAlreadyOpen the booking already has an open or under-review dispute.
	ErrDisputeAlreadyOpen = errors.New("dispute already open")

	// ErrAlreadyResolved the dispute was resolved before; resolutions apply once.
	ErrAlreadyResolved = errors.New("dispute already resolved")

	// ErrLedgerCorrupt released+refunded would exceed the held amount.
	// Indicates a ledger bug; the operation must not be applied.
	ErrLedgerCorrupt = errors.New("escrow accounting invariant violated")

	// ErrConcurrentModification optimistic version check failed.
	ErrConcurrentModification = errors.New("concurrent modification")

	// ErrEmailTaken registration with an email that already exists.
	ErrEmailTaken = errors.New("email already registered")
)
