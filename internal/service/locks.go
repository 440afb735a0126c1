package service

import "sync"

// BookingLocks serializes every operation touching the same booking. The
// state machine, the escrow ledger, the dispute engine and the auto-release
// worker must share one instance so that e.g. a completeService and a
// markNoShow racing on one booking cannot both succeed.
type BookingLocks struct {
	mu    sync.Mutex
	locks map[string]*bookingLock
}

type bookingLock struct {
	mu   sync.Mutex
	refs int
}

func NewBookingLocks() *BookingLocks {
	return &BookingLocks{locks: make(map[string]*bookingLock)}
}

// Lock enters the exclusive section for a booking and returns the unlock
// function. Entries are reference-counted and dropped when unused.
func (l *BookingLocks) Lock(bookingID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[bookingID]
	if !ok {
		entry = &bookingLock{}
		l.locks[bookingID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, bookingID)
		}
		l.mu.Unlock()
	}
}
