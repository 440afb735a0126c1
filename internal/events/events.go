package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventBookingRequested   = "booking_requested"
	EventBookingConfirmed   = "booking_confirmed"
	EventBookingRejected    = "booking_rejected"
	EventBookingCancelled   = "booking_cancelled"
	EventBookingStarted     = "booking_started"
	EventBookingCompleted   = "booking_completed"
	EventBookingNoShow      = "booking_no_show"
	EventBookingAlternative = "booking_alternative_proposed"
	EventEscrowHeld         = "escrow_held"
	EventEscrowReleased     = "escrow_released"
	EventEscrowRefunded     = "escrow_refunded"
	EventEscrowSplit        = "escrow_split"
	EventDisputeOpened      = "dispute_opened"
	EventDisputeResolved    = "dispute_resolved"
)

// BookingEventPayload is the booking snapshot delivered to subscribers.
type BookingEventPayload struct {
	BookingID     string `json:"booking_id"`
	CustomerID    string `json:"customer_id"`
	VendorID      string `json:"vendor_id"`
	ServiceName   string `json:"service_name"`
	Status        string `json:"status"`
	ScheduledDate string `json:"scheduled_date"`
	ScheduledTime string `json:"scheduled_time"`
	TotalPrice    int64  `json:"total_price"`
	Actor         string `json:"actor,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// EscrowEventPayload describes a fund movement.
type EscrowEventPayload struct {
	BookingID      string `json:"booking_id"`
	State          string `json:"state"`
	AmountHeld     int64  `json:"amount_held"`
	AmountReleased int64  `json:"amount_released"`
	AmountRefunded int64  `json:"amount_refunded"`
}

// DisputeEventPayload describes a dispute lifecycle step.
type DisputeEventPayload struct {
	DisputeID  string `json:"dispute_id"`
	BookingID  string `json:"booking_id"`
	CustomerID string `json:"customer_id,omitempty"`
	VendorID   string `json:"vendor_id,omitempty"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	Resolution string `json:"resolution,omitempty"`
}

// Event is a lightweight in-process domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
