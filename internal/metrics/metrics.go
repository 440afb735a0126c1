package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "commerzio",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status.",
		},
		[]string{"endpoint", "status"},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "commerzio",
			Name:      "booking_transitions_total",
			Help:      "Booking status transitions by target status.",
		},
		[]string{"status"},
	)

	escrowMovements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "commerzio",
			Name:      "escrow_movements_total",
			Help:      "Escrow fund movements by resulting state.",
		},
		[]string{"state"},
	)

	// EscrowAutoReleases counts releases performed by the timer worker.
	EscrowAutoReleases = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "commerzio",
			Name:      "escrow_auto_releases_total",
			Help:      "Escrow releases triggered by the auto-release worker.",
		},
	)

	disputesOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "commerzio",
			Name:      "disputes_opened_total",
			Help:      "Disputes opened.",
		},
	)

	disputesResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "commerzio",
			Name:      "disputes_resolved_total",
			Help:      "Disputes resolved by resolution kind.",
		},
		[]string{"resolution"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			bookingTransitions,
			escrowMovements,
			EscrowAutoReleases,
			disputesOpened,
			disputesResolved,
		)
	})
}

// IncHTTP increments the counter for an endpoint and status label.
func IncHTTP(endpoint, status string) {
	httpRequests.WithLabelValues(endpoint, status).Inc()
}

// IncBookingTransition increments the transition counter for a target status.
func IncBookingTransition(status string) {
	bookingTransitions.WithLabelValues(status).Inc()
}

// IncEscrowMovement increments the escrow counter for a resulting state.
func IncEscrowMovement(state string) {
	escrowMovements.WithLabelValues(state).Inc()
}

// IncDisputeOpened increments the opened-disputes counter.
func IncDisputeOpened() {
	disputesOpened.Inc()
}

// IncDisputeResolved increments the resolved counter for a resolution kind.
func IncDisputeResolved(resolution string) {
	disputesResolved.WithLabelValues(resolution).Inc()
}
