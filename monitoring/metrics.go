package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checkoutOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_operations_total",
			Help: "Total checkout operations",
		},
		[]string{"operation", "status"},
	)

	gatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_request_duration_seconds",
			Help:    "Duration of payment gateway calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"provider", "operation", "status"},
	)

	ticketsSold = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_sold_total",
			Help: "Tickets moved to paid per event",
		},
		[]string{"event_id"},
	)

	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_notifications_total",
			Help: "Confirmation notifications by outcome",
		},
		[]string{"driver", "topic", "status"},
	)

	notifyQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ticket_notification_queue_depth",
			Help: "Notifications waiting to be published",
		},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	rateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_requests_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"route"},
	)
)

type Monitor struct{}

func NewMonitor() *Monitor {
	return &Monitor{}
}

// Track checkout operations
func (m *Monitor) TrackCheckoutOperation(operation, status string) {
	checkoutOperations.WithLabelValues(operation, status).Inc()
}

func (m *Monitor) TrackGatewayCall(provider, operation, status string, duration time.Duration) {
	gatewayDuration.WithLabelValues(provider, operation, status).Observe(duration.Seconds())
}

func (m *Monitor) TrackTicketsSold(eventID string, n int) {
	if n <= 0 {
		return
	}
	ticketsSold.WithLabelValues(eventID).Add(float64(n))
}

func (m *Monitor) TrackNotification(driver, topic, status string) {
	notifications.WithLabelValues(driver, topic, status).Inc()
}

func (m *Monitor) SetNotifyQueueDepth(n int) {
	notifyQueueDepth.Set(float64(n))
}

func (m *Monitor) SetBreakerState(name string, state int) {
	breakerState.WithLabelValues(name).Set(float64(state))
}

func (m *Monitor) TrackRateLimited(route string) {
	rateLimited.WithLabelValues(route).Inc()
}
