package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the notification server
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   prometheus.CounterVec
	HTTPRequestDuration prometheus.HistogramVec

	// WebSocket connection metrics
	WSConnectionsTotal  prometheus.Counter
	WSConnectionsActive prometheus.Gauge

	// Fan-out metrics
	NotificationsIngestedTotal  prometheus.CounterVec
	NotificationsDeliveredTotal prometheus.Counter
	NotificationsDroppedTotal   prometheus.CounterVec

	// Redis bridge metrics
	BridgePublishesTotal  prometheus.Counter
	BridgeDeliveriesTotal prometheus.Counter

	// Rate limiting
	RateLimitExceededTotal prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			WSConnectionsTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "ws_connections_total",
					Help: "Total number of WebSocket connections accepted",
				},
			),
			WSConnectionsActive: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "ws_connections_active",
					Help: "Number of currently open WebSocket connections",
				},
			),
			NotificationsIngestedTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "notifications_ingested_total",
					Help: "Notifications accepted on /api/notify",
				},
				[]string{"type"},
			),
			NotificationsDeliveredTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "notifications_delivered_total",
					Help: "Notification payloads handed to a live connection",
				},
			),
			NotificationsDroppedTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "notifications_dropped_total",
					Help: "Delivery attempts that did not reach a connection",
				},
				[]string{"reason"},
			),
			BridgePublishesTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "bridge_publishes_total",
					Help: "Notifications published to the Redis bridge",
				},
			),
			BridgeDeliveriesTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "bridge_deliveries_total",
					Help: "Notifications received from the Redis bridge",
				},
			),
			RateLimitExceededTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Requests rejected by rate limiting",
				},
				[]string{"endpoint"},
			),
		}
	})
	return instance
}

// Get returns the metrics instance, initializing it if needed
func Get() *Metrics {
	return Initialize()
}
