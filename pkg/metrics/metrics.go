package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Event stages for EventsTotal.
const (
	StageEmitted     = "emitted"
	StageTriggered   = "triggered"
	StageRepublished = "republished"
	StagePublished   = "published"
	StageDelivered   = "delivered"
	StageDropped     = "dropped"
)

// Buffer labels for the drain metrics.
const (
	BufferInstance = "instance"
	BufferCentral  = "central"
)

var (
	// Relay metrics
	InstancesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "scbackend_instances_total",
			Help: "Total number of registered instances by state",
		},
		[]string{"state"},
	)

	SubscribersTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scbackend_subscribers_total",
			Help: "Number of connected stream subscribers",
		},
	)

	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scbackend_events_total",
			Help: "Total number of events by relay stage",
		},
		[]string{"stage"},
	)

	DrainsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scbackend_drains_total",
			Help: "Total number of drain workers started by buffer",
		},
		[]string{"buffer"},
	)

	DrainCoalescedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scbackend_drain_coalesced_total",
			Help: "Total number of drain requests folded into a running worker",
		},
		[]string{"buffer"},
	)

	ListenerPanicsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scbackend_listener_panics_total",
			Help: "Total number of recovered listener panics",
		},
	)

	InboundMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scbackend_inbound_messages_total",
			Help: "Total number of subscriber messages by parsed type",
		},
		[]string{"type"},
	)

	// Engine metrics
	EngineStartDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scbackend_engine_start_seconds",
			Help:    "Time taken to initialize, load and start an engine in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scbackend_api_requests_total",
			Help: "Total number of API requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scbackend_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(InstancesTotal)
	prometheus.MustRegister(SubscribersTotal)
	prometheus.MustRegister(EventsTotal)
	prometheus.MustRegister(DrainsTotal)
	prometheus.MustRegister(DrainCoalescedTotal)
	prometheus.MustRegister(ListenerPanicsTotal)
	prometheus.MustRegister(InboundMessagesTotal)
	prometheus.MustRegister(EngineStartDuration)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
