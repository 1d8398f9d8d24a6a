package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Trigger metrics
	MessagesSeen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "esquie_messages_seen_total",
			Help: "Total message-created events received",
		},
	)

	Triggers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esquie_triggers_total",
			Help: "Total requests accepted for a response",
		},
		[]string{"kind"}, // "mention", "reply_media", "explain", "reaction"
	)

	// Serializer metrics
	RequestsQueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "esquie_requests_queued_total",
			Help: "Total requests that had to wait for the processing slot",
		},
	)

	// Completion metrics
	CompletionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esquie_completion_requests_total",
			Help: "Total completion API calls by outcome",
		},
		[]string{"backend", "outcome"}, // outcome: "ok", "network", "malformed", "unexpected"
	)

	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "esquie_completion_duration_seconds",
			Help:    "Completion API call duration",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 20, 40, 60},
		},
		[]string{"backend"},
	)

	HistoryTurns = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "esquie_history_turns",
			Help:    "Transcript turns rebuilt from reply chains",
			Buckets: []float64{0, 1, 2, 4, 6, 8, 10},
		},
	)

	// Delivery metrics
	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esquie_deliveries_total",
			Help: "Messages delivered by strategy",
		},
		[]string{"strategy"}, // "edit", "reply", "channel", "failed"
	)

	ImagesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "esquie_images_generated_total",
			Help: "Total /image commands by outcome",
		},
		[]string{"outcome"},
	)

	// Gateway metrics
	GatewayConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "esquie_gateway_connected",
			Help: "1 while the Discord gateway session is connected",
		},
	)
)

// RegisterSlotGauges exposes the processing slot state. busy and waiting are
// read on every scrape.
func RegisterSlotGauges(reg prometheus.Registerer, busy func() float64, waiting func() float64) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "esquie_slot_busy",
			Help: "1 while a request holds the processing slot",
		}, busy),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "esquie_queue_depth",
			Help: "Requests waiting for the processing slot",
		}, waiting),
	)
}
