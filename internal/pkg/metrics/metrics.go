// Package metrics defines the prometheus collectors of the fleet hub.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every fleet hub collector plus the Go and process collectors.
var Registry = prometheus.NewRegistry()

var (
	// BrokerConnectivityStatus records the MQTT session state.
	// 1 = Connected, 0 = Disconnected
	BrokerConnectivityStatus = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleethub_broker_connectivity_status",
			Help: "The connectivity status to the MQTT broker (1=Connected, 0=Disconnected).",
		},
	)

	// MessagesReceivedTotal counts inbound transport messages by topic kind.
	MessagesReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleethub_messages_received_total",
			Help: "Total number of inbound messages by topic kind.",
		},
		[]string{"kind"}, // kind: status/command/unrecognized
	)

	// MessagesDroppedTotal counts inbound messages that changed nothing.
	MessagesDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleethub_messages_dropped_total",
			Help: "Total number of inbound messages dropped, by reason.",
		},
		[]string{"reason"}, // reason: topic/echo/malformed/stale
	)

	// VehiclesTracked is the number of vehicles in the registry.
	VehiclesTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleethub_vehicles_tracked",
			Help: "Number of vehicles currently held in the registry.",
		},
	)

	// GeofenceEventsTotal counts emitted geofence events.
	GeofenceEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleethub_geofence_events_total",
			Help: "Total number of geofence events emitted.",
		},
		[]string{"type", "subject_kind"},
	)

	// GeofenceSubjects is the number of subjects with live geofence state.
	GeofenceSubjects = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleethub_geofence_subjects",
			Help: "Number of subjects tracked by the geofence monitor.",
		},
	)

	// OutboundDroppedTotal counts notifications discarded because the outbound queue was full.
	OutboundDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleethub_outbound_dropped_total",
			Help: "Total number of outbound notifications dropped on a full queue.",
		},
		[]string{"kind"}, // kind: geofence/diagnostic/state
	)

	// OutboundQueueDepth is the number of notifications waiting for delivery.
	OutboundQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleethub_outbound_queue_depth",
			Help: "Number of outbound notifications waiting for delivery.",
		},
	)

	// CommandSentTotal counts finished commands by terminal status.
	CommandSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleethub_command_sent_total",
			Help: "Total number of vehicle commands by terminal status.",
		},
		[]string{"status", "action"}, // status: Acknowledged/Failed/TimedOut/Cancelled
	)

	// CommandPublishAttemptsTotal counts every transport publish attempt.
	CommandPublishAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleethub_command_publish_attempts_total",
			Help: "Total number of command publish attempts by result.",
		},
		[]string{"result"}, // result: ok/error
	)

	// CommandLatency records the time from Send to the terminal status.
	CommandLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleethub_command_latency_seconds",
			Help:    "Latency from issuing a command to its terminal status.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"action"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		BrokerConnectivityStatus,
		MessagesReceivedTotal,
		MessagesDroppedTotal,
		VehiclesTracked,
		GeofenceEventsTotal,
		GeofenceSubjects,
		OutboundDroppedTotal,
		OutboundQueueDepth,
		CommandSentTotal,
		CommandPublishAttemptsTotal,
		CommandLatency,
	)
}

// Handler serves the fleet hub registry in the prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
