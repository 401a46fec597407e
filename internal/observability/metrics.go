package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campuschat_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// RedisCommandDuration tracks Redis round trips by command.
	RedisCommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campuschat_redis_command_duration_seconds",
		Help:    "Redis command latency in seconds",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}, []string{"operation"})

	// WebSocketConnectionsTotal is the gauge of bound chat sessions.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "campuschat_websocket_connections_total",
		Help: "Total number of active WebSocket sessions",
	})

	// WebSocketEventsTotal counts inbound WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campuschat_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campuschat_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// MessagesRouted counts messages appended to a channel, by kind (group, private).
	MessagesRouted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campuschat_messages_routed_total",
		Help: "Total number of chat messages stored and fanned out",
	}, []string{"kind"})

	// MessagesDropped counts sends that never reached a channel, by kind and reason.
	MessagesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campuschat_messages_dropped_total",
		Help: "Total number of chat sends rejected before storage",
	}, []string{"kind", "reason"})

	// FanoutDeliveries counts frames enqueued to sessions during fan-out.
	FanoutDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campuschat_fanout_deliveries_total",
		Help: "Total number of frames enqueued to subscribed sessions",
	}, []string{"kind"})

	// FanoutSuppressed counts group deliveries skipped because the recipient blocked the sender.
	FanoutSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campuschat_fanout_suppressed_total",
		Help: "Total number of group deliveries suppressed by a block edge",
	})

	// RetentionSweeps counts sweeper ticks by outcome.
	RetentionSweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campuschat_retention_sweeps_total",
		Help: "Total number of retention sweeps by outcome",
	}, []string{"outcome"})

	// MessagesPruned counts messages removed by the retention sweeper, by kind.
	MessagesPruned = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campuschat_messages_pruned_total",
		Help: "Total number of messages expired by the retention sweeper",
	}, []string{"kind"})

	// ChannelsResident is the gauge of channels held in memory, by kind.
	ChannelsResident = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "campuschat_channels_resident",
		Help: "Number of in-memory channels by kind",
	}, []string{"kind"})

	ReportQueueEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campuschat_report_queue_entries_total",
		Help: "Users whose report count reached the moderation threshold",
	})
)
