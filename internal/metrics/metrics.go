package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingress metrics
	IngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logward_ingested_total",
			Help: "Total records accepted into the ingest queue",
		},
		[]string{"source"},
	)
	IngestRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logward_ingest_rejected_total",
			Help: "Total records rejected at ingress because the queue was full",
		},
	)

	// Worker metrics
	ProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logward_processed_total",
			Help: "Total events enriched and persisted by the consumer worker",
		},
	)
	ProcessingFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logward_processing_failures_total",
			Help: "Total worker failures by reason",
		},
		[]string{"reason"},
	)
	BatchSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logward_batch_seconds",
			Help:    "Wall time spent processing one batch",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Alert metrics
	AlertsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logward_alerts_fired_total",
			Help: "Total alerts fired by rule",
		},
		[]string{"rule"},
	)
	AlertsSuppressed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logward_alerts_suppressed_total",
			Help: "Total alerts suppressed by the cooldown window, by rule",
		},
		[]string{"rule"},
	)

	// Delivery metrics
	NotifyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logward_notify_failures_total",
			Help: "Total failed alert notifications by channel",
		},
		[]string{"channel"},
	)
	AnnotationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logward_annotations_total",
			Help: "Total successful AI annotations",
		},
	)
	AnnotationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logward_annotation_failures_total",
			Help: "Total failed AI annotations",
		},
	)
	BroadcastDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logward_broadcast_dropped_total",
			Help: "Total events dropped on slow broadcast subscribers",
		},
	)

	// Queue gauges, refreshed by the collector loop
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "logward_queue_depth",
			Help: "Records currently awaiting delivery",
		},
	)
	QueueEnqueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "logward_queue_enqueued_total",
			Help: "Total records accepted by the queue backend",
		},
	)
	QueueDelivered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "logward_queue_delivered_total",
			Help: "Total records handed to consumers",
		},
	)
	QueueAcked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "logward_queue_acked_total",
			Help: "Total records acknowledged by consumers",
		},
	)
	QueueDropped = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "logward_queue_dropped_total",
			Help: "Total records dropped by the queue backend",
		},
	)
	StreamPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "logward_stream_pending",
			Help: "Entries delivered but not yet acknowledged (stream backend)",
		},
	)
)
