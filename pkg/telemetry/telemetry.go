// Package telemetry registers the engine's prometheus collectors. The
// debug HTTP server exposes them on /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsTotal counts processed events by kind.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatsync",
		Name:      "events_total",
		Help:      "Events processed, by event kind.",
	}, []string{"kind"})

	// BatchesTotal counts dispatched batches by origin.
	BatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chatsync",
		Name:      "batches_total",
		Help:      "Batches dispatched, by origin (live/resync).",
	}, []string{"origin"})

	// BatchFailures counts batches whose processing failed or panicked.
	BatchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatsync",
		Name:      "batch_failures_total",
		Help:      "Batches that failed processing.",
	})

	// QueueDepth tracks the live-event buffer occupancy.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "chatsync",
		Name:      "queue_depth",
		Help:      "Live events currently buffered before dispatch.",
	})

	// QueueDropped counts live events rejected by a full buffer.
	QueueDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatsync",
		Name:      "queue_dropped_total",
		Help:      "Live events dropped due to a full buffer.",
	})

	// StorageFlushSeconds observes the duration of the storage update
	// step per batch.
	StorageFlushSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "chatsync",
		Name:      "storage_flush_seconds",
		Help:      "Duration of the offline storage update step.",
		Buckets:   prometheus.DefBuckets,
	})

	// RetentionPruned counts messages removed by cache retention runs.
	RetentionPruned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "chatsync",
		Name:      "retention_pruned_messages_total",
		Help:      "Messages pruned by offline-cache retention runs.",
	})
)
