package sending

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsPrefix = "csm_sending_queue_"

var (
	queueOffered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "offered_total",
		Help: "Number of records accepted by the queue",
	}, []string{"queue"})
	queueRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "rejected_total",
		Help: "Number of records the queue refused, grouped by reason",
	}, []string{"queue", "reason"})
	queueEvicted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "evicted_total",
		Help: "Number of old records dropped to make room for new ones",
	}, []string{"queue"})
	queuePolled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "polled_total",
		Help: "Number of records handed out by poll",
	}, []string{"queue"})
	queueCorrupt = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "corrupt_dropped_total",
		Help: "Number of unreadable records dropped by poll",
	}, []string{"queue"})
	queueCompactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "compactions_total",
		Help: "Number of times the queue file was compacted to stay within its byte limit",
	}, []string{"queue"})
	queueFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "memory_fallbacks_total",
		Help: "Number of times a queue file could not be opened and memory was used instead",
	}, []string{"queue"})
	queueEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: metricsPrefix + "entries",
		Help: "Number of records in the queue",
	}, []string{"queue"})
	queueBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: metricsPrefix + "file_bytes",
		Help: "Size of the queue file",
	}, []string{"queue"})

	batchesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "batches_sent_total",
		Help: "Number of batches delivered to the collector",
	}, []string{"queue"})
	batchesFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: metricsPrefix + "batches_failed_total",
		Help: "Number of batches that failed to send and were put back",
	}, []string{"queue"})
)

const (
	reasonEncode   = "encode"
	reasonCapacity = "capacity"
	reasonStorage  = "storage"
)
