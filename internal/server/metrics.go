package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	feedbacksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "csm_collector_feedbacks_received_total",
		Help: "CSM feedbacks stored by the collector.",
	})
	logMessagesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csm_collector_log_messages_received_total",
		Help: "Remote log messages stored by the collector.",
	}, []string{"level"})
	requestsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "csm_collector_requests_rejected_total",
		Help: "Requests refused before reaching the storage.",
	}, []string{"path", "reason"})
)
