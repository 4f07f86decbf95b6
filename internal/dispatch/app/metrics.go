package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchRunsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sms_dispatch",
			Name:      "runs_total",
			Help:      "Total dispatch job runs.",
		},
		[]string{"status"}, // "success", "error", "disabled"
	)

	dispatchedMessagesCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sms_dispatch",
			Name:      "messages_total",
			Help:      "Total messages processed by the dispatch job.",
		},
		[]string{"outcome"}, // "submitted", "failed"
	)

	dispatchRunDurationHist = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sms_dispatch",
			Name:      "run_duration_seconds",
			Help:      "Duration of dispatch job runs.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	reconcileRunsCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sms_reconcile",
			Name:      "runs_total",
			Help:      "Total reconciliation job runs.",
		},
		[]string{"status"}, // "success", "error", "disabled"
	)

	reconciledStatusCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sms_reconcile",
			Name:      "status_updates_total",
			Help:      "Delivery status updates applied by reconciliation.",
		},
		[]string{"new_status"},
	)
)
