package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	unreadGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "workloop_notify",
			Name:      "unread_count",
			Help:      "Current derived unread notification count.",
		},
	)

	refreshesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "workloop_notify",
			Name:      "refreshes_total",
			Help:      "Bulk pull reconciliations applied to the store.",
		},
	)

	eventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "workloop_notify",
			Name:      "events_received_total",
			Help:      "Push change events applied to the store, by kind.",
		},
		[]string{"kind"},
	)

	reconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "workloop_notify",
			Name:      "reconnects_total",
			Help:      "Successful re-establishments of a dropped subscription.",
		},
	)

	heartbeatFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "workloop_notify",
			Name:      "heartbeat_failures_total",
			Help:      "Liveness probes that failed and triggered reconnection.",
		},
	)
)
