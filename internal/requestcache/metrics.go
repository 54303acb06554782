package requestcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "workloop_notify",
			Subsystem: "requestcache",
			Name:      "hits_total",
			Help:      "Fetches served from a completed cached result.",
		},
	)

	inflightHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "workloop_notify",
			Subsystem: "requestcache",
			Name:      "inflight_hits_total",
			Help:      "Fetches coalesced onto an outstanding request.",
		},
	)

	missesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "workloop_notify",
			Subsystem: "requestcache",
			Name:      "misses_total",
			Help:      "Fetches that invoked the producer.",
		},
	)
)
