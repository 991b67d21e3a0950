// Package metrics exposes replication counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Sync struct {
	Received    *prometheus.CounterVec
	Published   *prometheus.CounterVec
	Dropped     *prometheus.CounterVec
	Conflicts   *prometheus.CounterVec
	OutboxDepth prometheus.Gauge
}

// New registers the sync metrics on reg. Tests pass a fresh registry.
func New(reg prometheus.Registerer) *Sync {
	factory := promauto.With(reg)
	return &Sync{
		Received: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "noteenvelope",
			Subsystem: "sync",
			Name:      "events_received_total",
			Help:      "Inbound sync events by collection and outcome.",
		}, []string{"collection", "outcome"}),
		Published: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "noteenvelope",
			Subsystem: "sync",
			Name:      "events_published_total",
			Help:      "Outbound sync events by publish outcome.",
		}, []string{"outcome"}),
		Dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "noteenvelope",
			Subsystem: "sync",
			Name:      "events_dropped_total",
			Help:      "Inbound events dropped before merge, by reason.",
		}, []string{"reason"}),
		Conflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "noteenvelope",
			Subsystem: "sync",
			Name:      "conflicts_total",
			Help:      "True conflicts resolved, by winning side.",
		}, []string{"resolution"}),
		OutboxDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "noteenvelope",
			Subsystem: "sync",
			Name:      "outbox_depth",
			Help:      "Events waiting to be published.",
		}),
	}
}
