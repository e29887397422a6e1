package pkgkafka

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	producedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_events_produced_total",
			Help: "Total number of events produced to the bus",
		},
		[]string{"topic"},
	)

	consumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_events_consumed_total",
			Help: "Total number of events consumed from the bus",
		},
		[]string{"topic"},
	)

	deadLetteredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_events_dead_lettered_total",
			Help: "Total number of events routed to a dead-letter topic",
		},
		[]string{"topic"},
	)
)

func init() {
	prometheus.MustRegister(producedTotal)
	prometheus.MustRegister(consumedTotal)
	prometheus.MustRegister(deadLetteredTotal)
}
