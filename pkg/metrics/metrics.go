// Package metrics exposes the ceremony engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the collectors updated by the ceremony manager. All
// collectors are registered on construction, so two managers must not share
// one registerer.
type Metrics struct {
	// CeremoniesStarted counts ceremonies by protocol.
	CeremoniesStarted *prometheus.CounterVec
	// CeremonyOutcomes counts finished ceremonies by protocol and outcome.
	CeremonyOutcomes *prometheus.CounterVec
	// CeremonyDuration observes the wall time of finished ceremonies.
	CeremonyDuration *prometheus.HistogramVec
	// PendingCeremonies tracks ceremonies currently running.
	PendingCeremonies prometheus.Gauge
	// DelayedMessages tracks messages buffered for ceremonies that have not
	// started yet.
	DelayedMessages prometheus.Gauge
	// DroppedMessages counts messages discarded before delivery, by reason.
	DroppedMessages *prometheus.CounterVec
}

// New registers all ceremony collectors with reg. Pass
// prometheus.NewRegistry() in tests to keep them isolated.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CeremoniesStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "multisig_ceremonies_started_total",
			Help: "Number of ceremonies started, by protocol.",
		}, []string{"protocol"}),
		CeremonyOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "multisig_ceremony_outcomes_total",
			Help: "Number of finished ceremonies, by protocol and outcome.",
		}, []string{"protocol", "outcome"}),
		CeremonyDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "multisig_ceremony_duration_seconds",
			Help:    "Wall time of finished ceremonies.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"protocol"}),
		PendingCeremonies: factory.NewGauge(prometheus.GaugeOpts{
			Name: "multisig_pending_ceremonies",
			Help: "Ceremonies currently running.",
		}),
		DelayedMessages: factory.NewGauge(prometheus.GaugeOpts{
			Name: "multisig_delayed_messages",
			Help: "Messages buffered for ceremonies that have not started.",
		}),
		DroppedMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "multisig_dropped_messages_total",
			Help: "Messages discarded before delivery, by reason.",
		}, []string{"reason"}),
	}
}
