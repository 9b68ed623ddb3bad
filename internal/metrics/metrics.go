// Package metrics exposes Loadline's Prometheus collectors. Emission points
// sit at well-defined boundaries: inbound email processed, capability
// entry/exit, negotiation outcome.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EmailsProcessed counts orchestrator runs by final disposition
	// ("replied", "holding", "closed", "discarded", "failed").
	EmailsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loadline",
		Name:      "emails_processed_total",
		Help:      "Inbound emails processed, by disposition.",
	}, []string{"disposition"})

	// CapabilityCalls counts capability invocations by name and outcome
	// ("ok", "unavailable", "rejected").
	CapabilityCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loadline",
		Name:      "capability_calls_total",
		Help:      "Capability invocations, by capability and outcome.",
	}, []string{"capability", "outcome"})

	// CapabilityDuration observes capability latency in seconds.
	CapabilityDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "loadline",
		Name:      "capability_duration_seconds",
		Help:      "Capability invocation latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"capability"})

	// NegotiationOutcomes counts terminal dispositions by status and reason.
	NegotiationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loadline",
		Name:      "negotiation_outcomes_total",
		Help:      "Negotiations reaching a terminal status, by status and reason.",
	}, []string{"status", "reason"})

	// NegotiationRounds observes how many counter-offer rounds a
	// negotiation took before closing.
	NegotiationRounds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "loadline",
		Name:      "negotiation_rounds",
		Help:      "Counter-offer rounds per closed negotiation.",
		Buckets:   []float64{0, 1, 2, 3, 4, 5},
	})
)
