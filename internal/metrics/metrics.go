// Package metrics provides Prometheus metrics for the profiles service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Transition labels for RelationshipTransitions.
const (
	TransitionSent       = "sent"
	TransitionAccepted   = "accepted"
	TransitionNoopAccept = "noop_accept"
	TransitionRejected   = "rejected"
	TransitionRemoved    = "removed"
)

var (
	// RelationshipTransitions counts relationship state changes by transition
	RelationshipTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "profiles",
			Subsystem: "ledger",
			Name:      "transitions_total",
			Help:      "Total number of relationship transitions",
		},
		[]string{"transition"},
	)

	// ProfileSearches counts searches by outcome (hit, empty)
	ProfileSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "profiles",
			Subsystem: "directory",
			Name:      "searches_total",
			Help:      "Total number of profile searches by outcome",
		},
		[]string{"outcome"},
	)

	// EventSubscribers tracks open notification streams
	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "profiles",
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Number of open relationship event streams",
		},
	)
)

// RecordTransition increments the transition counter.
func RecordTransition(transition string) {
	RelationshipTransitions.WithLabelValues(transition).Inc()
}

// RecordSearch increments the search counter for an empty or non-empty result.
func RecordSearch(empty bool) {
	outcome := "hit"
	if empty {
		outcome = "empty"
	}
	ProfileSearches.WithLabelValues(outcome).Inc()
}
