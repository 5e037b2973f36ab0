// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StepTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_step_transitions_total",
			Help: "Total number of route transitions by destination route",
		},
		[]string{"route"},
	)

	LeadsCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_leads_calls_total",
			Help: "Total number of leads backend calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	RetriesExhausted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_retries_exhausted_total",
			Help: "Number of times a retry counter forced manual verification",
		},
		[]string{"counter"},
	)

	BlockedEntries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "intake_blocked_entries_total",
			Help: "Route entries redirected to the hold screen by the cooldown guard",
		},
	)

	ApplicationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_application_outcomes_total",
			Help: "Terminal application outcomes",
		},
		[]string{"outcome"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intake_active_sessions",
			Help: "Number of orchestrator sessions held in memory",
		},
	)
)
