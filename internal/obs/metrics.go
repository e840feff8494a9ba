// Package obs holds the process-wide Prometheus collectors for the
// coordination core.
package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AgentsByStatus tracks registry population per agent type and status.
	AgentsByStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "vantage",
		Name:      "registry_agents",
		Help:      "Registered agents by type and status.",
	}, []string{"type", "status"})

	// ProposalsTotal counts proposals by priority domain and resolution outcome.
	ProposalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vantage",
		Name:      "proposals_total",
		Help:      "Change proposals by domain and resolution outcome.",
	}, []string{"domain", "status"})

	// RolloutsTotal counts finished rollouts by terminal state.
	RolloutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vantage",
		Name:      "rollouts_total",
		Help:      "Finished rollouts by terminal state.",
	}, []string{"outcome"})

	// PhaseDuration observes wall time per rollout phase, labeled by verdict.
	PhaseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vantage",
		Name:      "rollout_phase_duration_seconds",
		Help:      "Duration of rollout phases.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	}, []string{"verdict"})

	// HTTPRequestsTotal counts API requests by method, route pattern and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vantage",
		Name:      "http_requests_total",
		Help:      "API requests by method, route and status code.",
	}, []string{"method", "route", "status"})
)
