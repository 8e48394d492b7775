// Package observability exposes the service's Prometheus metrics:
// session population, in-flight long-process tasks, worker dispatch
// latency and callback throughput. Collectors register on the default
// registry and are served at /metrics.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions tracks the number of live (user, company) sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pinnokio",
		Name:      "active_sessions",
		Help:      "Number of live sessions in the registry.",
	})

	// InFlightLPTs tracks dispatched long-process tasks awaiting callback.
	InFlightLPTs = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pinnokio",
		Name:      "inflight_lpt_tasks",
		Help:      "Long-process tasks dispatched and not yet resolved by a callback.",
	})

	// DispatchDuration observes worker POST latency per task type.
	DispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pinnokio",
		Name:      "lpt_dispatch_duration_seconds",
		Help:      "Latency of worker dispatch POSTs.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"task_type", "outcome"})

	// CallbacksTotal counts worker callbacks by resolution.
	CallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pinnokio",
		Name:      "lpt_callbacks_total",
		Help:      "Worker callbacks processed, by status.",
	}, []string{"status"})

	// AgentTurnsTotal counts inner agent-loop turns executed.
	AgentTurnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "pinnokio",
		Name:      "agent_turns_total",
		Help:      "Inner agent-loop turns executed.",
	})

	// ScheduledFiresTotal counts recurring jobs fired by the scheduler.
	ScheduledFiresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pinnokio",
		Name:      "scheduler_fires_total",
		Help:      "Recurring jobs fired, by job type.",
	}, []string{"job_type"})
)
