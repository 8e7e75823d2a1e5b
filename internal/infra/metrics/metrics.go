// Package metrics provides Prometheus metrics for JudgePay —
// counters, gauges, and histograms for task lifecycle and escrow custody.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Tasks ──────────────────────────────────────────────────────────────────

// TasksCreated tracks funded task creations.
var TasksCreated = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "judgepay",
	Name:      "tasks_created_total",
	Help:      "Total tasks created with escrow funded.",
})

// TasksSettled tracks settled tasks by terminal outcome.
var TasksSettled = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "judgepay",
	Name:      "tasks_settled_total",
	Help:      "Total settled tasks by outcome (completed, refunded, disputed).",
}, []string{"outcome"})

// TasksOpen tracks tasks currently awaiting claim or submission.
var TasksOpen = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "judgepay",
	Name:      "tasks_open",
	Help:      "Number of non-terminal tasks.",
})

// ─── Evaluation ─────────────────────────────────────────────────────────────

// VotesCast tracks evaluation votes by decision.
var VotesCast = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "judgepay",
	Name:      "votes_cast_total",
	Help:      "Total evaluation votes by decision (approve, reject).",
}, []string{"decision"})

// ─── Escrow ─────────────────────────────────────────────────────────────────

// EscrowHeld tracks token units currently held in escrow custody.
var EscrowHeld = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "judgepay",
	Name:      "escrow_held_units",
	Help:      "Token units currently held in escrow custody.",
})

// ─── API ────────────────────────────────────────────────────────────────────

// RequestLatency tracks HTTP request duration per route.
var RequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "judgepay",
	Name:      "request_latency_seconds",
	Help:      "HTTP request duration in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"route"})
