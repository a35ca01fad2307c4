package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	documentsAdded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tana",
		Subsystem: "store",
		Name:      "documents_added_total",
		Help:      "Chunks appended to workspace indexes.",
	})

	searches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tana",
		Subsystem: "store",
		Name:      "searches_total",
		Help:      "Workspace searches by result (hit, empty, error).",
	}, []string{"result"})

	persistDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tana",
		Subsystem: "store",
		Name:      "persist_duration_seconds",
		Help:      "Time to commit a workspace's index and ledger.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
	})

	persistFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tana",
		Subsystem: "store",
		Name:      "persist_failures_total",
		Help:      "Commit failures by phase (prepare, finish).",
	}, []string{"phase"})

	loadedWorkspaces = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "tana",
		Subsystem: "store",
		Name:      "loaded_workspaces",
		Help:      "Workspaces currently resident in memory.",
	})

	evictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tana",
		Subsystem: "store",
		Name:      "evictions_total",
		Help:      "Workspaces evicted from memory.",
	})

	corruptLoads = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tana",
		Subsystem: "store",
		Name:      "corrupt_loads_total",
		Help:      "Workspace loads rejected as corrupt.",
	})

	degradedStats = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tana",
		Subsystem: "store",
		Name:      "degraded_stats_total",
		Help:      "Stats calls that found ledger and index sizes disagreeing.",
	})

	recoveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tana",
		Subsystem: "store",
		Name:      "commit_recoveries_total",
		Help:      "Interrupted commits found on load, by action (forward, back).",
	}, []string{"action"})
)
