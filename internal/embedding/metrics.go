package embedding

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	modelLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tana",
		Subsystem: "embedding",
		Name:      "model_loads_total",
		Help:      "Model load attempts by backend and result.",
	}, []string{"backend", "result"})

	modelLoadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tana",
		Subsystem: "embedding",
		Name:      "model_load_duration_seconds",
		Help:      "Time spent loading embedding models.",
		Buckets:   []float64{0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"backend"})

	embedDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tana",
		Subsystem: "embedding",
		Name:      "batch_duration_seconds",
		Help:      "Duration of embedding batches.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"backend"})

	embeddedTexts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tana",
		Subsystem: "embedding",
		Name:      "texts_total",
		Help:      "Texts embedded by backend.",
	}, []string{"backend"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tana",
		Subsystem: "embedding",
		Name:      "cache_lookups_total",
		Help:      "Embedding cache lookups by result (hit, miss).",
	}, []string{"result"})
)
