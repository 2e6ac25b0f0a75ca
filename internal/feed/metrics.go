package feed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transportAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "morningpages_transport_attempts_total",
		Help: "Feed fetch attempts by transport strategy and outcome",
	}, []string{"strategy", "outcome"})

	feedLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "morningpages_feed_loads_total",
		Help: "Per-feed load results within a cycle",
	}, []string{"outcome"})

	loadCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "morningpages_load_cycle_duration_seconds",
		Help:    "Wall-clock duration of a full load cycle",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. ~25s
	})
)
