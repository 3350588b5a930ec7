package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	answersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "beezbuddy",
			Name:      "answers_total",
			Help:      "Total answer pipeline invocations",
		},
		[]string{"strategy", "status"},
	)

	vectorSearchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "beezbuddy",
			Name:      "vector_search_duration_seconds",
			Help:      "Duration of scoped vector searches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	vectorSearchResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "beezbuddy",
			Name:      "vector_search_results_count",
			Help:      "Number of chunks returned per scoped vector search",
			Buckets:   []float64{0, 1, 2, 3, 4, 6, 8},
		},
	)

	domainRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "beezbuddy",
			Name:      "domain_rejections_total",
			Help:      "Public chat requests rejected by the domain allow-list",
		},
	)
)
