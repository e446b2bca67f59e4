package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the retrieval path.
var (
	// RetrievalsTotal counts retrieval requests by search mode.
	RetrievalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recalld",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total retrieval requests by search mode (vector or text)",
		},
		[]string{"mode"},
	)

	// RetrievalResults observes result-set sizes.
	RetrievalResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "recalld",
			Subsystem: "retrieval",
			Name:      "results",
			Help:      "Number of episodes returned per retrieval",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
	)

	// FeedbackTotal counts feedback applications by verdict.
	FeedbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recalld",
			Subsystem: "retrieval",
			Name:      "feedback_total",
			Help:      "Total feedback applications by verdict",
		},
		[]string{"verdict"},
	)
)
