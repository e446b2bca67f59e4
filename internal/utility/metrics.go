package utility

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LearningRunsTotal counts learning cycles by result.
	// Labels: result (success, error)
	LearningRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recalld",
			Subsystem: "utility",
			Name:      "learning_runs_total",
			Help:      "Total number of learning cycles executed",
		},
		[]string{"result"},
	)

	// LearningRunDuration tracks how long a full learning cycle takes.
	LearningRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "recalld",
			Subsystem: "utility",
			Name:      "learning_run_duration_seconds",
			Help:      "Duration of full learning cycles in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// EpisodesTouched counts per-pass episode mutations.
	// Labels: pass (decay, propagation, credit)
	EpisodesTouched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "recalld",
			Subsystem: "utility",
			Name:      "episodes_touched_total",
			Help:      "Total number of episode records mutated per learning pass",
		},
		[]string{"pass"},
	)

	// WriteConflicts counts version conflicts hit during learning passes.
	WriteConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "recalld",
			Subsystem: "utility",
			Name:      "write_conflicts_total",
			Help:      "Total number of stale writes rejected by the store",
		},
	)

	// EpisodesPruned counts deleted episodes.
	EpisodesPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "recalld",
			Subsystem: "utility",
			Name:      "episodes_pruned_total",
			Help:      "Total number of episodes deleted by pruning",
		},
	)
)
