package vcs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "midivcs_vcs_commits_total",
		Help: "Total number of revisions committed",
	})

	checkoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "midivcs_vcs_checkouts_total",
		Help: "Total number of revisions checked out",
	})

	stashesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "midivcs_vcs_stashes_total",
		Help: "Total number of stashes recorded",
	})

	diffDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "midivcs_vcs_diff_duration_seconds",
		Help:    "Duration of computing the pending changes against the head",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})

	workerResultsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "midivcs_vcs_worker_results_dropped_total",
		Help: "Number of status results dropped because nobody was reading them",
	})
)
