package undo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	actionsPerformedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "midivcs_undo_actions_performed_total",
		Help: "Total number of actions performed through undo stacks",
	})

	actionsCoalescedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "midivcs_undo_actions_coalesced_total",
		Help: "Number of performed actions merged into the previous action",
	})

	transactionsEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "midivcs_undo_transactions_evicted_total",
		Help: "Number of oldest transactions dropped to keep the history under its size cap",
	})

	historyResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "midivcs_undo_history_resets_total",
		Help: "Number of undo histories discarded after a failed undo or redo",
	})

	storedUnitsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "midivcs_undo_stored_units",
		Help: "Size in units of the most recently modified undo history",
	})
)
