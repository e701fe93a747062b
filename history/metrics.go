package history

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	executionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "undo_ot_history_executions_total",
		Help: "Total undo and redo executions by command and result",
	}, []string{"command", "result"})

	reversedDeltasTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "undo_ot_history_reversed_deltas_total",
		Help: "Total deltas applied to reverse a batch, after transformation",
	}, []string{"command"})

	droppedRangesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "undo_ot_history_dropped_ranges_total",
		Help: "Total recorded selection ranges that ended up entirely in the graveyard",
	})

	selectionRestoresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "undo_ot_history_selection_restores_total",
		Help: "Total selections restored after an execution",
	}, []string{"command"})
)
