package journal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "revtree_journal_dropped_total",
		Help: "Journal records dropped because the write queue was full",
	})

	recordsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "revtree_journal_records_written_total",
		Help: "Journal records written to SQLite",
	})
)
