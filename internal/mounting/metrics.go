package mounting

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transactionsPulled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "revtree_transactions_pulled_total",
		Help: "Transactions handed to a mounting consumer",
	})

	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "revtree_mutations_total",
		Help: "Mutations emitted by the differ, by type",
	}, []string{"type"})

	diffDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "revtree_diff_duration_seconds",
		Help:    "Time spent diffing base and latest revisions",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14), // 10us to ~160ms
	})

	revisionsCoalesced = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "revtree_revisions_coalesced",
		Help:    "Revisions folded into a single transaction",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
	})
)

func observeTransaction(tx Transaction) {
	transactionsPulled.Inc()
	diffDuration.Observe(tx.Telemetry.DiffDuration().Seconds())
	revisionsCoalesced.Observe(float64(tx.Telemetry.Coalesced))
	for t, n := range tx.Counts() {
		mutationsTotal.WithLabelValues(t.String()).Add(float64(n))
	}
}
