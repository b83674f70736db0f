package tree

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "revtree_commits_total",
		Help: "Commit attempts by outcome",
	}, []string{"outcome"})

	commitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "revtree_commit_duration_seconds",
		Help:    "Commit latency including lock wait",
		Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16), // 10us to ~650ms
	})
)

func observeCommit(out Outcome, d time.Duration) {
	commitsTotal.WithLabelValues(out.label()).Inc()
	commitDuration.Observe(d.Seconds())
}
