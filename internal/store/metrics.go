package store

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	persistenceRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bannerscan_persistence_retries_total",
		Help: "Number of writes that failed once and were retried",
	})

	persistenceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bannerscan_persistence_failures_total",
		Help: "Number of writes that failed after the retry",
	})

	summaryRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bannerscan_summary_rebuilds_total",
		Help: "Number of summary rebuilds",
	})
)
