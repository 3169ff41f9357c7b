package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	walletsAnalyzedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analyzer_wallets_analyzed_total",
			Help: "Total number of wallets analyzed by outcome",
		},
		[]string{"status"},
	)

	batchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analyzer_batch_duration_seconds",
			Help:    "Time taken to analyze a batch job",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	reportsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analyzer_reports_created_total",
			Help: "Total number of analysis reports assembled",
		},
	)
)
