package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_requests_total",
			Help: "Total number of requests sent to the ledger API",
		},
		[]string{"operation", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_request_duration_seconds",
			Help:    "Ledger API request duration in seconds",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_retries_total",
			Help: "Total number of retried ledger API requests",
		},
		[]string{"operation"},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_cache_lookups_total",
			Help: "Request cache lookups by result",
		},
		[]string{"operation", "result"},
	)

	fetchPagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_fetch_pages_total",
			Help: "Transaction pages fetched, labelled by why the fetch stopped",
		},
		[]string{"stop_reason"},
	)
)
