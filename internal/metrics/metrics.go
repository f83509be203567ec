package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SitesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trainprep_sites_skipped_total",
			Help: "Sites excluded during cleaning, by reason",
		},
		[]string{"reason"},
	)

	RowsRetained = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trainprep_rows_retained_total",
			Help: "Grid rows retained by the gap-validity filter",
		},
	)

	RowsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trainprep_rows_dropped_total",
			Help: "Grid rows dropped by the gap-validity filter",
		},
	)

	FilesImputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trainprep_files_imputed_total",
			Help: "Station files processed by the imputation engine, by outcome",
		},
		[]string{"status"},
	)

	ImputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trainprep_impute_duration_seconds",
			Help:    "Wall-clock time to impute one station file",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)

	MetFilesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trainprep_met_files_fetched_total",
			Help: "Meteorology archive downloads, by status",
		},
		[]string{"status"},
	)
)
