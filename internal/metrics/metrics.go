// Package metrics holds the process-wide Prometheus instruments for the
// ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LogsIngested counts stored request-log rows by table kind and
	// outcome (created, updated, suppressed, skipped).
	LogsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spodcat_request_logs_total",
			Help: "Request log rows processed, by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)

	// ClassificationMisses counts user agents no signature matched.
	ClassificationMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spodcat_classification_misses_total",
			Help: "User-agent strings that matched no signature family.",
		},
	)

	// GeoIPLookups counts external GeoIP provider calls by result
	// (hit, miss, error).
	GeoIPLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spodcat_geoip_lookups_total",
			Help: "External GeoIP provider calls, by result.",
		},
		[]string{"result"},
	)

	// ReplayErrors counts per-row failures collected during audio-log
	// replay batches.
	ReplayErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spodcat_replay_errors_total",
			Help: "Row-level errors collected during audio log replay.",
		},
	)
)
