// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ItemsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_items_processed_total",
			Help: "Total number of batch items processed by terminal status",
		},
		[]string{"status"},
	)

	ItemsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_items_failed_total",
			Help: "Total number of batch items failed by stage and error code",
		},
		[]string{"stage", "error_code"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "intake_stage_duration_seconds",
			Help: "Duration of pipeline stage processing in seconds",
		},
		[]string{"stage"},
	)

	ItemsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "intake_items_in_flight",
			Help: "Number of items currently being processed",
		},
	)

	CacheRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_reference_refreshes_total",
			Help: "Total number of reference snapshot refresh attempts by outcome",
		},
		[]string{"outcome"},
	)

	ProviderRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intake_provider_retries_total",
			Help: "Total number of single-retry attempts per provider",
		},
		[]string{"provider"},
	)
)
