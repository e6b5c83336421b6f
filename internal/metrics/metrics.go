// Package metrics defines the Prometheus instrumentation shared across the
// application. All collectors are registered on the default registry via
// promauto and exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HubClients tracks the number of currently connected websocket clients.
	HubClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_clients",
		Help: "Number of currently connected websocket clients",
	})

	// HubEvictionsTotal counts clients dropped because their send buffer was full.
	HubEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hub_evictions_total",
		Help: "Total websocket clients evicted for slow consumption",
	})

	// HubBroadcastsTotal counts broadcast events by event type.
	HubBroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hub_broadcasts_total",
			Help: "Total broadcast events fanned out, by event type",
		},
		[]string{"type"},
	)

	// WebSocketConnectionsTotal counts connection attempts by outcome.
	WebSocketConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_total",
			Help: "Total websocket connection attempts, by outcome",
		},
		[]string{"outcome"},
	)

	// InferenceDuration observes sentiment scoring latency in seconds.
	InferenceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "inference_duration_seconds",
		Help:    "Sentiment inference latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	// InferenceFallbacksTotal counts predictions served by the fallback stub.
	InferenceFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inference_fallbacks_total",
		Help: "Total predictions produced by the fallback stub scorer",
	})

	// PipelineSideEffectFailures counts best-effort pipeline steps that failed,
	// by stage. The comment itself still commits when these fire.
	PipelineSideEffectFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_side_effect_failures_total",
			Help: "Total non-terminal pipeline step failures, by stage",
		},
		[]string{"stage"},
	)

	// LedgerAppendsTotal counts rows appended to the misprediction ledger.
	LedgerAppendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_appends_total",
		Help: "Total misprediction rows appended to the correction ledger",
	})

	// LedgerCompactionsTotal counts ledger compaction runs.
	LedgerCompactionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_compactions_total",
		Help: "Total correction ledger compaction runs",
	})

	// MetricsRefreshDuration observes aggregation refresh latency in seconds.
	MetricsRefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "metrics_refresh_duration_seconds",
		Help:    "Model metrics aggregation latency in seconds",
		Buckets: prometheus.DefBuckets,
	})
)
