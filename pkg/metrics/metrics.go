// Package metrics provides Prometheus metrics for the sub-document daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "subdocd"

var (
	// CommandsTotal tracks completed commands by opcode and outcome status.
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Total sub-document commands processed",
		},
		[]string{"opcode", "status"},
	)

	// CommandLatency records the latency passed to ObserveCommand;
	// internal/server's stats adapter passes 0 for every command, so it
	// does not measure end-to-end latency.
	CommandLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_latency_seconds",
			Help:      "Sub-document command latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"opcode"},
	)

	// CASRetries tracks the number of auto-retry attempts spent per bucket.
	CASRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cas_retries_total",
			Help:      "Total CAS auto-retry attempts",
		},
		[]string{"bucket"},
	)

	// TmpFailTotal tracks commands that exhausted the CAS retry bound.
	TmpFailTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tmpfail_total",
			Help:      "Total commands that exhausted the CAS auto-retry bound",
		},
		[]string{"bucket"},
	)

	// ActiveConnections tracks the number of live client connections.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of currently connected clients",
		},
	)

	// ActiveBuckets tracks the number of registered buckets.
	ActiveBuckets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_buckets",
			Help:      "Number of currently registered buckets",
		},
	)

	// BucketDeleteLatency tracks how long a bucket delete waits for
	// in-flight commands to drain (spec.md §4.7, S6).
	BucketDeleteLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "bucket_delete_drain_seconds",
			Help:      "Time spent waiting for in-flight commands to drain during bucket delete",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// ObserveCommand records one completed command's outcome and latency.
func ObserveCommand(opcode string, status string, latencySeconds float64) {
	CommandsTotal.WithLabelValues(opcode, status).Inc()
	CommandLatency.WithLabelValues(opcode).Observe(latencySeconds)
}

// ObserveRetry records one CAS auto-retry attempt for a bucket.
func ObserveRetry(bucket string) {
	CASRetries.WithLabelValues(bucket).Inc()
}

// ObserveTmpFail records one command that exhausted the retry bound.
func ObserveTmpFail(bucket string) {
	TmpFailTotal.WithLabelValues(bucket).Inc()
}
