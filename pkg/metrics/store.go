// Package metrics exposes Prometheus instruments for RollingStore
// operations: rollovers, the chosen concat strategy, truncated bytes
// and header-parse latency. This package emits raw instruments only;
// aggregation and alerting live in whatever scrapes /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// RolloversTotal counts sub-segment rollovers across all segments.
	RolloversTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rollstore_rollovers_total",
		Help: "Total number of sub-segment rollovers performed",
	})

	// ConcatStrategyTotal counts which concat strategy was chosen,
	// labeled "native" or "header_merge".
	ConcatStrategyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollstore_concat_strategy_total",
			Help: "Total concat operations by chosen strategy",
		},
		[]string{"strategy"},
	)

	// TruncatedBytesTotal sums the logical bytes reclaimed by Truncate.
	TruncatedBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rollstore_truncated_bytes_total",
		Help: "Total bytes reclaimed by truncation across all segments",
	})

	// HeaderParseLatency observes the time to parse a header blob into
	// a RollingHandle during open_read/open_write.
	HeaderParseLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rollstore_header_parse_seconds",
		Help:    "Latency of parsing a segment header into a handle",
		Buckets: prometheus.DefBuckets,
	})

	// HandleRefreshTotal counts how often a read-only handle had to
	// refresh its stale in-memory view against the durable header.
	HandleRefreshTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rollstore_handle_refresh_total",
		Help: "Total number of read-only handle refreshes",
	})
)

func init() {
	prometheus.MustRegister(RolloversTotal, ConcatStrategyTotal, TruncatedBytesTotal, HeaderParseLatency, HandleRefreshTotal)
}

// RecordRollover increments the rollover counter; call once per
// successful RollingStore.rollover.
func RecordRollover() {
	RolloversTotal.Inc()
}

// RecordConcat labels a completed concat by the strategy used.
func RecordConcat(strategy string) {
	ConcatStrategyTotal.WithLabelValues(strategy).Inc()
}

// RecordTruncate adds reclaimedBytes to the truncated-bytes counter.
func RecordTruncate(reclaimedBytes int64) {
	if reclaimedBytes > 0 {
		TruncatedBytesTotal.Add(float64(reclaimedBytes))
	}
}

// RecordHandleRefresh increments the handle-refresh counter.
func RecordHandleRefresh() {
	HandleRefreshTotal.Inc()
}
