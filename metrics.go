package dingosdk

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives per-operation outcomes. Implement this to wire
// the SDK into a monitoring system; package metricsprom provides a
// Prometheus-backed implementation.
type MetricsCollector interface {
	// RecordUpsert is called after each Upsert task completes.
	RecordUpsert(duration time.Duration, err error)

	// RecordSearch is called after each Search task completes. Client
	// passes the number of partitions the search fanned out to as regions;
	// the number of regions behind those partitions is not reported.
	RecordSearch(regions int, duration time.Duration, err error)

	// RecordBatchQuery is called after each BatchQuery task completes.
	// requested is the id count asked for, returned is the surviving
	// document count after dropped ids are excluded.
	RecordBatchQuery(requested, returned int, duration time.Duration, err error)

	// RecordFallback records one region that triggered a brute-force
	// re-issue after reporting ErrDiskAnnNoData. Client and its search
	// tasks do not call it; they report fallbacks through LogFallback.
	RecordFallback(regionID int64)
}

// NoopMetricsCollector discards everything. It is the default when a Client
// isn't configured with WithMetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordUpsert(time.Duration, error)               {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error)          {}
func (NoopMetricsCollector) RecordBatchQuery(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordFallback(int64)                            {}

// BasicMetricsCollector is a simple in-memory MetricsCollector, useful for
// tests and local debugging without a real metrics backend.
type BasicMetricsCollector struct {
	UpsertCount     atomic.Int64
	UpsertErrors    atomic.Int64
	SearchCount     atomic.Int64
	SearchErrors    atomic.Int64
	BatchQueryCount atomic.Int64
	FallbackCount   atomic.Int64
}

func (b *BasicMetricsCollector) RecordUpsert(_ time.Duration, err error) {
	b.UpsertCount.Add(1)
	if err != nil {
		b.UpsertErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordSearch(_ int, _ time.Duration, err error) {
	b.SearchCount.Add(1)
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

func (b *BasicMetricsCollector) RecordBatchQuery(_, _ int, _ time.Duration, _ error) {
	b.BatchQueryCount.Add(1)
}

func (b *BasicMetricsCollector) RecordFallback(int64) {
	b.FallbackCount.Add(1)
}
