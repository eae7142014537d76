// Package metricsprom is a Prometheus-backed implementation of
// dingosdk.MetricsCollector, grounded on doda-vex's promauto usage.
package metricsprom

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dingo_sdk"

// Collector implements dingosdk.MetricsCollector against a Prometheus
// registry. Assign it via dingosdk.WithMetricsCollector.
type Collector struct {
	upsertTotal   *prometheus.CounterVec
	upsertLatency prometheus.Histogram

	searchTotal    *prometheus.CounterVec
	searchLatency  prometheus.Histogram
	searchRegions  prometheus.Histogram

	batchQueryTotal    *prometheus.CounterVec
	batchQueryLatency  prometheus.Histogram
	batchQueryDropped  prometheus.Counter

	fallbackTotal *prometheus.CounterVec
}

// New registers dingo-sdk's metrics on reg (or the default registerer if
// reg is nil) and returns a Collector ready to use.
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		upsertTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "upsert_total", Help: "Total Upsert tasks completed.",
		}, []string{"status"}),
		upsertLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "upsert_latency_seconds", Help: "Upsert task latency.",
			Buckets: prometheus.DefBuckets,
		}),

		searchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "search_total", Help: "Total Search tasks completed.",
		}, []string{"status"}),
		searchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "search_latency_seconds", Help: "Search task latency.",
			Buckets: prometheus.DefBuckets,
		}),
		searchRegions: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "search_regions_contacted", Help: "Partitions fanned out to per Search task.",
			Buckets: prometheus.LinearBuckets(0, 8, 10),
		}),

		batchQueryTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "batch_query_total", Help: "Total BatchQuery tasks completed.",
		}, []string{"status"}),
		batchQueryLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "batch_query_latency_seconds", Help: "BatchQuery task latency.",
			Buckets: prometheus.DefBuckets,
		}),
		batchQueryDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "batch_query_documents_dropped_total",
			Help: "Documents requested but absent from the merged BatchQuery result.",
		}),

		fallbackTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "search_fallback_total",
			Help: "Regions that reported no DiskANN data and were re-issued via brute force.",
		}, []string{"region_id"}),
	}
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordUpsert implements dingosdk.MetricsCollector.
func (c *Collector) RecordUpsert(duration time.Duration, err error) {
	c.upsertTotal.WithLabelValues(statusLabel(err)).Inc()
	c.upsertLatency.Observe(duration.Seconds())
}

// RecordSearch implements dingosdk.MetricsCollector.
func (c *Collector) RecordSearch(regions int, duration time.Duration, err error) {
	c.searchTotal.WithLabelValues(statusLabel(err)).Inc()
	c.searchLatency.Observe(duration.Seconds())
	c.searchRegions.Observe(float64(regions))
}

// RecordBatchQuery implements dingosdk.MetricsCollector.
func (c *Collector) RecordBatchQuery(requested, returned int, duration time.Duration, err error) {
	c.batchQueryTotal.WithLabelValues(statusLabel(err)).Inc()
	c.batchQueryLatency.Observe(duration.Seconds())
	if requested > returned {
		c.batchQueryDropped.Add(float64(requested - returned))
	}
}

// RecordFallback implements dingosdk.MetricsCollector.
func (c *Collector) RecordFallback(regionID int64) {
	c.fallbackTotal.WithLabelValues(strconv.FormatInt(regionID, 10)).Inc()
}
