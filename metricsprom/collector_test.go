package metricsprom

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordUpsertIncrementsStatusLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RecordUpsert(10*time.Millisecond, nil)
	c.RecordUpsert(10*time.Millisecond, errors.New("boom"))

	assert.Equal(t, float64(1), testutil.ToFloat64(c.upsertTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.upsertTotal.WithLabelValues("error")))
}

func TestCollector_RecordSearchObservesRegionCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RecordSearch(3, 5*time.Millisecond, nil)

	assert.Equal(t, float64(1), testutil.ToFloat64(c.searchTotal.WithLabelValues("ok")))
}

func TestCollector_RecordBatchQueryCountsDroppedDocuments(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RecordBatchQuery(10, 7, time.Millisecond, nil)

	assert.Equal(t, float64(3), testutil.ToFloat64(c.batchQueryDropped))
}

func TestCollector_RecordFallbackLabelsByRegion(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)

	c.RecordFallback(42)
	c.RecordFallback(42)
	c.RecordFallback(7)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.fallbackTotal.WithLabelValues("42")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.fallbackTotal.WithLabelValues("7")))
	require.NotNil(t, c.searchLatency)
}
