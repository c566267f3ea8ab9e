package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

// newTestMeter returns a meter backed by a manual reader
func newTestMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	return reader, mp
}

// collect returns the named metric from reader
func collect(t *testing.T, reader *sdkmetric.ManualReader, name string) (metricdata.Metrics, bool) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func sumOf(t *testing.T, m metricdata.Metrics, match attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(match.Key); ok && v.Emit() == match.Value.Emit() {
			total += dp.Value
		}
	}
	return total
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	mp, err := NewMeterProvider(ctx, MetricsConfig{Enabled: false, ServiceName: "shopsync-test"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestInstruments(t *testing.T) {
	reader, mp := newTestMeter(t)
	b := NewInstruments(mp.Meter("test"))
	c := b.Counter("test_total", "test counter", "{things}")
	h := b.Histogram("test_seconds", "", "s", WaitBuckets)
	g := b.Gauge("test_gauge", "", "")
	require.NoError(t, b.Err())

	ctx := context.Background()

	t.Run("counter", func(t *testing.T) {
		c.Add(ctx, 5, AttrSyncType.String("inventory"))
		c.Inc(ctx, AttrSyncType.String("inventory"))
		c.Inc(ctx, AttrSyncType.String("orders"))

		m, ok := collect(t, reader, "test_total")
		require.True(t, ok)
		assert.Equal(t, int64(6), sumOf(t, m, AttrSyncType.String("inventory")))
		assert.Equal(t, int64(1), sumOf(t, m, AttrSyncType.String("orders")))
	})

	t.Run("histogram keeps custom buckets", func(t *testing.T) {
		h.RecordDuration(ctx, 3*time.Second)
		h.Record(ctx, 0.2)

		m, ok := collect(t, reader, "test_seconds")
		require.True(t, ok)
		hist, ok := m.Data.(metricdata.Histogram[float64])
		require.True(t, ok)
		require.Len(t, hist.DataPoints, 1)
		assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
		assert.Equal(t, WaitBuckets, hist.DataPoints[0].Bounds)
		assert.InDelta(t, 3.2, hist.DataPoints[0].Sum, 1e-9)
	})

	t.Run("gauge reports the last value", func(t *testing.T) {
		g.Record(ctx, 4)
		g.Record(ctx, 7)

		m, ok := collect(t, reader, "test_gauge")
		require.True(t, ok)
		gauge, ok := m.Data.(metricdata.Gauge[int64])
		require.True(t, ok)
		require.Len(t, gauge.DataPoints, 1)
		assert.Equal(t, int64(7), gauge.DataPoints[0].Value)
	})
}

func TestInstruments_CollectsErrors(t *testing.T) {
	_, mp := newTestMeter(t)
	b := NewInstruments(mp.Meter("test"))

	b.Counter("bad name with spaces", "", "")
	b.Counter("good_total", "", "")

	assert.ErrorContains(t, b.Err(), "bad name with spaces")
}
