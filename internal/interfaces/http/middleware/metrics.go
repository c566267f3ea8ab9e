package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wms/shopsync/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var responseSizeBuckets = []float64{100, 500, 1_000, 5_000, 10_000, 50_000, 100_000, 500_000, 1_000_000}

// HTTPMetrics records per-route request counts, latency, response size and
// in-flight requests. Without an enabled provider it only calls Next.
func HTTPMetrics(mp *telemetry.MeterProvider) gin.HandlerFunc {
	if mp == nil || !mp.IsEnabled() {
		return passThrough
	}
	return HTTPMetricsWithMeter(mp.Meter("http.server"))
}

// HTTPMetricsWithMeter builds the instruments on meter
func HTTPMetricsWithMeter(meter metric.Meter) gin.HandlerFunc {
	b := telemetry.NewInstruments(meter)
	requests := b.Counter("http_server_request_total", "HTTP requests by route and status class", "{request}")
	latency := b.Histogram("http_server_request_duration_seconds", "HTTP request latency", "s", telemetry.HTTPDurationBuckets)
	size := b.Histogram("http_server_response_size_bytes", "HTTP response body size", "By", responseSizeBuckets)
	inFlight := b.UpDownCounter("http_server_active_requests", "HTTP requests in flight", "{request}")
	if b.Err() != nil {
		return passThrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		inFlight.Add(ctx, 1)
		defer inFlight.Add(ctx, -1)

		c.Next()

		// the matched pattern, not the raw path, keeps cardinality bounded
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		attrs := []attribute.KeyValue{
			telemetry.AttrHTTPMethod.String(c.Request.Method),
			telemetry.AttrHTTPRoute.String(route),
		}
		requests.Inc(ctx, append(attrs, attribute.String("http.status_class", statusClass(c.Writer.Status())))...)
		latency.RecordDuration(ctx, time.Since(start), attrs...)
		if n := c.Writer.Size(); n > 0 {
			size.Record(ctx, float64(n), attrs...)
		}
	}
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return string(rune('0'+code/100)) + "xx"
}
