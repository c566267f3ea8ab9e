package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer used for sync spans
const TracerName = "shopsync"

// Span attribute keys shared by the sync services
const (
	SpanAttrIntegrationID   = "integration_id"
	SpanAttrShopDomain      = "shop_domain"
	SpanAttrSyncType        = "sync_type"
	SpanAttrTrigger         = "sync_trigger"
	SpanAttrItemCount       = "item_count"
	SpanAttrFailedCount     = "failed_count"
	SpanAttrExternalOrderID = "external_order_id"
	SpanAttrOrderNumber     = "order_number"
	SpanAttrProductID       = "product_id"
	SpanAttrSKU             = "sku"
)

// SpanOption adjusts how StartSpan opens a span
type SpanOption func(*[]trace.SpanStartOption)

// WithAttribute sets an attribute when the span starts, so samplers see it
func WithAttribute(key string, value any) SpanOption {
	return func(opts *[]trace.SpanStartOption) {
		*opts = append(*opts, trace.WithAttributes(toAttribute(key, value)))
	}
}

// WithSpanKind overrides the default internal span kind
func WithSpanKind(kind trace.SpanKind) SpanOption {
	return func(opts *[]trace.SpanStartOption) {
		*opts = append(*opts, trace.WithSpanKind(kind))
	}
}

// StartSpan opens a span on the global tracer provider. Callers end it:
//
//	ctx, span := telemetry.StartSpan(ctx, "inventory_sync.run")
//	defer span.End()
func StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, trace.Span) {
	start := []trace.SpanStartOption{trace.WithSpanKind(trace.SpanKindInternal)}
	for _, opt := range opts {
		opt(&start)
	}
	return otel.Tracer(TracerName).Start(ctx, name, start...)
}

// StartServiceSpan opens a span named "<service>.<method>"
func StartServiceSpan(ctx context.Context, service, method string, opts ...SpanOption) (context.Context, trace.Span) {
	return StartSpan(ctx, service+"."+method, opts...)
}

// SetAttributes sets alternating key/value pairs on span. Pairs whose key is
// not a string are dropped, as is a trailing key without a value.
func SetAttributes(span trace.Span, keyValues ...any) {
	if span == nil || !span.IsRecording() {
		return
	}
	span.SetAttributes(pairs(keyValues)...)
}

// SetAttribute sets one attribute on span
func SetAttribute(span trace.Span, key string, value any) {
	if span == nil || !span.IsRecording() {
		return
	}
	span.SetAttributes(toAttribute(key, value))
}

// AddEvent adds a named event with alternating key/value attributes, e.g.
// "rest_fallback" when a batch chunk is retried item by item
func AddEvent(span trace.Span, name string, keyValues ...any) {
	if span == nil || !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(pairs(keyValues)...))
}

// RecordError attaches err to span as an exception event and fails the span.
// A nil err leaves the span untouched.
func RecordError(span trace.Span, err error, opts ...trace.EventOption) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK marks span as explicitly successful
func SetOK(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

func pairs(keyValues []any) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 1; i < len(keyValues); i += 2 {
		if key, ok := keyValues[i-1].(string); ok {
			attrs = append(attrs, toAttribute(key, keyValues[i]))
		}
	}
	return attrs
}

func toAttribute(key string, value any) attribute.KeyValue {
	k := attribute.Key(key)
	switch v := value.(type) {
	case string:
		return k.String(v)
	case bool:
		return k.Bool(v)
	case int:
		return k.Int(v)
	case int32:
		return k.Int64(int64(v))
	case int64:
		return k.Int64(v)
	case float64:
		return k.Float64(v)
	case []string:
		return k.StringSlice(v)
	case []int64:
		return k.Int64Slice(v)
	case fmt.Stringer:
		return k.String(v.String())
	case error:
		return k.String(v.Error())
	default:
		return k.String(fmt.Sprint(v))
	}
}
