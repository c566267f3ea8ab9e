// Package middleware provides HTTP middleware for the shopsync API.
package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/wms/shopsync/internal/infrastructure/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// request IDs come from clients; longer values are cut before they reach a span
const maxRequestIDAttr = 128

func passThrough(c *gin.Context) { c.Next() }

// Tracing starts a server span per request, named "METHOD route". Requests
// for the untraced paths, such as liveness probes, get no span.
func Tracing(service string, enabled bool, untraced ...string) gin.HandlerFunc {
	if !enabled {
		return passThrough
	}
	return otelgin.Middleware(service, otelgin.WithFilter(func(r *http.Request) bool {
		return !slices.Contains(untraced, r.URL.Path)
	}))
}

// SpanAttributes tags the request span with the request, integration and
// operator, and flags it failed on 4xx and 5xx. Mount it after JWT.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}
		span.SetAttributes(requestAttrs(c)...)
		c.Next()
		if status := c.Writer.Status(); status >= http.StatusBadRequest {
			span.SetStatus(codes.Error, http.StatusText(status))
			span.SetAttributes(telemetry.AttrHTTPStatusCode.Int(status))
		}
	}
}

func requestAttrs(c *gin.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if id := RequestID(c); id != "" {
		attrs = append(attrs, attribute.String("request_id", id[:min(len(id), maxRequestIDAttr)]))
	}
	if id := c.Param("integration_id"); id != "" {
		attrs = append(attrs, telemetry.AttrIntegrationID.String(id))
	}
	if id := GetJWTUserID(c); id != "" {
		attrs = append(attrs, attribute.String("user_id", id))
	}
	return attrs
}
