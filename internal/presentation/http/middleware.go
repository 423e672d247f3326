package httppresentation

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/zenshop/orderengine/internal/identity"
	"github.com/zenshop/orderengine/internal/observability"
	"github.com/zenshop/orderengine/internal/observability/logctx"
)

const (
	headerRequestID = "X-Request-ID"
	headerUserID    = "X-User-ID"
	headerAdmin     = "X-Admin"

	identityKey = "identity"
)

// IdentityMiddleware reads the caller identity forwarded by the auth
// collaborator. The engine never authenticates; it only consumes the headers.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := identity.Identity{UserID: c.GetHeader(headerUserID)}
		if admin, err := strconv.ParseBool(c.GetHeader(headerAdmin)); err == nil {
			caller.Admin = admin
		}
		c.Set(identityKey, caller)
		c.Next()
	}
}

func callerFrom(c *gin.Context) identity.Identity {
	if v, ok := c.Get(identityKey); ok {
		if caller, ok := v.(identity.Identity); ok {
			return caller
		}
	}
	return identity.Identity{}
}

// ObservabilityMiddleware combines W3C trace-context extraction, a server
// span per request, request-id generation and echo, a request-scoped logger
// on the context, HTTP RED metrics, and a single access log line.
func ObservabilityMiddleware(tel observability.Observability) gin.HandlerFunc {
	if tel == nil {
		tel = observability.Nop()
	}
	base := tel.Logger().With(observability.F("component", "http_server"))
	reqCounter := tel.Metrics().Counter(observability.MHTTPRequests)
	durHist := tel.Metrics().Histogram(observability.MHTTPRequestDuration)
	prop := otel.GetTextMapPropagator()

	return func(c *gin.Context) {
		start := time.Now()
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}

		ctx := prop.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tel.Tracer().Start(ctx, c.Request.Method+" "+route,
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.String("http.target", c.Request.URL.Path),
		)
		defer span.End()

		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header(headerRequestID, rid)

		fields := []observability.Field{observability.F("request_id", rid)}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		reqLogger := base.With(fields...)
		ctx = logctx.With(ctx, reqLogger)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		statusLabel := strconv.Itoa(status)
		reqCounter.Add(1,
			observability.L("method", c.Request.Method),
			observability.L("route", route),
			observability.L("status", statusLabel),
		)
		durHist.Observe(time.Since(start).Seconds(),
			observability.L("method", c.Request.Method),
			observability.L("route", route),
			observability.L("status", statusLabel),
		)
		reqLogger.Info("http_access",
			observability.F("method", c.Request.Method),
			observability.F("route", route),
			observability.F("path", c.Request.URL.Path),
			observability.F("status", status),
			observability.F("latency_ms", time.Since(start).Milliseconds()),
		)
	}
}
