package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"graphengine/pkg/common"
	"graphengine/pkg/observability"
)

// DomainHeader carries the caller's domain hint; the domain query parameter
// wins over it
const DomainHeader = "X-Graph-Domain"

// RequestContext copies the chi request ID, the start time and the domain
// hint into the request context and echoes the request ID
func RequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := middleware.GetReqID(r.Context())
		if reqID != "" {
			w.Header().Set(middleware.RequestIDHeader, reqID)
		}

		ctx := common.EnrichContext(r.Context(), reqID, time.Now())
		hint := r.URL.Query().Get("domain")
		if hint == "" {
			hint = r.Header.Get(DomainHeader)
		}
		if hint = strings.TrimSpace(hint); hint != "" {
			ctx = common.WithDomainHint(ctx, hint)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Tracing opens a server span per request and records the trace ID
func Tracing(tracer *observability.Tracer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), "http "+r.Method,
				attribute.String("http.method", r.Method),
				attribute.String("http.target", r.URL.Path),
			)
			defer span.End()

			if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
				ctx = common.WithTraceID(ctx, sc.TraceID().String())
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))
			span.SetAttributes(attribute.Int("http.status_code", ww.Status()))
		})
	}
}
