package router

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"graphengine/application/batch"
	pkgerrors "graphengine/pkg/errors"
	"graphengine/pkg/observability"
	"graphengine/pkg/utils"
)

// LoggingMiddleware logs every call
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) (any, error) {
			start := time.Now()
			logger.Debug("Routing operation",
				zap.String("operation", call.Operation),
				zap.String("domain_hint", call.DomainHint),
				zap.String("graph", call.Target.String()),
			)

			result, err := next(ctx, call)
			fields := []zap.Field{
				zap.String("operation", call.Operation),
				zap.String("graph", call.Target.String()),
				zap.String("domain", call.Domain),
				zap.Duration("elapsed", time.Since(start)),
			}
			if err != nil {
				logger.Warn("Operation failed", append(fields,
					zap.String("kind", string(pkgerrors.KindOf(err))),
					zap.Error(err),
				)...)
				return result, err
			}
			if res, ok := result.(*batch.Result); ok {
				fields = append(fields,
					zap.String("outcome", res.Outcome()),
					zap.Int("errors", len(res.Errors)),
				)
			}
			logger.Info("Operation routed", fields...)
			return result, nil
		}
	}
}

// ValidationMiddleware checks the graph_ref of routed calls before any
// graph is resolved.
func ValidationMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) (any, error) {
			if !call.Routed() || call.targetErr != nil {
				return next(ctx, call)
			}
			if err := utils.ValidateStruct(call.Target); err != nil {
				return nil, pkgerrors.Newf(pkgerrors.KindInvalidRequest, "graph_ref: %v", err).
					WithDetail("operation", call.Operation)
			}
			return next(ctx, call)
		}
	}
}

// TracingMiddleware opens a span per call
func TracingMiddleware(tracer *observability.Tracer) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) (any, error) {
			ctx, span := tracer.Start(ctx, "router."+operationLabel(call),
				attribute.String("operation", call.Operation),
				attribute.String("graph.asset_path", call.Target.AssetPath),
				attribute.String("graph.name", call.Target.GraphName),
			)
			defer span.End()

			result, err := next(ctx, call)
			span.SetAttributes(attribute.String("graph.domain", call.Domain))
			observability.RecordError(span, err)
			return result, err
		}
	}
}

// MetricsMiddleware counts calls by operation and error kind
func MetricsMiddleware(metrics *observability.Metrics) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) (any, error) {
			start := time.Now()
			result, err := next(ctx, call)

			kind := ""
			if err != nil {
				kind = string(pkgerrors.KindOf(err))
			} else if res, ok := result.(*batch.Result); ok {
				if first, failed := res.FirstError(); failed {
					kind = string(first.Kind)
				}
			}
			metrics.ObserveRoute(operationLabel(call), kind, time.Since(start))
			return result, err
		}
	}
}

// operationLabel keeps caller-supplied names out of span names and metric
// labels.
func operationLabel(call *Call) string {
	if _, ok := Lookup(call.Operation); ok {
		return call.Operation
	}
	return "unknown"
}
