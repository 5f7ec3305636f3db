package common

import (
	"context"
	"time"
)

// ContextKey represents a context key type
type ContextKey string

// Context keys
const (
	ContextKeyRequestID  ContextKey = "request_id"
	ContextKeyTraceID    ContextKey = "trace_id"
	ContextKeyStartTime  ContextKey = "start_time"
	ContextKeyDomainHint ContextKey = "domain_hint"
)

// WithRequestID adds request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// GetRequestID extracts request ID from context
func GetRequestID(ctx context.Context) (string, bool) {
	requestID, ok := ctx.Value(ContextKeyRequestID).(string)
	return requestID, ok
}

// WithTraceID adds trace ID to context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ContextKeyTraceID, traceID)
}

// GetTraceID extracts trace ID from context
func GetTraceID(ctx context.Context) (string, bool) {
	traceID, ok := ctx.Value(ContextKeyTraceID).(string)
	return traceID, ok
}

// WithStartTime adds start time to context
func WithStartTime(ctx context.Context, startTime time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyStartTime, startTime)
}

// GetStartTime extracts start time from context
func GetStartTime(ctx context.Context) (time.Time, bool) {
	startTime, ok := ctx.Value(ContextKeyStartTime).(time.Time)
	return startTime, ok
}

// GetElapsedTime calculates elapsed time from start time in context
func GetElapsedTime(ctx context.Context) time.Duration {
	if startTime, ok := GetStartTime(ctx); ok {
		return time.Since(startTime)
	}
	return 0
}

// WithDomainHint records the graph domain a caller asked for
func WithDomainHint(ctx context.Context, domain string) context.Context {
	return context.WithValue(ctx, ContextKeyDomainHint, domain)
}

// GetDomainHint returns the domain hint, or "" when there is none
func GetDomainHint(ctx context.Context) string {
	hint, _ := ctx.Value(ContextKeyDomainHint).(string)
	return hint
}

// EnrichContext adds the request ID and start time
func EnrichContext(ctx context.Context, requestID string, start time.Time) context.Context {
	ctx = WithRequestID(ctx, requestID)
	ctx = WithStartTime(ctx, start)
	return ctx
}

// ContextMetadata contains all context metadata
type ContextMetadata struct {
	RequestID  string        `json:"request_id,omitempty"`
	TraceID    string        `json:"trace_id,omitempty"`
	DomainHint string        `json:"domain_hint,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// ExtractMetadata extracts all metadata from context
func ExtractMetadata(ctx context.Context) ContextMetadata {
	meta := ContextMetadata{DomainHint: GetDomainHint(ctx)}

	if requestID, ok := GetRequestID(ctx); ok {
		meta.RequestID = requestID
	}
	if traceID, ok := GetTraceID(ctx); ok {
		meta.TraceID = traceID
	}
	meta.Duration = GetElapsedTime(ctx)

	return meta
}
