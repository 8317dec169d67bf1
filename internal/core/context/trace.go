package context

import (
	"context"

	"github.com/google/uuid"
)

// TraceContext contains request tracing information.
// RequestID and CorrelationID are copied into outbound message headers.
type TraceContext struct {
	TraceID       string
	RequestID     string
	CorrelationID string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// GetRequestID returns request ID from context or empty string.
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// GetCorrelationID returns the correlation id, falling back to the request id.
func GetCorrelationID(ctx context.Context) string {
	t := GetTrace(ctx)
	if t == nil {
		return ""
	}
	if t.CorrelationID != "" {
		return t.CorrelationID
	}
	return t.RequestID
}

// NewTraceContext creates a new TraceContext with generated IDs.
func NewTraceContext() *TraceContext {
	requestID := uuid.New().String()
	return &TraceContext{
		TraceID:       uuid.New().String(),
		RequestID:     requestID,
		CorrelationID: requestID,
	}
}
