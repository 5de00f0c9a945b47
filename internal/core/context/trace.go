package context

import (
	"context"

	"docledger/internal/core/id"
)

// Origins of a unit of work.
const (
	OriginHTTP   = "http"
	OriginOutbox = "outbox"
	OriginCLI    = "cli"
)

// TraceContext correlates log lines of one unit of work: an HTTP request,
// an outbox batch or a CLI invocation.
type TraceContext struct {
	TraceID   string
	RequestID string
	Origin    string
}

type traceContextKey struct{}

// NewTraceContext creates a TraceContext with fresh ids.
func NewTraceContext(origin string) *TraceContext {
	return &TraceContext{
		TraceID:   id.New().String(),
		RequestID: id.New().String(),
		Origin:    origin,
	}
}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// StartTrace attaches a fresh TraceContext unless ctx already carries one.
func StartTrace(ctx context.Context, origin string) context.Context {
	if GetTrace(ctx) != nil {
		return ctx
	}
	return WithTrace(ctx, NewTraceContext(origin))
}

// GetTrace returns TraceContext from context, nil when absent.
func GetTrace(ctx context.Context) *TraceContext {
	t, _ := ctx.Value(traceContextKey{}).(*TraceContext)
	return t
}

// GetTraceID returns the trace id or "".
func GetTraceID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.TraceID
	}
	return ""
}
