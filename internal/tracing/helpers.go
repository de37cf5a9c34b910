package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName is the tracer name used for spans created by this service.
const instrumentationName = "feedrank"

// CacheOperation names a feed cache operation being traced.
type CacheOperation string

const (
	CacheOperationGet CacheOperation = "get"
	CacheOperationPut CacheOperation = "put"
)

// StartCacheSpan creates a client span for a feed cache call against the
// given backend (e.g. "redis"). Returns the new context and a function that
// ends the span, recording err when non-nil.
//
//	ctx, endSpan := tracing.StartCacheSpan(ctx, "redis", tracing.CacheOperationGet)
//	defer func() { endSpan(err) }()
func StartCacheSpan(ctx context.Context, backend string, operation CacheOperation) (context.Context, func(error)) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "cache."+string(operation),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", backend),
			attribute.String("db.operation", string(operation)),
		),
	)
	return ctx, endFunc(span)
}

// StartSpan creates a new span for a general operation.
// Returns the new context and a function to end the span.
//
//	ctx, endSpan := tracing.StartSpan(ctx, "feed.rank")
//	defer func() { endSpan(err) }()
func StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, name)
	return ctx, endFunc(span)
}

func endFunc(span trace.Span) func(error) {
	return func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the current span.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
