package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys for registry entities
const (
	AttrEntityID      = attribute.Key("fern.entity.id")
	AttrEntityType    = attribute.Key("fern.entity.type")
	AttrQualifiedName = attribute.Key("fern.entity.qualified_name")
	AttrRelationship  = attribute.Key("fern.relationship")
)

var tracer trace.Tracer

// SetTracer sets the tracer used by StartSpan. Until it is called spans are no-ops.
func SetTracer(t trace.Tracer) {
	tracer = t
}

// StartSpan starts a child span of whatever span ctx carries
func StartSpan(ctx context.Context, spanName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, spanName, trace.WithAttributes(attrs...))
}

func activeSpan(ctx context.Context) (trace.Span, bool) {
	if tracer == nil {
		return nil, false
	}
	span := trace.SpanFromContext(ctx)
	return span, span.SpanContext().IsValid()
}

// Entity tags the active span with the entity it is working on
func Entity(ctx context.Context, id, entityType, qualifiedName string) {
	span, ok := activeSpan(ctx)
	if !ok {
		return
	}
	span.SetAttributes(
		AttrEntityID.String(id),
		AttrEntityType.String(entityType),
		AttrQualifiedName.String(qualifiedName),
	)
}

// GetTraceParent returns the W3C traceparent of the active span, or "".
func GetTraceParent(ctx context.Context) string {
	if _, ok := activeSpan(ctx); !ok {
		return ""
	}

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.Get("traceparent")
}

func GetTraceID(ctx context.Context) string {
	span, ok := activeSpan(ctx)
	if !ok {
		return ""
	}
	return span.SpanContext().TraceID().String()
}
