package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTextMapPropagator(propagation.TraceContext{})
	SetTracer(provider.Tracer("test"))
	t.Cleanup(func() { SetTracer(nil) })
	return recorder
}

func TestStartSpan_NoTracer(t *testing.T) {
	SetTracer(nil)

	ctx, span := StartSpan(context.Background(), "noop")
	defer span.End()

	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetTraceParent(ctx))
	Entity(ctx, "id", "type", "name")
}

func TestEntity(t *testing.T) {
	recorder := withRecorder(t)

	ctx, span := StartSpan(context.Background(), "Registry.CreateProject", AttrRelationship.String("Contains"))
	Entity(ctx, "e1", "feathr_workspace_v1", "p1")
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	attrs := map[string]string{}
	for _, kv := range ended[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsString()
	}
	assert.Equal(t, "e1", attrs[string(AttrEntityID)])
	assert.Equal(t, "feathr_workspace_v1", attrs[string(AttrEntityType)])
	assert.Equal(t, "p1", attrs[string(AttrQualifiedName)])
	assert.Equal(t, "Contains", attrs[string(AttrRelationship)])
}

func TestGetTraceParent(t *testing.T) {
	withRecorder(t)

	ctx, span := StartSpan(context.Background(), "publish")
	defer span.End()

	traceID := GetTraceID(ctx)
	require.Len(t, traceID, 32)
	assert.Contains(t, GetTraceParent(ctx), traceID)
}
