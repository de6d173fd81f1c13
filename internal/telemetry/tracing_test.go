package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// TestInitInstallsGlobalTracer verifies spans started through the service
// tracer are recorded with their attributes after Init.
func TestInitInstallsGlobalTracer(t *testing.T) {
	tp, err := Init(context.Background(), "flightsearch-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	rec := tracetest.NewSpanRecorder()
	tp.RegisterSpanProcessor(rec)

	_, span := Tracer().Start(context.Background(), "search.dispatch",
		trace.WithAttributes(attribute.String("search.origin", "CGK")))
	require.True(t, span.SpanContext().IsValid())
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	require.Equal(t, "search.dispatch", ended[0].Name())
	require.Contains(t, ended[0].Attributes(), attribute.String("search.origin", "CGK"))
}
