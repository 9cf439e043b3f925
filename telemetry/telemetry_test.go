package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

// These tests swap the global providers, so they do not run in parallel.

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(context.Background(), Options{})
	require.NoError(t, err)
	require.NotNil(t, shutdown)

	_, span := otel.Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid(), "no-op spans carry no context")
	span.End()
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitEnabledWritesSpansAndMetrics(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init(context.Background(), Options{
		Enabled:     true,
		ServiceName: "jira-insights-test",
		Version:     "test",
		Writer:      &buf,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = Init(context.Background(), Options{})
	})

	ctx, span := otel.Tracer("test").Start(context.Background(), "ingest.fetch")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	counter, err := otel.Meter("test").Int64Counter("issues.normalized")
	require.NoError(t, err)
	counter.Add(ctx, 3)

	require.NoError(t, shutdown(context.Background()))
	out := buf.String()
	assert.Contains(t, out, "ingest.fetch")
	assert.Contains(t, out, "issues.normalized")
	assert.Contains(t, out, "jira-insights-test")
}
