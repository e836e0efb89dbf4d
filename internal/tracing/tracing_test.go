package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestInitTracerWithoutEndpoint(t *testing.T) {
	tp, err := InitTracer(context.Background(), "monitorclient-test", "")
	require.NoError(t, err)
	defer func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(noop.NewTracerProvider())
	}()

	ctx, span := Tracer().Start(context.Background(), "test")
	defer span.End()

	assert.Len(t, TraceIDFromContext(ctx), 32)
	assert.Len(t, SpanIDFromContext(ctx), 16)
}

func TestIDsWithoutSpan(t *testing.T) {
	assert.Equal(t, "", TraceIDFromContext(context.Background()))
	assert.Equal(t, "", SpanIDFromContext(context.Background()))
}

func TestSetSpanAttributes(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	ctx, span := tp.Tracer("test").Start(context.Background(), "attrs")
	SetSpanAttributes(ctx, attribute.Int("text.length", 42))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	found := false
	for _, attr := range spans[0].Attributes {
		if attr.Key == "text.length" && attr.Value.AsInt64() == 42 {
			found = true
		}
	}
	assert.True(t, found, "text.length attribute not found")

	// No span in context: must not panic
	SetSpanAttributes(context.Background(), attribute.Int("ignored", 1))
}

func TestTransportCreatesClientSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(noop.NewTracerProvider())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := &http.Client{Transport: Transport(nil)}
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	require.NoError(t, tp.ForceFlush(context.Background()))
	assert.NotEmpty(t, exporter.GetSpans())
}
