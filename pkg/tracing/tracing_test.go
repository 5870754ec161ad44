package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// recordSpans installs an in-memory provider for the duration of the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(recorder))
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return recorder
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ServiceName != "castmux" {
		t.Errorf("expected service name 'castmux', got '%s'", cfg.ServiceName)
	}
	if cfg.Enabled {
		t.Error("tracing should be disabled by default")
	}
}

func TestInitDisabled(t *testing.T) {
	p, err := Init(DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown of disabled provider failed: %v", err)
	}
}

func TestRecordError(t *testing.T) {
	recorder := recordSpans(t)

	ctx, span := StartSpan(context.Background(), "session.connect")
	AddSpanAttributes(ctx, attribute.Int("castmux.connection.id", 2))
	RecordError(ctx, errors.New("connection create failed"))
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("expected 1 span, got %d", len(ended))
	}
	if ended[0].Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", ended[0].Status())
	}
	if len(ended[0].Events()) == 0 {
		t.Error("expected the error to be recorded as an event")
	}
}

func TestSpanNames(t *testing.T) {
	recorder := recordSpans(t)
	ctx := context.Background()

	starts := []func() (context.Context, trace.Span){
		func() (context.Context, trace.Span) { return TraceHTTPRequest(ctx, "PUT", "/api/v1/session/zoom") },
		func() (context.Context, trace.Span) { return TraceWebSocketMessage(ctx, "subscribe", "client-1") },
		func() (context.Context, trace.Span) { return TraceSessionOperation(ctx, "start", "session-1") },
		func() (context.Context, trace.Span) { return TraceRepositoryOperation(ctx, "save", "redis") },
	}
	for _, start := range starts {
		_, span := start()
		span.End()
	}

	want := []string{"PUT /api/v1/session/zoom", "events.subscribe", "session.start", "snapshots.save"}
	ended := recorder.Ended()
	if len(ended) != len(want) {
		t.Fatalf("expected %d spans, got %d", len(want), len(ended))
	}
	for i, name := range want {
		if ended[i].Name() != name {
			t.Errorf("span %d: expected %q, got %q", i, name, ended[i].Name())
		}
	}
	if ended[0].SpanKind() != trace.SpanKindServer {
		t.Errorf("expected server span for HTTP, got %v", ended[0].SpanKind())
	}
}
