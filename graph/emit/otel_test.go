package emit

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestTracer(t *testing.T) (*OTelEmitter, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewOTelEmitter(tp.Tracer("test")), exporter
}

func attributeMap(attrs []attribute.KeyValue) map[string]interface{} {
	m := make(map[string]interface{}, len(attrs))
	for _, kv := range attrs {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}

func TestOTelEmitter_Emit(t *testing.T) {
	emitter, exporter := newTestTracer(t)

	emitter.Emit(Event{
		SessionID: "s1",
		Bar:       7,
		NodeID:    "gen",
		Msg:       "node_fired",
		Meta: map[string]interface{}{
			"node_type": "generator",
			"owner":     "entry",
			"carried":   2,
			"elapsed":   1500 * time.Millisecond,
		},
	})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	span := spans[0]
	if span.Name != "node_fired" {
		t.Errorf("expected span name node_fired, got %q", span.Name)
	}

	attrs := attributeMap(span.Attributes)
	checks := map[string]interface{}{
		"mind.session_id": "s1",
		"mind.bar":        int64(7),
		"mind.node_id":    "gen",
		"mind.node.type":  "generator",
		"owner":           "entry",
		"carried":         int64(2),
		"elapsed":         int64(1500),
	}
	for key, want := range checks {
		if got := attrs[key]; got != want {
			t.Errorf("%s: expected %v, got %v", key, want, got)
		}
	}
	if span.Status.Code == codes.Error {
		t.Error("expected no error status")
	}
}

func TestOTelEmitter_ErrorStatus(t *testing.T) {
	emitter, exporter := newTestTracer(t)

	emitter.Emit(Event{SessionID: "s1", Msg: "bar_complete", Meta: map[string]interface{}{
		"ok":    false,
		"error": "missing flow graph",
	}})

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("expected error status, got %v", spans[0].Status.Code)
	}
	if spans[0].Status.Description != "missing flow graph" {
		t.Errorf("expected status description, got %q", spans[0].Status.Description)
	}
	if len(spans[0].Events) == 0 {
		t.Error("expected recorded error event")
	}
}

func TestOTelEmitter_EmitBatch(t *testing.T) {
	emitter, exporter := newTestTracer(t)

	events := []Event{
		{SessionID: "s1", Bar: 0, Msg: "bar_start"},
		{SessionID: "s1", Bar: 0, NodeID: "gen", Msg: "node_fired"},
		{SessionID: "s1", Bar: 0, Msg: "bar_complete"},
	}
	if err := emitter.EmitBatch(context.Background(), events); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n := len(exporter.GetSpans()); n != 3 {
		t.Errorf("expected 3 spans, got %d", n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	exporter.Reset()
	if err := emitter.EmitBatch(ctx, events); err == nil {
		t.Error("expected error for cancelled context")
	}
	if n := len(exporter.GetSpans()); n != 0 {
		t.Errorf("expected no spans after cancellation, got %d", n)
	}
}

func TestOTelEmitter_Flush(t *testing.T) {
	emitter, _ := newTestTracer(t)
	if err := emitter.Flush(context.Background()); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}
