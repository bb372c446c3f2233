package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func newRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return rec
}

func attr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestStartDBSpan(t *testing.T) {
	tests := []struct {
		name      string
		table     string
		operation DBOperation
		wantName  string
	}{
		{"query users", "users", DBOperationQuery, "query users"},
		{"insert follows", "follows", DBOperationInsert, "insert follows"},
		{"delete requests", "follow_requests", DBOperationDelete, "delete follow_requests"},
		{"update users", "users", DBOperationUpdate, "update users"},
		{"exec without table", "", DBOperationExec, "exec"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newRecorder(t)

			_, endSpan := StartDBSpan(context.Background(), tt.table, tt.operation)
			endSpan(nil)

			spans := rec.Ended()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}
			span := spans[0]
			if span.Name() != tt.wantName {
				t.Errorf("span name = %q, want %q", span.Name(), tt.wantName)
			}
			if span.SpanKind() != trace.SpanKindClient {
				t.Errorf("span kind = %v, want client", span.SpanKind())
			}
			if v, ok := attr(span, "db.system"); !ok || v.AsString() != "postgresql" {
				t.Errorf("db.system = %v", v)
			}
			_, hasTable := attr(span, "db.sql.table")
			if hasTable != (tt.table != "") {
				t.Errorf("db.sql.table present = %v", hasTable)
			}
		})
	}
}

func TestEndFuncs_RecordError(t *testing.T) {
	rec := newRecorder(t)
	boom := errors.New("boom")

	_, endDB := StartDBSpan(context.Background(), "blocks", DBOperationInsert)
	endDB(boom)
	_, end := StartSpan(context.Background(), "relationship.toggle_block")
	end(boom)

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	for _, span := range spans {
		if span.Status().Code != codes.Error || span.Status().Description != "boom" {
			t.Errorf("%s: status = %+v", span.Name(), span.Status())
		}
		if len(span.Events()) == 0 {
			t.Errorf("%s: expected error event", span.Name())
		}
	}
}

func TestStartSpan_NestsUnderParent(t *testing.T) {
	rec := newRecorder(t)

	ctx, endParent := StartSpan(context.Background(), "search.users")
	_, endChild := StartDBSpan(ctx, "users", DBOperationQuery)
	endChild(nil)
	endParent(nil)

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	child, parent := spans[0], spans[1]
	if child.Parent().SpanID() != parent.SpanContext().SpanID() {
		t.Error("db span should be a child of the search span")
	}
	if parent.Status().Code == codes.Error {
		t.Error("nil error must not mark the span failed")
	}
}

func TestAddEventAndSetAttributes(t *testing.T) {
	rec := newRecorder(t)

	ctx, end := StartSpan(context.Background(), "relationship.toggle_follow")
	SetAttributes(ctx, attribute.String("relationship.caller_id", "u1"))
	AddEvent(ctx, "request_created", attribute.String("relationship.target_id", "u2"))
	end(nil)

	span := rec.Ended()[0]
	if v, ok := attr(span, "relationship.caller_id"); !ok || v.AsString() != "u1" {
		t.Errorf("caller attribute = %v", v)
	}
	if len(span.Events()) != 1 || span.Events()[0].Name != "request_created" {
		t.Errorf("events = %+v", span.Events())
	}

	// No active span: helpers must not panic.
	SetAttributes(context.Background(), attribute.Bool("x", true))
	AddEvent(context.Background(), "ignored")
}
