package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	rec.Observe(context.Background(), "create_connect", true, 10*time.Millisecond)
	rec.Observe(context.Background(), "create_connect", false, 5*time.Millisecond)
	rec.Observe(context.Background(), "", true, time.Millisecond)

	expected := `
# HELP connectcore_service_operations_total Service operations by outcome.
# TYPE connectcore_service_operations_total counter
connectcore_service_operations_total{operation="create_connect",status="error"} 1
connectcore_service_operations_total{operation="create_connect",status="success"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "connectcore_service_operations_total"); err != nil {
		t.Fatalf("metrics mismatch: %v", err)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestOTelTracerRecordsErrors(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	svc := NewInMemoryService(NewDefaultRulesEngine(), WithTracer(NewOTelTracer(provider)))
	if _, err := svc.SaveStatus(context.Background(), Status{Name: "New"}); err != nil {
		t.Fatalf("save status: %v", err)
	}
	if err := svc.QuickStatusUpdate(context.Background(), "missing", "missing"); err == nil {
		t.Fatalf("expected not found")
	}

	spans := exporter.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected two spans, got %d", len(spans))
	}
	if spans[0].Name != "core.create_status" || spans[0].Status.Code == codes.Error {
		t.Fatalf("unexpected first span %+v", spans[0])
	}
	if spans[1].Name != "core.quick_status_update" || spans[1].Status.Code != codes.Error {
		t.Fatalf("expected failed span, got %+v", spans[1])
	}
}

func TestLogAuditRecorder(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	rec := NewLogAuditRecorder(zap.New(core))
	rec.Record(context.Background(), AuditEntry{Operation: "soft_delete_stakeholder", Kind: KindStakeholder, EntityID: "s1", Status: AuditStatusBlocked, Error: "Cannot delete"})
	rec.Record(context.Background(), AuditEntry{Operation: "create_lead", Kind: KindLead, Status: AuditStatusError, Error: "boom"})

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected two audit entries, got %d", len(entries))
	}
	if entries[0].LoggerName != "audit" || entries[0].Level != zapcore.InfoLevel || entries[0].ContextMap()["status"] != "blocked" {
		t.Fatalf("unexpected blocked entry %+v", entries[0])
	}
	if entries[1].Level != zapcore.WarnLevel || entries[1].ContextMap()["error"] != "boom" {
		t.Fatalf("unexpected error entry %+v", entries[1])
	}
}

func TestServiceLogsThroughZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	svc := NewInMemoryService(NewDefaultRulesEngine(), WithLogger(NewZapLogger(zap.New(core))))
	_, err := svc.SaveStatus(context.Background(), Status{ID: "missing", Name: "x"})
	var nf ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
	if logs.FilterMessage("operation failed").Len() != 1 {
		t.Fatalf("expected failure log, got %+v", logs.All())
	}
	if NewZapLogger(nil) == nil {
		t.Fatalf("nil zap logger should yield a no-op logger")
	}
}
