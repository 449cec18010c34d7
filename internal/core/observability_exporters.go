package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerScopeName = "connectcore/internal/core"

// PrometheusMetricsRecorder publishes operation counters and latency
// histograms to a prometheus registerer.
type PrometheusMetricsRecorder struct {
	results  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPrometheusMetricsRecorder registers the service collectors with reg.
// A nil registerer falls back to prometheus.DefaultRegisterer.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	rec := &PrometheusMetricsRecorder{
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "connectcore",
			Subsystem: "service",
			Name:      "operations_total",
			Help:      "Service operations by outcome.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "connectcore",
			Subsystem: "service",
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	for _, c := range []prometheus.Collector{rec.results, rec.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// Observe records a service operation outcome.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.results.WithLabelValues(operation, status).Inc()
	r.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// OTelTracer starts OpenTelemetry spans for service operations.
type OTelTracer struct {
	tracer trace.Tracer
}

// NewOTelTracer builds a tracer from provider, or the global provider when nil.
func NewOTelTracer(provider trace.TracerProvider) *OTelTracer {
	if provider == nil {
		return &OTelTracer{tracer: otel.Tracer(tracerScopeName)}
	}
	return &OTelTracer{tracer: provider.Tracer(tracerScopeName)}
}

// Start implements Tracer.
func (t *OTelTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	ctx, span := t.tracer.Start(ctx, "core."+operation,
		trace.WithAttributes(attribute.String("connectcore.operation", operation)),
	)
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
}

// LogAuditRecorder writes audit entries to a zap logger.
type LogAuditRecorder struct {
	logger *zap.Logger
}

// NewLogAuditRecorder returns an audit recorder backed by logger.
func NewLogAuditRecorder(logger *zap.Logger) *LogAuditRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogAuditRecorder{logger: logger.Named("audit")}
}

// Record implements AuditRecorder.
func (r *LogAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("kind", string(entry.Kind)),
		zap.String("entity_id", entry.EntityID),
		zap.String("status", string(entry.Status)),
		zap.String("actor", entry.Actor),
		zap.Duration("duration", entry.Duration),
	}
	if entry.Error != "" {
		fields = append(fields, zap.String("error", entry.Error))
	}
	if entry.Status == AuditStatusError {
		r.logger.Warn("operation failed", fields...)
		return
	}
	r.logger.Info("operation", fields...)
}
