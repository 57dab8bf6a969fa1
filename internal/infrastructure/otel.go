package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"pitchstats/pkg/contracts"
)

// ServiceName doubles as the instrumentation scope for both tracer and meter.
const ServiceName = "pitchstats"

// OTelConfig selects exporters and sampling for the telemetry stack.
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout" or "none"
	MetricExporter string // "prometheus" or "none"
	EnableMetrics  bool
	EnableTracing  bool
	SampleRatio    float64
}

// OTelProviders bundles the live providers plus the scoped tracer/meter the
// rest of the application instruments against. PrometheusHTTP is nil unless
// the prometheus exporter is active.
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// DefaultOTelConfig samples everything and traces to stdout, which is what a
// local or single-instance deployment wants. ENVIRONMENT overrides the
// deployment environment attribute.
func DefaultOTelConfig() *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: contracts.Version,
		Environment:    env,
		TraceExporter:  "stdout",
		MetricExporter: "prometheus",
		EnableMetrics:  true,
		EnableTracing:  true,
		SampleRatio:    1.0,
	}
}

// InitializeOTel stands up tracing and metrics per cfg and registers the
// global propagator. Disabled subsystems leave their provider fields nil.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}

	ctx := context.Background()
	res := newResource(cfg)
	providers := &OTelProviders{Logger: logger}

	if cfg.EnableTracing && cfg.TraceExporter != "none" {
		tp, err := newTracerProvider(cfg, res)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
		providers.TracerProvider = tp
		providers.Tracer = tp.Tracer(ServiceName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
		otel.SetTracerProvider(tp)
	}

	if cfg.EnableMetrics && cfg.MetricExporter != "none" {
		mp, promHandler, err := newMeterProvider(cfg, res)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
		providers.MeterProvider = mp
		providers.Meter = mp.Meter(ServiceName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
		providers.PrometheusHTTP = promHandler
		otel.SetMeterProvider(mp)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", providers.TracerProvider != nil),
		slog.Bool("metrics_enabled", providers.MeterProvider != nil))

	return providers, nil
}

func newResource(cfg *OTelConfig) *resource.Resource {
	hostname, _ := os.Hostname()
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
		attribute.String("service.instance.id", fmt.Sprintf("%s-%d", hostname, time.Now().Unix())),
	)
}

func newTracerProvider(cfg *OTelConfig, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	if cfg.TraceExporter != "stdout" {
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	), nil
}

func newMeterProvider(cfg *OTelConfig, res *resource.Resource) (*sdkmetric.MeterProvider, http.Handler, error) {
	if cfg.MetricExporter != "prometheus" {
		return nil, nil, fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	return mp, promhttp.Handler(), nil
}

// Shutdown flushes and stops both providers. Errors are collected rather
// than short-circuiting so one provider's failure does not strand the other.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

// BusinessMetrics holds every instrument the application records against.
// Construction happens once in CreateBusinessMetrics; a nil receiver on any
// of the Record* helpers below is tolerated so code paths that run before
// telemetry is up stay safe.
type BusinessMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	RunExecutionsTotal metric.Int64Counter
	RunDuration        metric.Float64Histogram
	RunStagesTotal     metric.Int64Counter
	RunStageDuration   metric.Float64Histogram
	ActiveRuns         metric.Int64UpDownCounter
	RunErrors          metric.Int64Counter
	RunCancellations   metric.Int64Counter

	IngestRowsTotal     metric.Int64Counter
	IngestParseErrors   metric.Int64Counter
	IngestEntitiesTotal metric.Int64Counter

	NarrativeRequestsTotal metric.Int64Counter
	NarrativeFailuresTotal metric.Int64Counter
	NarrativeDuration      metric.Float64Histogram

	SystemErrors metric.Int64Counter
	SystemUptime metric.Float64UpDownCounter
}

// CreateBusinessMetrics registers the application's instruments on the meter.
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	var err error

	counter := func(name, desc string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var c metric.Int64Counter
		c, err = meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}
	histogram := func(name, desc string) metric.Float64Histogram {
		if err != nil {
			return nil
		}
		var h metric.Float64Histogram
		h, err = meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
		return h
	}
	upDown := func(name, desc string) metric.Int64UpDownCounter {
		if err != nil {
			return nil
		}
		var u metric.Int64UpDownCounter
		u, err = meter.Int64UpDownCounter(name, metric.WithDescription(desc))
		return u
	}

	m := &BusinessMetrics{
		HTTPRequestsTotal:   counter("http_requests_total", "Total number of HTTP requests"),
		HTTPRequestDuration: histogram("http_request_duration_seconds", "HTTP request duration in seconds"),
		HTTPActiveRequests:  upDown("http_active_requests", "Number of active HTTP requests"),

		RunExecutionsTotal: counter("study_runs_total", "Total number of study runs"),
		RunDuration:        histogram("study_run_duration_seconds", "Study run duration in seconds"),
		RunStagesTotal:     counter("study_run_stages_total", "Total number of study run stages executed"),
		RunStageDuration:   histogram("study_run_stage_duration_seconds", "Study run stage duration in seconds"),
		ActiveRuns:         upDown("study_runs_active", "Number of active study runs"),
		RunErrors:          counter("study_run_errors_total", "Total number of study run errors"),
		RunCancellations:   counter("study_run_cancellations_total", "Total number of study run cancellations"),

		IngestRowsTotal:     counter("ingest_rows_total", "Total number of provider export rows read"),
		IngestParseErrors:   counter("ingest_parse_errors_total", "Total number of provider export parse errors"),
		IngestEntitiesTotal: counter("ingest_entities_total", "Total number of entities ingested, by match confidence"),

		NarrativeRequestsTotal: counter("narrative_requests_total", "Total number of narrative generation requests"),
		NarrativeFailuresTotal: counter("narrative_failures_total", "Total number of failed narrative generation requests"),
		NarrativeDuration:      histogram("narrative_request_duration_seconds", "Narrative generation request duration in seconds"),

		SystemErrors: counter("system_errors_total", "Total number of system errors"),
	}
	if err != nil {
		return nil, err
	}

	// The uptime gauge wants a different unit pairing, so it is registered
	// outside the closures.
	m.SystemUptime, err = meter.Float64UpDownCounter(
		"system_uptime_seconds",
		metric.WithDescription("System uptime in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// TraceIDFromContext returns the active OTel span's trace ID, or "" when the
// context carries no valid span. The logging handler uses it to correlate
// log lines with spans when no explicit trace ID was set.
func TraceIDFromContext(ctx context.Context) string {
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// attrsFromMap converts a loosely typed attribute map into OTel key/values.
// Unknown types fall back to their fmt representation.
func attrsFromMap(attributes map[string]interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
	return attrs
}

// AddSpanEvent attaches a named event to the recording span, if any.
func AddSpanEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(attrsFromMap(attributes)...))
}

// RecordError marks the recording span as failed and records err on it.
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanAttributes applies the map to the recording span, if any.
func SetSpanAttributes(ctx context.Context, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(attrsFromMap(attributes)...)
}

// RecordRunMetrics records execution count, duration, and error tallies for
// one finished study run.
func RecordRunMetrics(ctx context.Context, metrics *BusinessMetrics, runID string, study string, duration time.Duration, success bool, err error) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("run.id", runID),
		attribute.String("run.study", study),
	}
	metrics.RunExecutionsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	status := "success"
	if !success {
		status = "failure"
	}
	durationAttrs := append(attrs, attribute.String("status", status))
	metrics.RunDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(durationAttrs...))

	if err != nil {
		errorAttrs := append(attrs, attribute.String("error.type", fmt.Sprintf("%T", err)))
		metrics.RunErrors.Add(ctx, 1, metric.WithAttributes(errorAttrs...))
	}

	AddSpanEvent(ctx, "run.metrics_recorded", map[string]interface{}{
		"run.id":           runID,
		"success":          success,
		"duration_seconds": duration.Seconds(),
	})
}

// RecordStageMetrics records count and duration for one pipeline stage.
func RecordStageMetrics(ctx context.Context, metrics *BusinessMetrics, runID, stage string, duration time.Duration, success bool) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("run.id", runID),
		attribute.String("stage", stage),
	}
	metrics.RunStagesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	status := "success"
	if !success {
		status = "failure"
	}
	durationAttrs := append(attrs, attribute.String("status", status))
	metrics.RunStageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(durationAttrs...))
}

// RecordActiveRunChange moves the active-run gauge by delta for one study.
func RecordActiveRunChange(ctx context.Context, metrics *BusinessMetrics, delta int64, study string) {
	if metrics == nil {
		return
	}
	metrics.ActiveRuns.Add(ctx, delta, metric.WithAttributes(
		attribute.String("run.study", study),
	))
}

// RecordRunCancellation counts one cancelled run with its reason.
func RecordRunCancellation(ctx context.Context, metrics *BusinessMetrics, runID, study, reason string) {
	if metrics == nil {
		return
	}
	metrics.RunCancellations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("run.study", study),
		attribute.String("reason", reason),
	))
}

// RecordIngestMetrics records row counts for one provider export file.
func RecordIngestMetrics(ctx context.Context, metrics *BusinessMetrics, source string, rows, parseErrors int64) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{attribute.String("source", source)}
	metrics.IngestRowsTotal.Add(ctx, rows, metric.WithAttributes(attrs...))
	if parseErrors > 0 {
		metrics.IngestParseErrors.Add(ctx, parseErrors, metric.WithAttributes(attrs...))
	}
}

// RecordEntityMatchMetrics records ingested entity counts by match confidence.
func RecordEntityMatchMetrics(ctx context.Context, metrics *BusinessMetrics, study string, countsByConfidence map[string]int64) {
	if metrics == nil {
		return
	}
	for confidence, count := range countsByConfidence {
		metrics.IngestEntitiesTotal.Add(ctx, count, metric.WithAttributes(
			attribute.String("run.study", study),
			attribute.String("match_confidence", confidence),
		))
	}
}

// RecordNarrativeMetrics records a narrative generation attempt.
func RecordNarrativeMetrics(ctx context.Context, metrics *BusinessMetrics, kind string, duration time.Duration, err error) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{attribute.String("kind", kind)}
	metrics.NarrativeRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	metrics.NarrativeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if err != nil {
		failureAttrs := append(attrs, attribute.String("error.type", fmt.Sprintf("%T", err)))
		metrics.NarrativeFailuresTotal.Add(ctx, 1, metric.WithAttributes(failureAttrs...))
	}
}
