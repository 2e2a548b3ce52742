// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for an MCP server, plus a transport middleware that instruments
// every message crossing a transport.
package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/mcp-server-core/pkg/protocol"
)

const instrumentationName = "github.com/ajitpratap0/mcp-server-core"

// Span attribute keys.
const (
	AttrMethod      = attribute.Key("mcp.method")
	AttrService     = attribute.Key("mcp.service")
	AttrToolName    = attribute.Key("mcp.tool.name")
	AttrToolIsError = attribute.Key("mcp.tool.is_error")
	AttrResourceURI = attribute.Key("mcp.resource.uri")
	AttrResource    = attribute.Key("mcp.resource.name")
	AttrPromptName  = attribute.Key("mcp.prompt.name")
)

// ExporterType selects where spans go.
type ExporterType string

const (
	ExporterTypeOTLPGRPC ExporterType = "otlp-grpc"
	ExporterTypeOTLPHTTP ExporterType = "otlp-http"
	// ExporterTypeNoop records spans and drops them.
	ExporterTypeNoop ExporterType = "noop"
)

// TracingConfig configures a TracingProvider. Zero values get defaults.
type TracingConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	ExporterType ExporterType
	Endpoint     string
	Headers      map[string]string
	Insecure     bool

	// Exporter overrides ExporterType when set.
	Exporter sdktrace.SpanExporter

	// SampleRate is the share of traces kept, 0 to 1. AlwaysSample and
	// NeverSample override it per MCP method.
	SampleRate   float64
	AlwaysSample []string
	NeverSample  []string

	BatchTimeout time.Duration
	MaxBatchSize int
	MaxQueueSize int

	// SetGlobal installs the provider as the otel global tracer provider.
	SetGlobal bool

	ResourceAttributes map[string]string
}

func (c TracingConfig) withDefaults() TracingConfig {
	if c.ServiceName == "" {
		c.ServiceName = "mcp-server"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "unknown"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = 5 * time.Second
	}
	if c.MaxBatchSize == 0 {
		c.MaxBatchSize = 512
	}
	if c.MaxQueueSize == 0 {
		c.MaxQueueSize = 2048
	}
	return c
}

// TracingProvider opens one span per MCP message and continues traces the
// peer propagated through "_meta".
type TracingProvider struct {
	service    string
	provider   *sdktrace.TracerProvider
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator

	mu       sync.Mutex
	shutdown func(context.Context) error
}

// NewTracingProvider builds the exporter, sampler and resource described
// by config.
func NewTracingProvider(config TracingConfig) (*TracingProvider, error) {
	config = config.withDefaults()

	exporter := config.Exporter
	if exporter == nil {
		var err error
		if exporter, err = newExporter(context.Background(), config); err != nil {
			return nil, fmt.Errorf("failed to create exporter: %w", err)
		}
	}

	attrs := []attribute.KeyValue{
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
		semconv.DeploymentEnvironment(config.Environment),
	}
	for k, v := range config.ResourceAttributes {
		attrs = append(attrs, attribute.String(k, v))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(config.BatchTimeout),
			sdktrace.WithMaxExportBatchSize(config.MaxBatchSize),
			sdktrace.WithMaxQueueSize(config.MaxQueueSize),
		),
		sdktrace.WithResource(resource.NewWithAttributes(semconv.SchemaURL, attrs...)),
		sdktrace.WithSampler(newSampler(config)),
	)

	propagator := propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	if config.SetGlobal {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagator)
	}

	return &TracingProvider{
		service:    config.ServiceName,
		provider:   tp,
		tracer:     tp.Tracer(instrumentationName),
		propagator: propagator,
		shutdown:   tp.Shutdown,
	}, nil
}

func newExporter(ctx context.Context, config TracingConfig) (sdktrace.SpanExporter, error) {
	var client otlptrace.Client
	switch config.ExporterType {
	case ExporterTypeNoop, "":
		return tracetest.NewNoopExporter(), nil
	case ExporterTypeOTLPGRPC:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(config.Endpoint),
			otlptracegrpc.WithHeaders(config.Headers),
		}
		if config.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		client = otlptracegrpc.NewClient(opts...)
	case ExporterTypeOTLPHTTP:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpoint(config.Endpoint),
			otlptracehttp.WithHeaders(config.Headers),
		}
		if config.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		client = otlptracehttp.NewClient(opts...)
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", config.ExporterType)
	}
	return otlptrace.New(ctx, client)
}

func ratioSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

func newSampler(config TracingConfig) sdktrace.Sampler {
	fallback := ratioSampler(config.SampleRate)
	if len(config.AlwaysSample) == 0 && len(config.NeverSample) == 0 {
		return fallback
	}

	s := &methodSampler{fallback: fallback, rules: make(map[string]bool)}
	for _, m := range config.NeverSample {
		s.rules[m] = false
	}
	// AlwaysSample wins when a method is listed twice.
	for _, m := range config.AlwaysSample {
		s.rules[m] = true
	}
	return s
}

// methodSampler decides by the mcp.method span attribute first and falls
// back to the configured ratio.
type methodSampler struct {
	rules    map[string]bool
	fallback sdktrace.Sampler
}

func (s *methodSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	for _, attr := range p.Attributes {
		if attr.Key != AttrMethod {
			continue
		}
		keep, ok := s.rules[attr.Value.AsString()]
		if !ok {
			break
		}
		decision := sdktrace.Drop
		if keep {
			decision = sdktrace.RecordAndSample
		}
		return sdktrace.SamplingResult{
			Decision:   decision,
			Tracestate: trace.SpanContextFromContext(p.ParentContext).TraceState(),
		}
	}
	return s.fallback.ShouldSample(p)
}

func (s *methodSampler) Description() string {
	return fmt.Sprintf("MCPMethodSampler{rules=%d,fallback=%s}", len(s.rules), s.fallback.Description())
}

// StartMethodSpan starts a span named "mcp.<method>".
func (tp *TracingProvider) StartMethodSpan(ctx context.Context, method string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append([]attribute.KeyValue{AttrMethod.String(method), AttrService.String(tp.service)}, attrs...)
	return tp.tracer.Start(ctx, "mcp."+method,
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...),
	)
}

// Annotate adds attributes to the span in ctx, if it is recording.
func (tp *TracingProvider) Annotate(ctx context.Context, attrs ...attribute.KeyValue) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(attrs...)
	}
}

// RecordError records err on the span in ctx and marks it failed.
func (tp *TracingProvider) RecordError(ctx context.Context, err error) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// ExtractMeta continues a trace whose context the peer placed in "_meta"
// ("traceparent", "tracestate", "baggage").
func (tp *TracingProvider) ExtractMeta(ctx context.Context, meta protocol.Meta) context.Context {
	if len(meta) == 0 {
		return ctx
	}
	carrier := propagation.MapCarrier{}
	for k, v := range meta {
		if s, ok := v.(string); ok {
			carrier[k] = s
		}
	}
	return tp.propagator.Extract(ctx, carrier)
}

// ForceFlush exports all ended spans that have not been exported yet.
func (tp *TracingProvider) ForceFlush(ctx context.Context) error {
	return tp.provider.ForceFlush(ctx)
}

// Shutdown flushes and stops the tracer provider. Later calls are no-ops.
func (tp *TracingProvider) Shutdown(ctx context.Context) error {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	if tp.shutdown == nil {
		return nil
	}
	err := tp.shutdown(ctx)
	tp.shutdown = nil
	return err
}
