package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	mcperrors "github.com/ajitpratap0/mcp-server-core/pkg/errors"
	"github.com/ajitpratap0/mcp-server-core/pkg/protocol"
	"github.com/ajitpratap0/mcp-server-core/pkg/transport"
)

// ObservabilityConfig configures the observability middleware
type ObservabilityConfig struct {
	// Tracing configuration
	EnableTracing bool
	TracingConfig TracingConfig

	// Metrics configuration
	EnableMetrics bool
	MetricsConfig MetricsConfig

	// Feature flags
	CaptureRequestPayload  bool // Capture request payloads in spans
	CaptureResponsePayload bool // Capture response payloads in spans
	RecordPanics           bool // Record panics as span events
}

// ObservabilityMiddleware records a span and metrics for every message
// crossing the wrapped transport.
type ObservabilityMiddleware struct {
	config  ObservabilityConfig
	tracer  *TracingProvider
	metrics MetricsProvider
}

// NewObservabilityMiddleware builds the providers enabled in config.
func NewObservabilityMiddleware(config ObservabilityConfig) (*ObservabilityMiddleware, error) {
	m := &ObservabilityMiddleware{config: config}

	if config.EnableTracing {
		t, err := NewTracingProvider(config.TracingConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create tracing provider: %w", err)
		}
		m.tracer = t
	}

	if config.EnableMetrics {
		p, err := NewMetricsProvider(config.MetricsConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics provider: %w", err)
		}
		m.metrics = p
	}

	return m, nil
}

// NewMiddlewareWithProviders instruments with existing providers; either may
// be nil. Enable flags in config are derived from the providers.
func NewMiddlewareWithProviders(tracer *TracingProvider, metrics MetricsProvider, config ObservabilityConfig) *ObservabilityMiddleware {
	config.EnableTracing = tracer != nil
	config.EnableMetrics = metrics != nil
	return &ObservabilityMiddleware{config: config, tracer: tracer, metrics: metrics}
}

// Tracer returns the tracing provider, nil when tracing is disabled.
func (m *ObservabilityMiddleware) Tracer() *TracingProvider { return m.tracer }

// Metrics returns the metrics provider, nil when metrics are disabled.
func (m *ObservabilityMiddleware) Metrics() MetricsProvider { return m.metrics }

// Wrap implements transport.Middleware
func (m *ObservabilityMiddleware) Wrap(next transport.Transport) transport.Transport {
	return &observabilityTransport{
		Delegate:   transport.Delegate{Next: next},
		middleware: m,
	}
}

func (m *ObservabilityMiddleware) tracing() bool {
	return m.config.EnableTracing && m.tracer != nil
}

func (m *ObservabilityMiddleware) recording() bool {
	return m.config.EnableMetrics && m.metrics != nil
}

type observabilityTransport struct {
	transport.Delegate
	middleware *ObservabilityMiddleware
}

func (ot *observabilityTransport) startSpan(ctx context.Context, method string, kind trace.SpanKind, params interface{}, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := ot.middleware.tracer.StartMethodSpan(ctx, method, kind)
	span.SetAttributes(
		attribute.String("rpc.method", method),
		attribute.String("rpc.system", "mcp"),
	)
	span.SetAttributes(attrs...)

	if ot.middleware.config.CaptureRequestPayload && params != nil {
		if payload, err := json.Marshal(params); err == nil {
			span.SetAttributes(attribute.String("rpc.request.payload", string(payload)))
		}
	}
	return ctx, span
}

func (ot *observabilityTransport) recordPanic(span trace.Span) {
	if !ot.middleware.config.RecordPanics {
		return
	}
	if r := recover(); r != nil {
		span.RecordError(fmt.Errorf("panic: %v", r))
		span.SetStatus(codes.Error, "panic occurred")
		span.End()
		panic(r)
	}
}

func endSpan(span trace.Span, duration time.Duration, err error) {
	span.SetAttributes(attribute.Float64("rpc.duration_ms", milliseconds(duration)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if mcpErr, ok := mcperrors.AsMCPError(err); ok {
			span.SetAttributes(attribute.Int("rpc.error.code", mcpErr.Code()))
		}
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

func statusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// SendRequest sends a request with full observability
func (ot *observabilityTransport) SendRequest(ctx context.Context, method string, params interface{}) (interface{}, error) {
	var span trace.Span
	if ot.middleware.tracing() {
		ctx, span = ot.startSpan(ctx, method, trace.SpanKindClient, params)
		defer ot.recordPanic(span)
	}

	start := time.Now()
	result, err := ot.Next.SendRequest(ctx, method, params)
	duration := time.Since(start)

	if ot.middleware.recording() {
		ot.middleware.metrics.RecordRequest(ctx, method, statusOf(err), duration)
		if err != nil {
			ot.middleware.metrics.RecordError(ctx, ErrorType(err), method)
		}
	}

	if span != nil {
		if err == nil && ot.middleware.config.CaptureResponsePayload && result != nil {
			if payload, mErr := json.Marshal(result); mErr == nil {
				span.SetAttributes(attribute.String("rpc.response.payload", string(payload)))
			}
		}
		endSpan(span, duration, err)
	}

	return result, err
}

// SendNotification sends a notification with observability
func (ot *observabilityTransport) SendNotification(ctx context.Context, method string, params interface{}) error {
	var span trace.Span
	if ot.middleware.tracing() {
		ctx, span = ot.startSpan(ctx, method, trace.SpanKindProducer, params, attribute.Bool("rpc.notification", true))
		defer ot.recordPanic(span)
	}

	start := time.Now()
	err := ot.Next.SendNotification(ctx, method, params)
	duration := time.Since(start)

	if ot.middleware.recording() {
		ot.middleware.metrics.RecordNotification(ctx, method, statusOf(err), duration)
	}
	if span != nil {
		endSpan(span, duration, err)
	}
	return err
}

// HandleRequest handles an incoming request with observability. A trace
// context the peer put in "_meta" becomes the parent span.
func (ot *observabilityTransport) HandleRequest(ctx context.Context, request *protocol.Request) (*protocol.Response, error) {
	var span trace.Span
	if ot.middleware.tracing() {
		ctx = ot.middleware.tracer.ExtractMeta(ctx, metaOf(request.Params))

		var attrs []attribute.KeyValue
		if request.ID != nil {
			attrs = append(attrs, attribute.String("rpc.request.id", fmt.Sprintf("%v", request.ID)))
		}
		ctx, span = ot.startSpan(ctx, request.Method, trace.SpanKindServer, nil, attrs...)
		defer ot.recordPanic(span)
	}

	start := time.Now()
	response, err := ot.Next.HandleRequest(ctx, request)
	duration := time.Since(start)

	// Handler failures arrive as error responses, not Go errors.
	effective := err
	if effective == nil && response != nil && response.Error != nil {
		effective = mcperrors.FromJSONRPCError(response.Error)
	}

	if ot.middleware.recording() {
		ot.middleware.metrics.RecordIncomingRequest(ctx, request.Method, statusOf(effective), duration)
		if effective != nil {
			ot.middleware.metrics.RecordError(ctx, ErrorType(effective), request.Method)
		}
	}
	if span != nil {
		endSpan(span, duration, effective)
	}

	return response, err
}

// HandleNotification handles an incoming notification with observability
func (ot *observabilityTransport) HandleNotification(ctx context.Context, notification *protocol.Notification) error {
	var span trace.Span
	if ot.middleware.tracing() {
		ctx = ot.middleware.tracer.ExtractMeta(ctx, metaOf(notification.Params))
		ctx, span = ot.startSpan(ctx, notification.Method, trace.SpanKindConsumer, nil, attribute.Bool("rpc.notification", true))
		defer ot.recordPanic(span)
	}

	start := time.Now()
	err := ot.Next.HandleNotification(ctx, notification)
	duration := time.Since(start)

	if ot.middleware.recording() {
		ot.middleware.metrics.RecordIncomingNotification(ctx, notification.Method, statusOf(err), duration)
	}
	if span != nil {
		endSpan(span, duration, err)
	}
	return err
}

// Start starts the transport and the metrics endpoint.
func (ot *observabilityTransport) Start(ctx context.Context) error {
	if ot.middleware.recording() {
		if err := ot.middleware.metrics.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics: %w", err)
		}
	}
	return ot.Next.Start(ctx)
}

// Stop stops the transport and shuts the providers down.
func (ot *observabilityTransport) Stop(ctx context.Context) error {
	err := ot.Next.Stop(ctx)

	if ot.middleware.tracer != nil {
		if shutdownErr := ot.middleware.tracer.Shutdown(ctx); shutdownErr != nil && err == nil {
			err = shutdownErr
		}
	}
	if ot.middleware.metrics != nil {
		if shutdownErr := ot.middleware.metrics.Shutdown(ctx); shutdownErr != nil && err == nil {
			err = shutdownErr
		}
	}
	return err
}

func metaOf(params json.RawMessage) protocol.Meta {
	if len(params) == 0 || params[0] != '{' {
		return nil
	}
	var envelope struct {
		Meta protocol.Meta `json:"_meta"`
	}
	if json.Unmarshal(params, &envelope) != nil {
		return nil
	}
	return envelope.Meta
}

// ErrorType buckets an error for the error_total metric.
func ErrorType(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, transport.ErrTransportClosed):
		return "connection"
	}

	mcpErr, ok := mcperrors.AsMCPError(err)
	if !ok {
		return "unknown"
	}
	switch mcpErr.Code() {
	case mcperrors.CodeParseError:
		return "parse_error"
	case mcperrors.CodeInvalidRequest:
		return "invalid_request"
	case mcperrors.CodeMethodNotFound:
		return "method_not_found"
	case mcperrors.CodeInvalidParams:
		return "invalid_params"
	case mcperrors.CodeInternalError:
		return "internal_error"
	case mcperrors.CodeCapabilityRequired:
		return "capability_required"
	case mcperrors.CodeRequestTimeout:
		return "timeout"
	case mcperrors.CodeRequestCancelled:
		return "cancelled"
	default:
		return string(mcpErr.Category())
	}
}
