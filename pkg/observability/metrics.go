package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	// StatusToolError marks a tool call answered with an isError result.
	StatusToolError = "tool_error"
)

// Resource operation label values.
const (
	OperationList          = "list"
	OperationListTemplates = "list_templates"
	OperationRead          = "read"
)

// MetricsConfig configures a PrometheusMetricsProvider. ServiceName,
// ServiceVersion and Environment become constant labels.
type MetricsConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	// ListenAddr serves MetricsPath when non-empty, e.g. ":9090".
	ListenAddr  string
	MetricsPath string // default: /metrics

	Namespace string // default: mcp
	Subsystem string
	// HistogramBuckets are in milliseconds.
	HistogramBuckets []float64

	// Process and Go runtime collectors are added to the registry.
	IncludeRuntime bool

	ConstLabels prometheus.Labels
}

// MetricsProvider records MCP server activity.
type MetricsProvider interface {
	// Outbound messages
	RecordRequest(ctx context.Context, method, status string, duration time.Duration)
	RecordNotification(ctx context.Context, method, status string, duration time.Duration)

	// Inbound messages
	RecordIncomingRequest(ctx context.Context, method, status string, duration time.Duration)
	RecordIncomingNotification(ctx context.Context, method, status string, duration time.Duration)

	// Registry operations
	RecordToolCall(ctx context.Context, tool, status string, duration time.Duration)
	RecordResourceOperation(ctx context.Context, operation, resource, status string, duration time.Duration)
	RecordPromptExecution(ctx context.Context, prompt, status string, duration time.Duration)

	RecordError(ctx context.Context, errorType, method string)
	RecordActiveSessions(ctx context.Context, delta int)

	// Management
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// PrometheusMetricsProvider implements MetricsProvider using Prometheus.
// Each provider owns its registry, so several servers can live in one
// process.
type PrometheusMetricsProvider struct {
	config   MetricsConfig
	registry *prometheus.Registry

	mu     sync.Mutex
	server *http.Server

	requests              timedCounter
	notifications         timedCounter
	incomingRequests      timedCounter
	incomingNotifications timedCounter
	toolCalls             timedCounter
	resourceOperations    timedCounter
	promptExecutions      timedCounter

	errorTotal     *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

// timedCounter is a <name>_total counter paired with a
// <name>_duration_milliseconds histogram over the same labels.
type timedCounter struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func (c timedCounter) observe(d time.Duration, labels ...string) {
	c.duration.WithLabelValues(labels...).Observe(milliseconds(d))
	c.total.WithLabelValues(labels...).Inc()
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// NewMetricsProvider registers every MCP collector in a fresh registry.
func NewMetricsProvider(config MetricsConfig) (*PrometheusMetricsProvider, error) {
	if config.Namespace == "" {
		config.Namespace = "mcp"
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}
	if config.HistogramBuckets == nil {
		config.HistogramBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}
	}

	labels := prometheus.Labels{}
	for k, v := range config.ConstLabels {
		labels[k] = v
	}
	for k, v := range map[string]string{
		"service":     config.ServiceName,
		"version":     config.ServiceVersion,
		"environment": config.Environment,
	} {
		if v != "" {
			labels[k] = v
		}
	}
	config.ConstLabels = labels

	p := &PrometheusMetricsProvider{config: config, registry: prometheus.NewRegistry()}
	var cs []prometheus.Collector
	timed := func(name, what string, labelNames ...string) timedCounter {
		c := timedCounter{
			total: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        name + "_total",
				Help:        "Total number of " + what,
				ConstLabels: config.ConstLabels,
			}, labelNames),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        name + "_duration_milliseconds",
				Help:        "Duration of " + what + " in milliseconds",
				Buckets:     config.HistogramBuckets,
				ConstLabels: config.ConstLabels,
			}, labelNames),
		}
		cs = append(cs, c.total, c.duration)
		return c
	}

	p.requests = timed("request", "outbound MCP requests", "method", "status")
	p.notifications = timed("notification", "outbound MCP notifications", "method", "status")
	p.incomingRequests = timed("incoming_request", "incoming MCP requests", "method", "status")
	p.incomingNotifications = timed("incoming_notification", "incoming MCP notifications", "method", "status")
	p.toolCalls = timed("tool_call", "tool calls", "tool", "status")
	p.resourceOperations = timed("resource_operation", "resource operations", "operation", "resource", "status")
	p.promptExecutions = timed("prompt_execution", "prompt gets", "prompt", "status")

	p.errorTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   config.Namespace,
		Subsystem:   config.Subsystem,
		Name:        "error_total",
		Help:        "Total number of errors",
		ConstLabels: config.ConstLabels,
	}, []string{"type", "method"})
	p.activeSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   config.Namespace,
		Subsystem:   config.Subsystem,
		Name:        "active_sessions",
		Help:        "Number of connected sessions",
		ConstLabels: config.ConstLabels,
	})
	cs = append(cs, p.errorTotal, p.activeSessions)

	if config.IncludeRuntime {
		cs = append(cs,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	for _, c := range cs {
		if err := p.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return p, nil
}

func (p *PrometheusMetricsProvider) RecordRequest(ctx context.Context, method, status string, duration time.Duration) {
	p.requests.observe(duration, method, status)
}

func (p *PrometheusMetricsProvider) RecordNotification(ctx context.Context, method, status string, duration time.Duration) {
	p.notifications.observe(duration, method, status)
}

func (p *PrometheusMetricsProvider) RecordIncomingRequest(ctx context.Context, method, status string, duration time.Duration) {
	p.incomingRequests.observe(duration, method, status)
}

func (p *PrometheusMetricsProvider) RecordIncomingNotification(ctx context.Context, method, status string, duration time.Duration) {
	p.incomingNotifications.observe(duration, method, status)
}

func (p *PrometheusMetricsProvider) RecordToolCall(ctx context.Context, tool, status string, duration time.Duration) {
	p.toolCalls.observe(duration, tool, status)
}

// RecordResourceOperation records a resource operation. resource is the
// registration name, never the raw URI, to keep label cardinality bounded.
func (p *PrometheusMetricsProvider) RecordResourceOperation(ctx context.Context, operation, resource, status string, duration time.Duration) {
	p.resourceOperations.observe(duration, operation, resource, status)
}

func (p *PrometheusMetricsProvider) RecordPromptExecution(ctx context.Context, prompt, status string, duration time.Duration) {
	p.promptExecutions.observe(duration, prompt, status)
}

// RecordError counts an error by type, see ErrorType.
func (p *PrometheusMetricsProvider) RecordError(ctx context.Context, errorType, method string) {
	p.errorTotal.WithLabelValues(errorType, method).Inc()
}

// RecordActiveSessions adjusts the connected session gauge.
func (p *PrometheusMetricsProvider) RecordActiveSessions(ctx context.Context, delta int) {
	p.activeSessions.Add(float64(delta))
}

// Registry returns the registry the provider's collectors live in.
func (p *PrometheusMetricsProvider) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the provider's registry in the Prometheus exposition format.
func (p *PrometheusMetricsProvider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Start serves metrics on ListenAddr. It is a no-op when ListenAddr is empty.
func (p *PrometheusMetricsProvider) Start(ctx context.Context) error {
	if p.config.ListenAddr == "" {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.server != nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(p.config.MetricsPath, p.Handler())
	p.server = &http.Server{
		Addr:              p.config.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv := p.server
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.RecordError(context.Background(), "metrics_server", "")
		}
	}()
	return nil
}

// Shutdown stops the listener started by Start.
func (p *PrometheusMetricsProvider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	srv := p.server
	p.server = nil
	p.mu.Unlock()

	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}
