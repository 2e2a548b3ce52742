package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/ajitpratap0/mcp-server-core/pkg/logging"
	"github.com/ajitpratap0/mcp-server-core/pkg/observability"
	"github.com/ajitpratap0/mcp-server-core/pkg/server"
)

// Observability builds the providers enabled in c. The middleware is nil
// when both metrics and tracing are disabled.
func (c *Config) Observability() (*observability.ObservabilityMiddleware, error) {
	if !c.Metrics.Enabled && !c.Tracing.Enabled {
		return nil, nil
	}

	return observability.NewObservabilityMiddleware(observability.ObservabilityConfig{
		EnableMetrics: c.Metrics.Enabled,
		MetricsConfig: observability.MetricsConfig{
			ServiceName:    c.Server.Name,
			ServiceVersion: c.Server.Version,
			Namespace:      c.Metrics.Namespace,
			ListenAddr:     c.Metrics.ListenAddr,
		},
		EnableTracing: c.Tracing.Enabled,
		TracingConfig: observability.TracingConfig{
			ServiceName:    c.Server.Name,
			ServiceVersion: c.Server.Version,
			ExporterType:   observability.ExporterType(c.Tracing.Exporter),
			Endpoint:       c.Tracing.Endpoint,
			Insecure:       c.Tracing.Insecure,
			SampleRate:     c.Tracing.SampleRate,
		},
		RecordPanics: true,
	})
}

// Options turns c into server options. Handlers are instrumented by the
// server itself; outbound traffic goes through the observability
// middleware. The returned shutdown stops the metrics listener and flushes
// pending spans.
func (c *Config) Options(ctx context.Context, logger logging.Logger) ([]server.Option, func(context.Context) error, error) {
	opts := []server.Option{
		server.WithName(c.Server.Name),
		server.WithVersion(c.Server.Version),
	}
	if c.Server.Instructions != "" {
		opts = append(opts, server.WithInstructions(c.Server.Instructions))
	}
	if logger != nil {
		opts = append(opts, server.WithLogger(logger.WithFields(logging.String("component", "mcp-server"))))
	}

	noop := func(context.Context) error { return nil }

	mw, err := c.Observability()
	if err != nil {
		return nil, nil, fmt.Errorf("configuring observability: %w", err)
	}
	if mw == nil {
		return opts, noop, nil
	}

	opts = append(opts, server.WithTransportMiddleware(mw))

	var shutdowns []func(context.Context) error
	if metrics := mw.Metrics(); metrics != nil {
		if err := metrics.Start(ctx); err != nil {
			return nil, nil, fmt.Errorf("starting metrics: %w", err)
		}
		opts = append(opts, server.WithMetrics(metrics))
		shutdowns = append(shutdowns, metrics.Shutdown)
	}
	if tracer := mw.Tracer(); tracer != nil {
		opts = append(opts, server.WithTracing(tracer))
		shutdowns = append(shutdowns, tracer.Shutdown)
	}

	shutdown := func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdowns {
			errs = append(errs, fn(ctx))
		}
		return errors.Join(errs...)
	}
	return opts, shutdown, nil
}
