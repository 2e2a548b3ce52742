// Package config loads server settings from the environment and turns them
// into a logger and server options.
//
// Every field has a default, so an empty environment yields a working text
// logger on stdout with metrics and tracing disabled:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	logger, closeLog, err := config.NewLogger(cfg.Log)
//	...
//	opts, shutdown, err := cfg.Options(ctx, logger)
//	srv := server.NewMCPServer(opts...)
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joeshaw/envdecode"

	"github.com/ajitpratap0/mcp-server-core/pkg/logging"
	"github.com/ajitpratap0/mcp-server-core/pkg/observability"
)

// Config is the complete server configuration.
type Config struct {
	Server  ServerConfig
	Log     LogConfig
	Metrics MetricsConfig
	Tracing TracingConfig
}

// ServerConfig identifies the server to clients.
type ServerConfig struct {
	Name         string `env:"MCP_SERVER_NAME,default=go-mcp-server"`
	Version      string `env:"MCP_SERVER_VERSION,default=1.0.0"`
	Instructions string `env:"MCP_SERVER_INSTRUCTIONS"`
}

// LogConfig controls the local log. File enables rotation; an empty File
// logs to stdout.
type LogConfig struct {
	Level      string `env:"MCP_LOG_LEVEL,default=info"`
	Format     string `env:"MCP_LOG_FORMAT,default=text"` // text or json
	File       string `env:"MCP_LOG_FILE"`
	MaxSizeMB  int    `env:"MCP_LOG_MAX_SIZE_MB,default=100"`
	MaxBackups int    `env:"MCP_LOG_MAX_BACKUPS,default=3"`
	MaxAgeDays int    `env:"MCP_LOG_MAX_AGE_DAYS,default=28"`
	Compress   bool   `env:"MCP_LOG_COMPRESS,default=true"`
}

// MetricsConfig enables Prometheus metrics. ListenAddr, when set, serves
// them over HTTP.
type MetricsConfig struct {
	Enabled    bool   `env:"MCP_METRICS_ENABLED,default=false"`
	Namespace  string `env:"MCP_METRICS_NAMESPACE,default=mcp"`
	ListenAddr string `env:"MCP_METRICS_ADDR"`
}

// TracingConfig enables OpenTelemetry tracing.
type TracingConfig struct {
	Enabled    bool    `env:"MCP_TRACING_ENABLED,default=false"`
	Exporter   string  `env:"MCP_TRACING_EXPORTER,default=noop"`
	Endpoint   string  `env:"MCP_TRACING_ENDPOINT"`
	Insecure   bool    `env:"MCP_TRACING_INSECURE,default=false"`
	SampleRate float64 `env:"MCP_TRACING_SAMPLE_RATE,default=1"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decoding environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Server.Name) == "" {
		errs = append(errs, errors.New("MCP_SERVER_NAME must not be empty"))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("MCP_LOG_LEVEL: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("MCP_LOG_FORMAT: unknown format %q", c.Log.Format))
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		errs = append(errs, errors.New("log rotation limits must not be negative"))
	}

	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		errs = append(errs, errors.New("MCP_METRICS_NAMESPACE must not be empty when metrics are enabled"))
	}

	if c.Tracing.Enabled {
		switch observability.ExporterType(c.Tracing.Exporter) {
		case observability.ExporterTypeNoop:
		case observability.ExporterTypeOTLPGRPC, observability.ExporterTypeOTLPHTTP:
			if c.Tracing.Endpoint == "" {
				errs = append(errs, fmt.Errorf("MCP_TRACING_ENDPOINT is required for the %s exporter", c.Tracing.Exporter))
			}
		default:
			errs = append(errs, fmt.Errorf("MCP_TRACING_EXPORTER: unknown exporter %q", c.Tracing.Exporter))
		}
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("MCP_TRACING_SAMPLE_RATE must be within [0, 1], got %v", c.Tracing.SampleRate))
	}

	return errors.Join(errs...)
}
