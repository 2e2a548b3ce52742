package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/mcp-server-core/pkg/logging"
	"github.com/ajitpratap0/mcp-server-core/pkg/server"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ServerConfig{Name: "go-mcp-server", Version: "1.0.0"}, cfg.Server)
	assert.Equal(t, LogConfig{
		Level:      "info",
		Format:     "text",
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
		Compress:   true,
	}, cfg.Log)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "mcp", cfg.Metrics.Namespace)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Equal(t, "noop", cfg.Tracing.Exporter)
	assert.Equal(t, 1.0, cfg.Tracing.SampleRate)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("MCP_SERVER_NAME", "weather")
	t.Setenv("MCP_SERVER_VERSION", "2.1.0")
	t.Setenv("MCP_SERVER_INSTRUCTIONS", "Ask about the weather.")
	t.Setenv("MCP_LOG_LEVEL", "debug")
	t.Setenv("MCP_LOG_FORMAT", "json")
	t.Setenv("MCP_LOG_COMPRESS", "false")
	t.Setenv("MCP_METRICS_ENABLED", "true")
	t.Setenv("MCP_METRICS_NAMESPACE", "weather")
	t.Setenv("MCP_TRACING_ENABLED", "true")
	t.Setenv("MCP_TRACING_EXPORTER", "otlp-http")
	t.Setenv("MCP_TRACING_ENDPOINT", "localhost:4318")
	t.Setenv("MCP_TRACING_INSECURE", "true")
	t.Setenv("MCP_TRACING_SAMPLE_RATE", "0.25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ServerConfig{Name: "weather", Version: "2.1.0", Instructions: "Ask about the weather."}, cfg.Server)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.False(t, cfg.Log.Compress)
	assert.Equal(t, MetricsConfig{Enabled: true, Namespace: "weather"}, cfg.Metrics)
	assert.Equal(t, TracingConfig{
		Enabled:    true,
		Exporter:   "otlp-http",
		Endpoint:   "localhost:4318",
		Insecure:   true,
		SampleRate: 0.25,
	}, cfg.Tracing)
}

func TestLoadInvalid(t *testing.T) {
	t.Setenv("MCP_LOG_LEVEL", "loud")
	t.Setenv("MCP_LOG_FORMAT", "xml")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MCP_LOG_LEVEL")
	assert.Contains(t, err.Error(), "MCP_LOG_FORMAT")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:  ServerConfig{Name: "srv", Version: "1"},
			Log:     LogConfig{Level: "info", Format: "text"},
			Metrics: MetricsConfig{Namespace: "mcp"},
			Tracing: TracingConfig{Exporter: "noop", SampleRate: 1},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "empty name", mutate: func(c *Config) { c.Server.Name = " " }, errMsg: "MCP_SERVER_NAME"},
		{name: "negative rotation", mutate: func(c *Config) { c.Log.MaxBackups = -1 }, errMsg: "rotation"},
		{name: "metrics without namespace", mutate: func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Namespace = ""
		}, errMsg: "MCP_METRICS_NAMESPACE"},
		{name: "unknown exporter", mutate: func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "zipkin"
		}, errMsg: "MCP_TRACING_EXPORTER"},
		{name: "otlp without endpoint", mutate: func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "otlp-grpc"
		}, errMsg: "MCP_TRACING_ENDPOINT"},
		{name: "unknown exporter ignored when disabled", mutate: func(c *Config) { c.Tracing.Exporter = "zipkin" }},
		{name: "sample rate out of range", mutate: func(c *Config) { c.Tracing.SampleRate = 1.5 }, errMsg: "MCP_TRACING_SAMPLE_RATE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestNewLoggerStdout(t *testing.T) {
	var buf bytes.Buffer
	logger, closeLog, err := newLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	defer closeLog()

	assert.Equal(t, logging.WarnLevel, logger.GetLevel())
	logger.Info("hidden")
	logger.Warn("shown", logging.String("key", "value"))

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"shown"`)
	assert.Contains(t, buf.String(), `"key":"value"`)
}

func TestNewLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")
	logger, closeLog, err := NewLogger(LogConfig{Level: "info", Format: "text", File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	logger.Info("written to file")
	require.NoError(t, closeLog())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestNewLoggerInvalid(t *testing.T) {
	_, _, err := NewLogger(LogConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)

	_, _, err = NewLogger(LogConfig{Level: "chatty"})
	assert.Error(t, err)
}

func TestOptionsWithoutObservability(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Name: "plain", Version: "0.1.0", Instructions: "Be nice."}}

	opts, shutdown, err := cfg.Options(context.Background(), logging.Nop())
	require.NoError(t, err)
	defer shutdown(context.Background())

	srv := server.New(opts...)
	assert.Equal(t, "plain", srv.ServerInfo().Name)
	assert.Equal(t, "0.1.0", srv.ServerInfo().Version)

	mw, err := cfg.Observability()
	require.NoError(t, err)
	assert.Nil(t, mw)
}

func TestOptionsWithObservability(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{Name: "observed", Version: "1.0.0"},
		Metrics: MetricsConfig{Enabled: true, Namespace: "mcp"},
		Tracing: TracingConfig{Enabled: true, Exporter: "noop", SampleRate: 1},
	}

	mw, err := cfg.Observability()
	require.NoError(t, err)
	require.NotNil(t, mw)
	assert.NotNil(t, mw.Metrics())
	assert.NotNil(t, mw.Tracer())

	opts, shutdown, err := cfg.Options(context.Background(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, opts)

	m := server.NewMCPServer(opts...)
	assert.Equal(t, "observed", m.Server().ServerInfo().Name)
	assert.NoError(t, shutdown(context.Background()))
}
