package server

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/mcp-server-core/pkg/observability"
	"github.com/ajitpratap0/mcp-server-core/pkg/protocol"
	"github.com/ajitpratap0/mcp-server-core/pkg/transport"
	"github.com/ajitpratap0/mcp-server-core/pkg/utils"
)

func failingTool(ctx context.Context, args map[string]any, extra transport.RequestExtra) (*protocol.CallToolResult, error) {
	return nil, errors.New("nope")
}

func TestMetrics(t *testing.T) {
	metrics, err := observability.NewMetricsProvider(observability.MetricsConfig{})
	require.NoError(t, err)

	m := newTestServer(WithMetrics(metrics))
	require.NoError(t, m.RegisterTool(ToolDefinition{Name: "echo", InputSchema: echoShape}, echoTool))
	require.NoError(t, m.RegisterTool(ToolDefinition{Name: "fail"}, failingTool))
	require.NoError(t, m.RegisterResource("readme", "file:///readme", ResourceMetadata{}, textResource("hi")))
	require.NoError(t, m.RegisterPrompt(PromptDefinition{Name: "review"}, reviewPrompt))
	cli := connect(t, m)

	require.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(`
# HELP mcp_active_sessions Number of connected sessions
# TYPE mcp_active_sessions gauge
mcp_active_sessions 1
`), "mcp_active_sessions"))

	call(t, cli, protocol.MethodCallTool, &protocol.CallToolParams{Name: "echo", Arguments: json.RawMessage(`{"text":"hi"}`)}, nil)
	call(t, cli, protocol.MethodCallTool, &protocol.CallToolParams{Name: "fail"}, nil)
	callErr(t, cli, protocol.MethodCallTool, &protocol.CallToolParams{Name: "missing"})
	call(t, cli, protocol.MethodReadResource, &protocol.ReadResourceParams{URI: "file:///readme"}, nil)
	call(t, cli, protocol.MethodListResources, nil, nil)
	call(t, cli, protocol.MethodGetPrompt, &protocol.GetPromptParams{Name: "review"}, nil)

	require.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(`
# HELP mcp_tool_call_total Total number of tool calls
# TYPE mcp_tool_call_total counter
mcp_tool_call_total{status="success",tool="echo"} 1
mcp_tool_call_total{status="tool_error",tool="fail"} 1
`), "mcp_tool_call_total"))

	require.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(`
# HELP mcp_resource_operation_total Total number of resource operations
# TYPE mcp_resource_operation_total counter
mcp_resource_operation_total{operation="list",resource="",status="success"} 1
mcp_resource_operation_total{operation="read",resource="readme",status="success"} 1
`), "mcp_resource_operation_total"))

	count, err := testutil.GatherAndCount(metrics.Registry(), "mcp_prompt_execution_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The unknown tool is the only protocol-level failure.
	count, err = testutil.GatherAndCount(metrics.Registry(), "mcp_error_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, m.Close(context.Background()))
	require.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(`
# HELP mcp_active_sessions Number of connected sessions
# TYPE mcp_active_sessions gauge
mcp_active_sessions 0
`), "mcp_active_sessions"))
}

func TestTracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := observability.NewTracingProvider(observability.TracingConfig{
		ServiceName: "tracing-test",
		Exporter:    exporter,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracer.Shutdown(context.Background()) })

	m := newTestServer(WithTracing(tracer))
	require.NoError(t, m.RegisterTool(ToolDefinition{Name: "echo", InputSchema: echoShape}, echoTool))
	cli := connect(t, m)

	call(t, cli, protocol.MethodCallTool, &protocol.CallToolParams{Name: "echo", Arguments: json.RawMessage(`{"text":"hi"}`)}, nil)
	callErr(t, cli, protocol.MethodCallTool, &protocol.CallToolParams{Name: "missing"})

	require.NoError(t, tracer.ForceFlush(context.Background()))
	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	for _, span := range spans {
		assert.Equal(t, "mcp.tools/call", span.Name)
		assert.Equal(t, trace.SpanKindServer, span.SpanKind)
	}
	assert.Contains(t, spans[0].Attributes, attribute.String("mcp.tool.name", "echo"))
	assert.Contains(t, spans[0].Attributes, attribute.Bool("mcp.tool.is_error", false))
	assert.NotEqual(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
}

func TestConnectCloseDoesNotLeak(t *testing.T) {
	utils.CheckGoroutines(t)

	for i := 0; i < 5; i++ {
		m := newTestServer()
		require.NoError(t, m.RegisterTool(ToolDefinition{Name: "echo", InputSchema: echoShape}, echoTool))
		require.NoError(t, m.RegisterResourceTemplate("user",
			MustResourceTemplate("users://{id}", func(ctx context.Context, extra transport.RequestExtra) ([]protocol.Resource, error) {
				return []protocol.Resource{{URI: "users://1", Name: "one"}}, nil
			}),
			ResourceMetadata{}, templateResource("")))

		srvEnd, cliEnd := transport.NewLoopback()
		require.NoError(t, m.Connect(context.Background(), srvEnd))
		handshake(t, cliEnd, protocol.Capabilities{})
		call(t, cliEnd, protocol.MethodCallTool, &protocol.CallToolParams{Name: "echo", Arguments: json.RawMessage(`{"text":"hi"}`)}, nil)
		call(t, cliEnd, protocol.MethodListResources, nil, nil)

		require.NoError(t, m.Close(context.Background()))
		_ = cliEnd.Stop(context.Background())
	}
}
