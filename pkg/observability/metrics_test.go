package observability

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *PrometheusMetricsProvider {
	t.Helper()
	p, err := NewMetricsProvider(MetricsConfig{ServiceName: "test", ServiceVersion: "1.0.0"})
	require.NoError(t, err)
	return p
}

func TestNewMetricsProviderIsolatedRegistries(t *testing.T) {
	// Two providers in one process must not collide.
	a := newTestMetrics(t)
	b := newTestMetrics(t)

	a.RecordToolCall(context.Background(), "echo", StatusSuccess, time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(a.toolCalls.total.WithLabelValues("echo", StatusSuccess)))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.toolCalls.total.WithLabelValues("echo", StatusSuccess)))
}

func TestRecordOperations(t *testing.T) {
	p := newTestMetrics(t)
	ctx := context.Background()

	p.RecordToolCall(ctx, "echo", StatusSuccess, 2*time.Millisecond)
	p.RecordToolCall(ctx, "echo", StatusToolError, time.Millisecond)
	p.RecordResourceOperation(ctx, OperationRead, "readme", StatusSuccess, time.Millisecond)
	p.RecordPromptExecution(ctx, "greet", StatusError, time.Millisecond)
	p.RecordIncomingRequest(ctx, "tools/call", StatusSuccess, time.Millisecond)
	p.RecordIncomingNotification(ctx, "notifications/initialized", StatusSuccess, 0)
	p.RecordRequest(ctx, "roots/list", StatusError, time.Millisecond)
	p.RecordNotification(ctx, "notifications/message", StatusSuccess, 0)
	p.RecordError(ctx, "invalid_params", "tools/call")
	p.RecordActiveSessions(ctx, 1)
	p.RecordActiveSessions(ctx, 1)
	p.RecordActiveSessions(ctx, -1)

	assert.Equal(t, float64(1), testutil.ToFloat64(p.toolCalls.total.WithLabelValues("echo", StatusToolError)))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.resourceOperations.total.WithLabelValues(OperationRead, "readme", StatusSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.promptExecutions.total.WithLabelValues("greet", StatusError)))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.incomingRequests.total.WithLabelValues("tools/call", StatusSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.incomingNotifications.total.WithLabelValues("notifications/initialized", StatusSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.requests.total.WithLabelValues("roots/list", StatusError)))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.notifications.total.WithLabelValues("notifications/message", StatusSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.errorTotal.WithLabelValues("invalid_params", "tools/call")))
	assert.Equal(t, float64(1), testutil.ToFloat64(p.activeSessions))

	count, err := testutil.GatherAndCount(p.Registry(), "mcp_tool_call_duration_milliseconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestMetricsHandler(t *testing.T) {
	p := newTestMetrics(t)
	p.RecordToolCall(context.Background(), "echo", StatusSuccess, time.Millisecond)

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, "mcp_tool_call_total")
	assert.True(t, strings.Contains(body, `service="test"`))
}

func TestMetricsStartWithoutListenAddr(t *testing.T) {
	p := newTestMetrics(t)
	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestMetricsIncludeRuntime(t *testing.T) {
	p, err := NewMetricsProvider(MetricsConfig{Namespace: "custom", IncludeRuntime: true})
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(p.Registry(), "go_goroutines")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
