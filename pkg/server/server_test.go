package server

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcperrors "github.com/ajitpratap0/mcp-server-core/pkg/errors"
	"github.com/ajitpratap0/mcp-server-core/pkg/logging"
	"github.com/ajitpratap0/mcp-server-core/pkg/protocol"
	"github.com/ajitpratap0/mcp-server-core/pkg/transport"
)

const (
	timeout = 2 * time.Second
	tick    = 10 * time.Millisecond
)

func newTestServer(opts ...Option) *MCPServer {
	return NewMCPServer(append([]Option{WithLogger(logging.Nop())}, opts...)...)
}

// connect attaches m to one end of a loopback and returns the client end.
func connect(t *testing.T, m *MCPServer) *transport.Loopback {
	t.Helper()
	srvEnd, cliEnd := transport.NewLoopback()
	require.NoError(t, m.Connect(context.Background(), srvEnd))
	t.Cleanup(func() {
		_ = m.Close(context.Background())
		_ = cliEnd.Stop(context.Background())
	})
	return cliEnd
}

// handshake runs initialize and notifications/initialized from the client end.
func handshake(t *testing.T, cli *transport.Loopback, caps protocol.Capabilities) *protocol.InitializeResult {
	t.Helper()
	var result protocol.InitializeResult
	call(t, cli, protocol.MethodInitialize, &protocol.InitializeParams{
		ProtocolVersion: protocol.LatestProtocolVersion,
		Capabilities:    caps,
		ClientInfo:      protocol.Implementation{Name: "test-client", Version: "0.1.0"},
	}, &result)
	require.NoError(t, cli.SendNotification(context.Background(), protocol.NotificationInitialized, nil))
	return &result
}

func call(t *testing.T, cli *transport.Loopback, method string, params, out interface{}) {
	t.Helper()
	raw, err := cli.SendRequest(context.Background(), method, params)
	require.NoError(t, err)
	if out != nil {
		require.NoError(t, protocol.DecodeParams(raw, out))
	}
}

func callErr(t *testing.T, cli *transport.Loopback, method string, params interface{}) mcperrors.MCPError {
	t.Helper()
	_, err := cli.SendRequest(context.Background(), method, params)
	require.Error(t, err)
	mcpErr, ok := mcperrors.AsMCPError(err)
	require.True(t, ok, "expected MCP error, got %T", err)
	return mcpErr
}

// recorder collects notifications the client end receives.
type recorder struct {
	mu     sync.Mutex
	counts map[string]int
	params map[string][]interface{}
}

func record(cli *transport.Loopback, methods ...string) *recorder {
	r := &recorder{counts: make(map[string]int), params: make(map[string][]interface{})}
	for _, method := range methods {
		method := method
		cli.RegisterNotificationHandler(method, func(ctx context.Context, params interface{}) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.counts[method]++
			r.params[method] = append(r.params[method], params)
			return nil
		})
	}
	return r
}

func (r *recorder) count(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[method]
}

func TestNewServerDefaults(t *testing.T) {
	s := New(WithLogger(logging.Nop()))

	assert.Equal(t, protocol.Implementation{Name: "go-mcp-server", Version: "1.0.0"}, s.ServerInfo())
	assert.Equal(t, protocol.Capabilities{}, s.Capabilities())
	assert.Nil(t, s.ClientCapabilities())
	assert.Nil(t, s.ClientVersion())
	assert.Empty(t, s.NegotiatedProtocolVersion())
	assert.False(t, s.Initialized())
}

func TestInitialize(t *testing.T) {
	var initializedCalls int32
	m := newTestServer(
		WithName("test-server"),
		WithVersion("2.0.0"),
		WithInstructions("call echo"),
		WithOnInitialized(func() { atomic.AddInt32(&initializedCalls, 1) }),
	)
	require.NoError(t, m.RegisterTool(ToolDefinition{Name: "echo"}, echoTool))
	cli := connect(t, m)

	result := handshake(t, cli, protocol.Capabilities{Sampling: &protocol.SamplingCapability{}})

	assert.Equal(t, protocol.LatestProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, protocol.Implementation{Name: "test-server", Version: "2.0.0"}, result.ServerInfo)
	assert.Equal(t, "call echo", result.Instructions)
	require.NotNil(t, result.Capabilities.Tools)
	assert.True(t, result.Capabilities.Tools.ListChanged)
	assert.Nil(t, result.Capabilities.Resources)

	s := m.Server()
	require.NotNil(t, s.ClientCapabilities())
	assert.True(t, s.ClientCapabilities().Has(protocol.CapabilitySampling))
	assert.Equal(t, "test-client", s.ClientVersion().Name)
	assert.True(t, s.Initialized())
	assert.Equal(t, int32(1), atomic.LoadInt32(&initializedCalls))
}

func TestInitializeVersionNegotiation(t *testing.T) {
	tests := []struct {
		requested string
		expected  string
	}{
		{"2025-03-26", "2025-03-26"},
		{"2024-11-05", "2024-11-05"},
		{"2024-10-07", "2024-10-07"},
		{"1999-01-01", protocol.LatestProtocolVersion},
		{"", protocol.LatestProtocolVersion},
	}

	for _, tt := range tests {
		t.Run(tt.requested, func(t *testing.T) {
			m := newTestServer()
			cli := connect(t, m)

			var result protocol.InitializeResult
			call(t, cli, protocol.MethodInitialize, &protocol.InitializeParams{
				ProtocolVersion: tt.requested,
				ClientInfo:      protocol.Implementation{Name: "c", Version: "1"},
			}, &result)

			assert.Equal(t, tt.expected, result.ProtocolVersion)
			assert.Equal(t, tt.expected, m.Server().NegotiatedProtocolVersion())
		})
	}
}

func TestInitializeOverwritesPeer(t *testing.T) {
	m := newTestServer()
	cli := connect(t, m)

	handshake(t, cli, protocol.Capabilities{Roots: &protocol.RootsCapability{}})
	require.True(t, m.Server().ClientCapabilities().Has(protocol.CapabilityRoots))

	call(t, cli, protocol.MethodInitialize, &protocol.InitializeParams{
		ProtocolVersion: "2024-11-05",
		Capabilities:    protocol.Capabilities{Sampling: &protocol.SamplingCapability{}},
		ClientInfo:      protocol.Implementation{Name: "second", Version: "2"},
	}, nil)

	caps := m.Server().ClientCapabilities()
	assert.False(t, caps.Has(protocol.CapabilityRoots))
	assert.True(t, caps.Has(protocol.CapabilitySampling))
	assert.Equal(t, "second", m.Server().ClientVersion().Name)
	assert.Equal(t, "2024-11-05", m.Server().NegotiatedProtocolVersion())
}

func TestInitializeInvalidParams(t *testing.T) {
	m := newTestServer()
	cli := connect(t, m)

	err := callErr(t, cli, protocol.MethodInitialize, []int{1, 2})
	assert.Equal(t, mcperrors.CodeInvalidParams, err.Code())
}

func TestPing(t *testing.T) {
	m := newTestServer()
	cli := connect(t, m)

	var result protocol.EmptyResult
	call(t, cli, protocol.MethodPing, nil, &result)

	// The other direction needs no capability either.
	cli.RegisterRequestHandler(protocol.MethodPing, func(ctx context.Context, params interface{}) (interface{}, error) {
		return &protocol.EmptyResult{}, nil
	})
	assert.NoError(t, m.Server().Ping(context.Background()))
}

func TestConnectTwice(t *testing.T) {
	m := newTestServer()
	connect(t, m)

	other, _ := transport.NewLoopback()
	err := m.Connect(context.Background(), other)
	require.Error(t, err)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeAlreadyConnected))
}

func TestConnectStartFailure(t *testing.T) {
	m := newTestServer()
	srvEnd, _ := transport.NewLoopback()
	require.NoError(t, srvEnd.Stop(context.Background()))

	err := m.Connect(context.Background(), srvEnd)
	require.Error(t, err)
	assert.ErrorIs(t, err, transport.ErrTransportClosed)

	// The failed attempt leaves the server usable.
	fresh, _ := transport.NewLoopback()
	assert.NoError(t, m.Connect(context.Background(), fresh))
}

func TestCloseIsIdempotent(t *testing.T) {
	m := newTestServer()
	cli := connect(t, m)

	require.NoError(t, m.Close(context.Background()))
	require.NoError(t, m.Close(context.Background()))

	_, err := cli.SendRequest(context.Background(), protocol.MethodPing, nil)
	assert.ErrorIs(t, err, transport.ErrTransportClosed)

	err = m.Server().SendProgress(context.Background(), &protocol.ProgressParams{ProgressToken: "t"})
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeNotConnected))
}

func TestRegisterCapabilities(t *testing.T) {
	s := New(
		WithLogger(logging.Nop()),
		WithCapabilities(protocol.Capabilities{Tools: &protocol.ToolsCapability{}}),
	)

	require.NoError(t, s.RegisterCapabilities(protocol.Capabilities{
		Tools:     &protocol.ToolsCapability{ListChanged: true},
		Resources: &protocol.ResourcesCapability{Subscribe: true},
	}))

	caps := s.Capabilities()
	require.NotNil(t, caps.Tools)
	assert.True(t, caps.Tools.ListChanged)
	require.NotNil(t, caps.Resources)
	assert.True(t, caps.Resources.Subscribe)

	// The returned set is a copy.
	caps.Tools.ListChanged = false
	assert.True(t, s.Capabilities().Tools.ListChanged)
}

func TestRegisterCapabilitiesAfterConnect(t *testing.T) {
	m := newTestServer()
	connect(t, m)

	err := m.Server().RegisterCapabilities(protocol.Capabilities{Logging: &protocol.LoggingCapability{}})
	require.Error(t, err)
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeCapabilitiesLocked))
	assert.True(t, mcperrors.IsCategory(err, mcperrors.CategoryConfiguration))
	assert.Nil(t, m.Server().Capabilities().Logging)
}

func TestSetRequestHandlerGuards(t *testing.T) {
	s := New(WithLogger(logging.Nop()))
	noop := func(ctx context.Context, params interface{}) (interface{}, error) { return nil, nil }

	t.Run("capability not declared", func(t *testing.T) {
		for _, method := range []string{
			protocol.MethodCreateMessage,
			protocol.MethodSetLogLevel,
			protocol.MethodGetPrompt,
			protocol.MethodListPrompts,
			protocol.MethodListResources,
			protocol.MethodListResourceTemplates,
			protocol.MethodReadResource,
			protocol.MethodCallTool,
			protocol.MethodListTools,
		} {
			err := s.SetRequestHandler(method, noop)
			require.Error(t, err, method)
			assert.True(t, mcperrors.IsCode(err, mcperrors.CodeCapabilityRequired), method)
			assert.True(t, mcperrors.IsCategory(err, mcperrors.CategoryConfiguration), method)
		}
	})

	t.Run("method already owned", func(t *testing.T) {
		err := s.SetRequestHandler(protocol.MethodPing, noop)
		require.Error(t, err)
		assert.True(t, mcperrors.IsCode(err, mcperrors.CodeDuplicateRegistration))
	})

	t.Run("custom method", func(t *testing.T) {
		assert.NoError(t, s.SetRequestHandler("custom/echo", noop))
	})
}

func TestSetRequestHandlerAfterConnect(t *testing.T) {
	m := newTestServer()
	cli := connect(t, m)

	require.NoError(t, m.Server().SetRequestHandler("custom/answer", func(ctx context.Context, params interface{}) (interface{}, error) {
		return map[string]int{"answer": 42}, nil
	}))

	var result map[string]int
	call(t, cli, "custom/answer", nil, &result)
	assert.Equal(t, 42, result["answer"])
}

func TestOutboundRequestGuards(t *testing.T) {
	m := newTestServer()
	cli := connect(t, m)

	var sampled, listed int32
	cli.RegisterRequestHandler(protocol.MethodCreateMessage, func(ctx context.Context, params interface{}) (interface{}, error) {
		atomic.AddInt32(&sampled, 1)
		return &protocol.CreateMessageResult{Role: protocol.RoleAssistant, Content: protocol.NewTextContent("hi"), Model: "m"}, nil
	})
	cli.RegisterRequestHandler(protocol.MethodListRoots, func(ctx context.Context, params interface{}) (interface{}, error) {
		atomic.AddInt32(&listed, 1)
		return &protocol.ListRootsResult{Roots: []protocol.Root{{URI: "file:///work", Name: "work"}}}, nil
	})

	t.Run("before initialize", func(t *testing.T) {
		_, err := m.Server().ListRoots(context.Background())
		require.Error(t, err)
		assert.True(t, mcperrors.IsCode(err, mcperrors.CodeCapabilityRequired))
	})

	handshake(t, cli, protocol.Capabilities{Roots: &protocol.RootsCapability{}})

	t.Run("client lacks sampling", func(t *testing.T) {
		_, err := m.Server().CreateMessage(context.Background(), &protocol.CreateMessageParams{MaxTokens: 10})
		require.Error(t, err)
		assert.True(t, mcperrors.IsCode(err, mcperrors.CodeCapabilityRequired))
		mcpErr, _ := mcperrors.AsMCPError(err)
		data, ok := mcpErr.Data().(*mcperrors.CapabilityErrorData)
		require.True(t, ok)
		assert.Equal(t, "client", data.Side)
		assert.Equal(t, "sampling", data.Capability)
		assert.Equal(t, int32(0), atomic.LoadInt32(&sampled), "nothing may reach the wire")
	})

	t.Run("client declared roots", func(t *testing.T) {
		roots, err := m.Server().ListRoots(context.Background())
		require.NoError(t, err)
		require.Len(t, roots.Roots, 1)
		assert.Equal(t, "file:///work", roots.Roots[0].URI)
		assert.Equal(t, int32(1), atomic.LoadInt32(&listed))
	})
}

func TestCreateMessage(t *testing.T) {
	m := newTestServer()
	cli := connect(t, m)
	cli.RegisterRequestHandler(protocol.MethodCreateMessage, func(ctx context.Context, params interface{}) (interface{}, error) {
		var req protocol.CreateMessageParams
		if err := protocol.DecodeParams(params, &req); err != nil {
			return nil, err
		}
		return &protocol.CreateMessageResult{
			Role:    protocol.RoleAssistant,
			Content: protocol.NewTextContent("echo: " + req.Messages[0].Content.Text),
			Model:   "test-model",
		}, nil
	})
	handshake(t, cli, protocol.Capabilities{Sampling: &protocol.SamplingCapability{}})

	result, err := m.Server().CreateMessage(context.Background(), &protocol.CreateMessageParams{
		Messages:  []protocol.SamplingMessage{{Role: protocol.RoleUser, Content: protocol.NewTextContent("hello")}},
		MaxTokens: 16,
	})
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", result.Content.Text)
	assert.Equal(t, "test-model", result.Model)
}

func TestOutboundNotificationGuards(t *testing.T) {
	m := newTestServer()
	cli := connect(t, m)
	rec := record(cli,
		protocol.NotificationMessage,
		protocol.NotificationResourceUpdated,
		protocol.NotificationResourcesListChanged,
		protocol.NotificationToolsListChanged,
		protocol.NotificationPromptsListChanged,
		protocol.NotificationProgress,
		protocol.NotificationCancelled,
	)
	handshake(t, cli, protocol.Capabilities{})
	ctx := context.Background()
	s := m.Server()

	guarded := map[string]func() error{
		protocol.NotificationMessage: func() error {
			return s.SendLoggingMessage(ctx, &protocol.LoggingMessageParams{Level: protocol.LoggingLevelInfo, Data: "x"})
		},
		protocol.NotificationResourceUpdated:      func() error { return s.SendResourceUpdated(ctx, "file:///a") },
		protocol.NotificationResourcesListChanged: func() error { return s.SendResourceListChanged(ctx) },
		protocol.NotificationToolsListChanged:     func() error { return s.SendToolListChanged(ctx) },
		protocol.NotificationPromptsListChanged:   func() error { return s.SendPromptListChanged(ctx) },
	}
	for method, send := range guarded {
		err := send()
		require.Error(t, err, method)
		assert.True(t, mcperrors.IsCode(err, mcperrors.CodeCapabilityRequired), method)
		assert.Zero(t, rec.count(method), method)
	}

	require.NoError(t, s.SendProgress(ctx, &protocol.ProgressParams{ProgressToken: "tok", Progress: 1, Total: 2}))
	require.NoError(t, s.SendCancelled(ctx, &protocol.CancelledParams{RequestID: "cli_1", Reason: "stop"}))
	assert.Equal(t, 1, rec.count(protocol.NotificationProgress))
	assert.Equal(t, 1, rec.count(protocol.NotificationCancelled))
}

func TestOutboundBeforeConnect(t *testing.T) {
	s := New(WithLogger(logging.Nop()))

	err := s.SendProgress(context.Background(), &protocol.ProgressParams{ProgressToken: 1})
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeNotConnected))

	err = s.Ping(context.Background())
	assert.True(t, mcperrors.IsCode(err, mcperrors.CodeNotConnected))
}

func TestLoggingLevelFilter(t *testing.T) {
	m := newTestServer(WithCapabilities(protocol.Capabilities{Logging: &protocol.LoggingCapability{}}))
	cli := connect(t, m)
	rec := record(cli, protocol.NotificationMessage)
	handshake(t, cli, protocol.Capabilities{})
	ctx := context.Background()
	s := m.Server()

	send := func(level protocol.LoggingLevel) {
		require.NoError(t, s.SendLoggingMessage(ctx, &protocol.LoggingMessageParams{Level: level, Logger: "test", Data: string(level)}))
	}

	// No level set: everything goes out.
	send(protocol.LoggingLevelDebug)
	assert.Equal(t, 1, rec.count(protocol.NotificationMessage))

	call(t, cli, protocol.MethodSetLogLevel, &protocol.SetLevelParams{Level: protocol.LoggingLevelWarning}, nil)
	assert.Equal(t, protocol.LoggingLevelWarning, s.LogLevel())

	send(protocol.LoggingLevelInfo)
	send(protocol.LoggingLevelWarning)
	send(protocol.LoggingLevelCritical)
	assert.Equal(t, 3, rec.count(protocol.NotificationMessage))

	err := callErr(t, cli, protocol.MethodSetLogLevel, map[string]string{"level": "verbose"})
	assert.Equal(t, mcperrors.CodeInvalidParams, err.Code())
}

func TestLogForwarding(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, logging.NewJSONFormatter())
	logger.SetLevel(logging.DebugLevel)

	m := NewMCPServer(WithLogger(logger), WithLogForwarding("core"))
	require.NotNil(t, m.Server().Capabilities().Logging)

	cli := connect(t, m)
	rec := record(cli, protocol.NotificationMessage)

	m.Server().Logger().Info("before handshake")
	assert.Zero(t, rec.count(protocol.NotificationMessage))

	handshake(t, cli, protocol.Capabilities{})
	call(t, cli, protocol.MethodSetLogLevel, &protocol.SetLevelParams{Level: protocol.LoggingLevelWarning}, nil)
	before := rec.count(protocol.NotificationMessage)

	m.Server().Logger().Info("filtered by client level")
	m.Server().Logger().Warn("disk almost full", logging.Int("percent", 91))
	require.Equal(t, before+1, rec.count(protocol.NotificationMessage))

	rec.mu.Lock()
	params := rec.params[protocol.NotificationMessage]
	last := params[len(params)-1]
	rec.mu.Unlock()

	var msg protocol.LoggingMessageParams
	require.NoError(t, protocol.DecodeParams(last, &msg))
	assert.Equal(t, protocol.LoggingLevelWarning, msg.Level)
	assert.Equal(t, "core", msg.Logger)
	data, ok := msg.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "disk almost full", data["message"])
	assert.EqualValues(t, 91, data["percent"])

	// Entries are still written locally.
	assert.Contains(t, buf.String(), "disk almost full")
}

func TestSetLevelNotInstalledWithoutLogging(t *testing.T) {
	m := newTestServer()
	cli := connect(t, m)

	err := callErr(t, cli, protocol.MethodSetLogLevel, &protocol.SetLevelParams{Level: protocol.LoggingLevelDebug})
	assert.Equal(t, mcperrors.CodeMethodNotFound, err.Code())
}
