package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	mcperrors "github.com/ajitpratap0/mcp-server-core/pkg/errors"
	"github.com/ajitpratap0/mcp-server-core/pkg/logging"
	"github.com/ajitpratap0/mcp-server-core/pkg/observability"
	"github.com/ajitpratap0/mcp-server-core/pkg/protocol"
	"github.com/ajitpratap0/mcp-server-core/pkg/transport"
)

// Server is the protocol-level half of an MCP server. It owns the
// handshake, the declared capabilities and the request handlers, and
// enforces the capability guards on everything it sends or installs.
// Registries are layered on top by MCPServer.
type Server struct {
	name         string
	version      string
	instructions string

	logger        logging.Logger
	requestLog    *logging.ContextMiddleware
	metrics       observability.MetricsProvider
	tracer        *observability.TracingProvider
	middleware    []transport.Middleware
	onInitialized func()
	forwardLogs   bool
	forwardName   string

	mu                   sync.RWMutex
	capabilities         protocol.Capabilities
	transport            transport.Transport
	closed               bool
	requestHandlers      map[string]transport.RequestHandler
	notificationHandlers map[string]transport.NotificationHandler

	peerMu      sync.RWMutex
	peer        *peerState
	initialized bool
	logLevel    protocol.LoggingLevel
}

// peerState is what the client told us in initialize.
type peerState struct {
	protocolVersion string
	capabilities    *protocol.Capabilities
	info            *protocol.Implementation
}

// Option configures a Server.
type Option func(*Server)

// WithName sets the server name reported in serverInfo
func WithName(name string) Option {
	return func(s *Server) {
		s.name = name
	}
}

// WithVersion sets the server version reported in serverInfo
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithInstructions sets the usage hint returned from initialize.
func WithInstructions(instructions string) Option {
	return func(s *Server) {
		s.instructions = instructions
	}
}

// WithCapabilities declares capabilities up front. They are merged with
// whatever the registries declare later.
func WithCapabilities(caps protocol.Capabilities) Option {
	return func(s *Server) {
		s.capabilities = protocol.Merge(s.capabilities, caps)
	}
}

// WithLogger sets the structured logger
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMetrics records handler, tool, resource and prompt activity.
func WithMetrics(metrics observability.MetricsProvider) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// WithTracing opens a server span for every handled request.
func WithTracing(tracer *observability.TracingProvider) Option {
	return func(s *Server) {
		s.tracer = tracer
	}
}

// WithTransportMiddleware wraps the transport passed to Connect. The first
// middleware is the outermost.
func WithTransportMiddleware(middleware ...transport.Middleware) Option {
	return func(s *Server) {
		s.middleware = append(s.middleware, middleware...)
	}
}

// WithOnInitialized registers a callback fired every time the client sends
// notifications/initialized.
func WithOnInitialized(fn func()) Option {
	return func(s *Server) {
		s.onInitialized = fn
	}
}

// New creates a server with the lifecycle handlers installed.
func New(options ...Option) *Server {
	s := &Server{
		name:                 "go-mcp-server",
		version:              "1.0.0",
		requestHandlers:      make(map[string]transport.RequestHandler),
		notificationHandlers: make(map[string]transport.NotificationHandler),
	}

	for _, option := range options {
		option(s)
	}

	if s.logger == nil {
		s.logger = logging.New(nil, logging.NewTextFormatter()).WithFields(
			logging.String("component", "mcp-server"),
		)
	}
	s.requestLog = logging.NewContextMiddleware(s.logger)
	if s.forwardLogs {
		s.logger.AddHook(logging.HookFunc(s.forwardLog))
	}

	// Lifecycle methods need no capability; these cannot fail on a fresh server.
	_ = s.SetRequestHandler(protocol.MethodInitialize, s.handleInitialize)
	_ = s.SetRequestHandler(protocol.MethodPing, s.handlePing)
	s.SetNotificationHandler(protocol.NotificationInitialized, s.handleInitialized)

	if s.capabilities.Logging != nil {
		_ = s.SetRequestHandler(protocol.MethodSetLogLevel, s.handleSetLevel)
	}

	return s
}

// Logger returns the server's logger.
func (s *Server) Logger() logging.Logger { return s.logger }

// ServerInfo returns the name and version sent to clients.
func (s *Server) ServerInfo() protocol.Implementation {
	return protocol.Implementation{Name: s.name, Version: s.version}
}

// RegisterCapabilities merges caps into the declared set. It fails once a
// transport is attached.
func (s *Server) RegisterCapabilities(caps protocol.Capabilities) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registerCapabilitiesLocked(caps)
}

func (s *Server) registerCapabilitiesLocked(caps protocol.Capabilities) error {
	if s.transport != nil {
		return mcperrors.CapabilitiesLocked()
	}
	s.capabilities = protocol.Merge(s.capabilities, caps)
	return nil
}

// Capabilities returns a copy of the declared capabilities.
func (s *Server) Capabilities() protocol.Capabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capabilities.Clone()
}

// SetRequestHandler installs handler for method. The method must be free
// and its capability declared.
func (s *Server) SetRequestHandler(method string, handler transport.RequestHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.assertCanSetRequestHandler(method); err != nil {
		return err
	}
	if err := s.assertRequestHandlerCapability(method); err != nil {
		return err
	}
	s.setRequestHandlerLocked(method, handler)
	return nil
}

func (s *Server) setRequestHandlerLocked(method string, handler transport.RequestHandler) {
	wrapped := s.instrument(method, handler)
	s.requestHandlers[method] = wrapped
	if s.transport != nil {
		s.transport.RegisterRequestHandler(method, wrapped)
	}
}

// installHandlers declares caps unless already declared, then installs
// every handler. Nothing is installed when any step fails.
func (s *Server) installHandlers(caps protocol.Capabilities, handlers map[string]transport.RequestHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		if err := s.assertCanSetRequestHandler(method); err != nil {
			return err
		}
		methods = append(methods, method)
	}
	sort.Strings(methods)

	if !s.covers(caps) {
		if err := s.registerCapabilitiesLocked(caps); err != nil {
			return err
		}
	}

	for _, method := range methods {
		if err := s.assertRequestHandlerCapability(method); err != nil {
			return err
		}
	}
	for _, method := range methods {
		s.setRequestHandlerLocked(method, handlers[method])
	}
	return nil
}

// covers reports whether every feature in caps is already declared.
func (s *Server) covers(caps protocol.Capabilities) bool {
	for _, c := range []protocol.Capability{
		protocol.CapabilityTools,
		protocol.CapabilityResources,
		protocol.CapabilityPrompts,
		protocol.CapabilityLogging,
	} {
		if caps.Has(c) && !s.capabilities.Has(c) {
			return false
		}
	}
	return true
}

// SetNotificationHandler installs handler for an inbound notification,
// replacing any previous one.
func (s *Server) SetNotificationHandler(method string, handler transport.NotificationHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notificationHandlers[method] = handler
	if s.transport != nil {
		s.transport.RegisterNotificationHandler(method, handler)
	}
}

// instrument adds request-scoped logging, tracing and metrics to handler.
func (s *Server) instrument(method string, handler transport.RequestHandler) transport.RequestHandler {
	logged := s.requestLog.WrapHandler(method, handler)

	return func(ctx context.Context, params interface{}) (interface{}, error) {
		extra := transport.RequestExtraFromContext(ctx)
		if extra.RequestID != nil {
			ctx = logging.ContextWithRequestID(ctx, fmt.Sprint(extra.RequestID))
		}

		if s.tracer != nil {
			var span trace.Span
			ctx = s.tracer.ExtractMeta(ctx, extra.Meta)
			ctx, span = s.tracer.StartMethodSpan(ctx, method, trace.SpanKindServer)
			defer span.End()
		}

		start := time.Now()
		result, err := logged(ctx, params)

		if s.metrics != nil {
			status := observability.StatusSuccess
			if err != nil {
				status = observability.StatusError
				s.metrics.RecordError(ctx, observability.ErrorType(err), method)
			}
			s.metrics.RecordIncomingRequest(ctx, method, status, time.Since(start))
		}
		if err != nil && s.tracer != nil {
			s.tracer.RecordError(ctx, err)
		}
		return result, err
	}
}

func (s *Server) annotate(ctx context.Context, attrs ...attribute.KeyValue) {
	if s.tracer != nil {
		s.tracer.Annotate(ctx, attrs...)
	}
}

// Connect attaches t, installs every registered handler on it and starts
// it. Capabilities are frozen from this point on.
func (s *Server) Connect(ctx context.Context, t transport.Transport) error {
	s.mu.Lock()
	if s.transport != nil || s.closed {
		s.mu.Unlock()
		return mcperrors.AlreadyConnected()
	}

	if len(s.middleware) > 0 {
		t = transport.ChainMiddleware(s.middleware...).Wrap(t)
	}
	for method, handler := range s.requestHandlers {
		t.RegisterRequestHandler(method, handler)
	}
	for method, handler := range s.notificationHandlers {
		t.RegisterNotificationHandler(method, handler)
	}
	s.transport = t
	s.mu.Unlock()

	if err := t.Start(ctx); err != nil {
		s.mu.Lock()
		s.transport = nil
		s.mu.Unlock()
		return mcperrors.WrapError(err, mcperrors.CodeInternalError, "failed to start transport",
			mcperrors.CategoryTransport, mcperrors.SeverityError)
	}

	if s.metrics != nil {
		s.metrics.RecordActiveSessions(ctx, 1)
	}
	s.logger.Info("server connected",
		logging.String("server", s.name),
		logging.String("version", s.version),
	)
	return nil
}

// Close stops the transport. A closed server cannot be connected again.
func (s *Server) Close(ctx context.Context) error {
	s.mu.Lock()
	t := s.transport
	if t == nil || s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	err := t.Stop(ctx)
	if s.metrics != nil {
		s.metrics.RecordActiveSessions(ctx, -1)
	}
	s.logger.Info("server closed")
	return err
}

func (s *Server) currentTransport() transport.Transport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	return s.transport
}

// ClientCapabilities returns what the client declared, nil before initialize.
func (s *Server) ClientCapabilities() *protocol.Capabilities {
	s.peerMu.RLock()
	defer s.peerMu.RUnlock()
	if s.peer == nil {
		return nil
	}
	return s.peer.capabilities
}

// ClientVersion returns the client's name and version, nil before initialize.
func (s *Server) ClientVersion() *protocol.Implementation {
	s.peerMu.RLock()
	defer s.peerMu.RUnlock()
	if s.peer == nil {
		return nil
	}
	return s.peer.info
}

// NegotiatedProtocolVersion returns the version answered in initialize.
func (s *Server) NegotiatedProtocolVersion() string {
	s.peerMu.RLock()
	defer s.peerMu.RUnlock()
	if s.peer == nil {
		return ""
	}
	return s.peer.protocolVersion
}

// Initialized reports whether the client completed the handshake.
func (s *Server) Initialized() bool {
	s.peerMu.RLock()
	defer s.peerMu.RUnlock()
	return s.initialized
}

func (s *Server) handleInitialize(ctx context.Context, params interface{}) (interface{}, error) {
	var req protocol.InitializeParams
	if err := protocol.DecodeParams(params, &req); err != nil {
		return nil, mcperrors.InvalidParams(fmt.Sprintf("invalid initialize params: %v", err))
	}

	version := req.ProtocolVersion
	if !protocol.IsSupportedProtocolVersion(version) {
		version = protocol.LatestProtocolVersion
	}

	caps := req.Capabilities.Clone()
	info := req.ClientInfo

	s.peerMu.Lock()
	s.peer = &peerState{
		protocolVersion: version,
		capabilities:    &caps,
		info:            &info,
	}
	s.peerMu.Unlock()

	s.logger.Info("client initializing",
		logging.String("client", info.Name),
		logging.String("client_version", info.Version),
		logging.String("requested_version", req.ProtocolVersion),
		logging.String("protocol_version", version),
	)

	return &protocol.InitializeResult{
		ProtocolVersion: version,
		Capabilities:    s.Capabilities(),
		ServerInfo:      s.ServerInfo(),
		Instructions:    s.instructions,
	}, nil
}

func (s *Server) handleInitialized(ctx context.Context, params interface{}) error {
	s.peerMu.Lock()
	s.initialized = true
	s.peerMu.Unlock()

	s.logger.Debug("client initialized")
	if s.onInitialized != nil {
		s.onInitialized()
	}
	return nil
}

func (s *Server) handlePing(ctx context.Context, params interface{}) (interface{}, error) {
	return &protocol.EmptyResult{}, nil
}
