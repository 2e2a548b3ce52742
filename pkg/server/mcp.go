package server

import (
	"context"
	"sync"

	"github.com/ajitpratap0/mcp-server-core/pkg/logging"
	"github.com/ajitpratap0/mcp-server-core/pkg/protocol"
	"github.com/ajitpratap0/mcp-server-core/pkg/transport"
)

// MCPServer is the high-level server: tools, resources and prompts are
// registered here and their protocol handlers are installed on the first
// registration of each kind.
type MCPServer struct {
	server *Server

	tools     *registry[*registeredTool]
	resources *registry[*registeredResource]
	templates *registry[*registeredResourceTemplate]
	prompts   *registry[*registeredPrompt]

	installMu          sync.Mutex
	toolsInstalled     bool
	resourcesInstalled bool
	promptsInstalled   bool
}

// NewMCPServer creates a server with no tools, resources or prompts.
func NewMCPServer(options ...Option) *MCPServer {
	return &MCPServer{
		server:    New(options...),
		tools:     newRegistry[*registeredTool](),
		resources: newRegistry[*registeredResource](),
		templates: newRegistry[*registeredResourceTemplate](),
		prompts:   newRegistry[*registeredPrompt](),
	}
}

// Server returns the underlying protocol server, for outbound requests and
// notifications.
func (m *MCPServer) Server() *Server { return m.server }

// Connect attaches the transport and starts serving.
func (m *MCPServer) Connect(ctx context.Context, t transport.Transport) error {
	return m.server.Connect(ctx, t)
}

// Close stops the transport.
func (m *MCPServer) Close(ctx context.Context) error {
	return m.server.Close(ctx)
}

// ensureInstalled runs install once per flag. A failed install leaves the
// flag unset so a later registration can retry.
func (m *MCPServer) ensureInstalled(flag *bool, caps protocol.Capabilities, handlers map[string]transport.RequestHandler) error {
	m.installMu.Lock()
	defer m.installMu.Unlock()

	if *flag {
		return nil
	}
	if err := m.server.installHandlers(caps, handlers); err != nil {
		return err
	}
	*flag = true
	return nil
}

// announceListChanged tells an initialized client that a list grew. The
// registration already succeeded, so a failed send is only logged.
func (m *MCPServer) announceListChanged(method string) {
	if !m.server.Initialized() {
		return
	}
	if err := m.server.notify(context.Background(), method, nil); err != nil {
		m.server.logger.Warn("failed to send list changed notification",
			logging.String("method", method),
			logging.ErrorField(err),
		)
	}
}
