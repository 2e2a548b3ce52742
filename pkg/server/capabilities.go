package server

import (
	mcperrors "github.com/ajitpratap0/mcp-server-core/pkg/errors"
	"github.com/ajitpratap0/mcp-server-core/pkg/protocol"
)

const (
	sideClient = "client"
	sideServer = "server"
)

// Outbound requests need the client to have declared the matching feature.
var requestCapabilities = map[string]protocol.Capability{
	protocol.MethodCreateMessage: protocol.CapabilitySampling,
	protocol.MethodListRoots:     protocol.CapabilityRoots,
}

// Outbound notifications need this server to have declared the feature.
var notificationCapabilities = map[string]protocol.Capability{
	protocol.NotificationMessage:              protocol.CapabilityLogging,
	protocol.NotificationResourceUpdated:      protocol.CapabilityResources,
	protocol.NotificationResourcesListChanged: protocol.CapabilityResources,
	protocol.NotificationToolsListChanged:     protocol.CapabilityTools,
	protocol.NotificationPromptsListChanged:   protocol.CapabilityPrompts,
}

// Installed handlers need this server to have declared the feature.
var handlerCapabilities = map[string]protocol.Capability{
	protocol.MethodCreateMessage:         protocol.CapabilitySampling,
	protocol.MethodSetLogLevel:           protocol.CapabilityLogging,
	protocol.MethodGetPrompt:             protocol.CapabilityPrompts,
	protocol.MethodListPrompts:           protocol.CapabilityPrompts,
	protocol.MethodListResources:         protocol.CapabilityResources,
	protocol.MethodListResourceTemplates: protocol.CapabilityResources,
	protocol.MethodReadResource:          protocol.CapabilityResources,
	protocol.MethodCallTool:              protocol.CapabilityTools,
	protocol.MethodListTools:             protocol.CapabilityTools,
}

// assertCapabilityForMethod checks an outbound request against the client's
// capabilities. Before initialize the client has declared nothing.
func (s *Server) assertCapabilityForMethod(method string) error {
	required, ok := requestCapabilities[method]
	if !ok {
		return nil
	}
	if !s.ClientCapabilities().Has(required) {
		return mcperrors.CapabilityNotDeclared(sideClient, string(required), method)
	}
	return nil
}

// assertNotificationCapability checks an outbound notification against our
// own capabilities.
func (s *Server) assertNotificationCapability(method string) error {
	required, ok := notificationCapabilities[method]
	if !ok {
		return nil
	}
	s.mu.RLock()
	declared := s.capabilities.Has(required)
	s.mu.RUnlock()

	if !declared {
		return mcperrors.CapabilityNotDeclared(sideServer, string(required), method)
	}
	return nil
}

// assertRequestHandlerCapability must be called with s.mu held.
func (s *Server) assertRequestHandlerCapability(method string) error {
	required, ok := handlerCapabilities[method]
	if !ok {
		return nil
	}
	if !s.capabilities.Has(required) {
		return mcperrors.CapabilityNotDeclared(sideServer, string(required), method)
	}
	return nil
}

// assertCanSetRequestHandler must be called with s.mu held.
func (s *Server) assertCanSetRequestHandler(method string) error {
	if _, exists := s.requestHandlers[method]; exists {
		return mcperrors.DuplicateRegistration("request handler", method)
	}
	return nil
}
