// Package mcp is the entry point of the MCP server core: it re-exports the
// constructors most servers need so that simple programs import one package.
package mcp

import (
	"github.com/ajitpratap0/mcp-server-core/pkg/protocol"
	"github.com/ajitpratap0/mcp-server-core/pkg/schema"
	"github.com/ajitpratap0/mcp-server-core/pkg/server"
	"github.com/ajitpratap0/mcp-server-core/pkg/transport"
)

// Version of this module.
const Version = "1.0.0"

// ProtocolVersion is the newest protocol revision the server speaks.
const ProtocolVersion = protocol.LatestProtocolVersion

var (
	// NewServer creates the high-level server with tool, resource and
	// prompt registries.
	NewServer = server.NewMCPServer

	// NewLowLevelServer creates the protocol server without registries.
	NewLowLevelServer = server.New

	// NewLoopback creates a connected pair of in-process transports.
	NewLoopback = transport.NewLoopback

	// NewResourceTemplate parses an RFC 6570 URI template.
	NewResourceTemplate  = server.NewResourceTemplate
	MustResourceTemplate = server.MustResourceTemplate

	// NewShape compiles a JSON Schema for tool or prompt arguments.
	NewShape  = schema.NewShape
	MustShape = schema.MustShape
)

// Capability names
const (
	CapabilityTools     = protocol.CapabilityTools
	CapabilityResources = protocol.CapabilityResources
	CapabilityPrompts   = protocol.CapabilityPrompts
	CapabilityLogging   = protocol.CapabilityLogging
	CapabilitySampling  = protocol.CapabilitySampling
	CapabilityRoots     = protocol.CapabilityRoots
)

// Server options
var (
	WithName                = server.WithName
	WithVersion             = server.WithVersion
	WithInstructions        = server.WithInstructions
	WithCapabilities        = server.WithCapabilities
	WithLogger              = server.WithLogger
	WithMetrics             = server.WithMetrics
	WithTracing             = server.WithTracing
	WithTransportMiddleware = server.WithTransportMiddleware
	WithOnInitialized       = server.WithOnInitialized
	WithLogForwarding       = server.WithLogForwarding
)

// Result helpers
var (
	NewTextContent     = protocol.NewTextContent
	NewToolResultText  = protocol.NewToolResultText
	NewToolResultError = protocol.NewToolResultError
)
