// Package protocol defines the Go types for Model Context Protocol messages.
//
// MCP is layered on JSON-RPC 2.0. This package holds the JSON-RPC envelope
// types (jsonrpc.go), the method names and lifecycle payloads (mcp.go), the
// capability model exchanged during the handshake (capabilities.go), and the
// payloads of the tools, resources, prompts and sampling features.
//
// # Handshake
//
//  1. The client sends initialize with its protocol revision, capabilities
//     and clientInfo.
//  2. The server answers with the negotiated revision, its own capabilities
//     and serverInfo. A revision outside SupportedProtocolVersions is
//     answered with LatestProtocolVersion.
//  3. The client sends notifications/initialized.
//
// Example initialize result:
//
//	{
//	    "protocolVersion": "2025-03-26",
//	    "capabilities": {
//	        "tools": {"listChanged": true},
//	        "resources": {"listChanged": true}
//	    },
//	    "serverInfo": {"name": "example", "version": "1.0.0"}
//	}
//
// # Capabilities
//
// Capabilities is sparse: a nil sub-struct means the feature is absent.
// Merge combines two sets as a per-feature union and never drops a feature
// already declared.
package protocol
