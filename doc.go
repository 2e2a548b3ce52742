// Package mcp is a server core for the Model Context Protocol (MCP), the
// JSON-RPC 2.0 protocol through which language-model clients discover and
// call tools, read resources and fetch prompts.
//
// # Packages
//
//   - pkg/server: handshake, capability checks and the tool, resource and
//     prompt registries
//   - pkg/protocol: message and capability types
//   - pkg/transport: the Transport interface, BaseTransport and an
//     in-process Loopback pair
//   - pkg/schema: JSON Schema shapes for tool and prompt arguments
//   - pkg/errors: protocol and configuration errors
//   - pkg/logging, pkg/observability: structured logs, Prometheus metrics
//     and OpenTelemetry traces
//   - pkg/config: environment configuration
//
// # A minimal server
//
//	srv := mcp.NewServer(mcp.WithName("weather"), mcp.WithVersion("1.0.0"))
//
//	type forecastArgs struct {
//	    City string `json:"city"`
//	}
//	err := server.AddTool(srv, "forecast", "Forecast for a city",
//	    func(ctx context.Context, args forecastArgs, _ transport.RequestExtra) (*protocol.CallToolResult, error) {
//	        return mcp.NewToolResultText("sunny in " + args.City), nil
//	    })
//
//	err = srv.RegisterResourceTemplate("city",
//	    mcp.MustResourceTemplate("weather://{city}", nil),
//	    server.ResourceMetadata{MimeType: "text/plain"},
//	    func(ctx context.Context, uri string, vars server.Variables, _ transport.RequestExtra) (*protocol.ReadResourceResult, error) {
//	        return &protocol.ReadResourceResult{Contents: []protocol.ResourceContents{
//	            {URI: uri, Text: "sunny in " + vars.Get("city")},
//	        }}, nil
//	    })
//
//	err = srv.Connect(ctx, t)
//
// Wire framing is left to the Transport; any implementation built on
// transport.BaseTransport can carry the server.
package mcp
