// Package server implements the server side of the Model Context Protocol.
//
// Server handles the handshake, keeps the declared capabilities and checks
// every outbound request, outbound notification and installed handler
// against them. MCPServer adds registries for tools, resources and prompts
// on top and installs their handlers on first use:
//
//	srv := server.NewMCPServer(
//	    server.WithName("example"),
//	    server.WithVersion("1.0.0"),
//	)
//
//	type echoArgs struct {
//	    Text string `json:"text" jsonschema:"description=Text to echo"`
//	}
//	_ = server.AddTool(srv, "echo", "Echo the input",
//	    func(ctx context.Context, args echoArgs, _ transport.RequestExtra) (*protocol.CallToolResult, error) {
//	        return protocol.NewToolResultText(args.Text), nil
//	    })
//
//	if err := srv.Connect(ctx, t); err != nil {
//	    // handle error
//	}
//
// # Capabilities
//
// Registering the first tool, resource or prompt declares the matching
// capability. Capabilities are frozen once Connect attaches a transport, so
// the first registration of a kind not already declared fails after Connect.
// Declare it up front with WithCapabilities to register later.
//
// # Errors
//
// Misuse by the embedding program (duplicate names, undeclared
// capabilities, malformed templates) is returned synchronously as a
// configuration error. Bad requests from the client get an InvalidParams
// protocol error. A tool that fails or panics answers with an isError
// result; resource and prompt callback errors are returned to the client
// as protocol errors.
package server
