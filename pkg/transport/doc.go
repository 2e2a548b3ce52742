// Package transport defines the dispatch engine the MCP server core talks to.
//
// A Transport correlates requests with responses, assigns request IDs and
// routes inbound messages to handlers registered by method name. The server
// core never touches framing or connections: it calls SendRequest and
// SendNotification, and registers RequestHandler and NotificationHandler
// functions.
//
// BaseTransport implements the receiving half shared by every transport.
// HandleRequest places a RequestExtra (request ID, session ID, "_meta") in
// the handler's context and converts handler errors to JSON-RPC errors
// without losing their MCP error code.
//
// Loopback is an in-memory pair of transports used by tests and examples:
//
//	srvEnd, cliEnd := transport.NewLoopback()
//	_ = server.Connect(ctx, srvEnd)
//	raw, err := cliEnd.SendRequest(ctx, protocol.MethodListTools, nil)
//
// Middleware wraps a Transport; embed Delegate to forward the methods a
// middleware does not instrument.
package transport
