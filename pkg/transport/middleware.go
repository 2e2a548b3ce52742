package transport

import (
	"context"

	"github.com/ajitpratap0/mcp-server-core/pkg/protocol"
)

// Middleware wraps a transport to add behaviour such as metrics or tracing.
type Middleware interface {
	Wrap(transport Transport) Transport
}

// MiddlewareFunc is an adapter to allow the use of ordinary functions as middleware
type MiddlewareFunc func(Transport) Transport

// Wrap implements the Middleware interface
func (f MiddlewareFunc) Wrap(t Transport) Transport {
	return f(t)
}

// ChainMiddleware chains middleware so the first one is the outermost.
func ChainMiddleware(middleware ...Middleware) Middleware {
	return MiddlewareFunc(func(transport Transport) Transport {
		for i := len(middleware) - 1; i >= 0; i-- {
			transport = middleware[i].Wrap(transport)
		}
		return transport
	})
}

// Delegate forwards every Transport method to Next. Middleware embeds it
// and overrides only the methods it instruments.
type Delegate struct {
	Next Transport
}

// SendRequest delegates to the wrapped transport
func (d *Delegate) SendRequest(ctx context.Context, method string, params interface{}) (interface{}, error) {
	return d.Next.SendRequest(ctx, method, params)
}

// SendNotification delegates to the wrapped transport
func (d *Delegate) SendNotification(ctx context.Context, method string, params interface{}) error {
	return d.Next.SendNotification(ctx, method, params)
}

// RegisterRequestHandler delegates to the wrapped transport
func (d *Delegate) RegisterRequestHandler(method string, handler RequestHandler) {
	d.Next.RegisterRequestHandler(method, handler)
}

// RegisterNotificationHandler delegates to the wrapped transport
func (d *Delegate) RegisterNotificationHandler(method string, handler NotificationHandler) {
	d.Next.RegisterNotificationHandler(method, handler)
}

// Start delegates to the wrapped transport
func (d *Delegate) Start(ctx context.Context) error {
	return d.Next.Start(ctx)
}

// Stop delegates to the wrapped transport
func (d *Delegate) Stop(ctx context.Context) error {
	return d.Next.Stop(ctx)
}

// HandleResponse delegates to the wrapped transport
func (d *Delegate) HandleResponse(response *protocol.Response) {
	d.Next.HandleResponse(response)
}

// HandleRequest delegates to the wrapped transport
func (d *Delegate) HandleRequest(ctx context.Context, request *protocol.Request) (*protocol.Response, error) {
	return d.Next.HandleRequest(ctx, request)
}

// HandleNotification delegates to the wrapped transport
func (d *Delegate) HandleNotification(ctx context.Context, notification *protocol.Notification) error {
	return d.Next.HandleNotification(ctx, notification)
}

// GenerateID delegates to the wrapped transport
func (d *Delegate) GenerateID() string {
	return d.Next.GenerateID()
}
