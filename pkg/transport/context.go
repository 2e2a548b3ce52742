package transport

import (
	"context"

	"github.com/ajitpratap0/mcp-server-core/pkg/protocol"
)

// RequestExtra is the per-request call context the dispatch layer hands to
// handlers: the JSON-RPC ID of the inbound request, the session it arrived
// on and its "_meta" object.
type RequestExtra struct {
	RequestID interface{}
	SessionID string
	Meta      protocol.Meta
}

type requestExtraKey struct{}

// ContextWithRequestExtra returns a copy of ctx carrying extra.
func ContextWithRequestExtra(ctx context.Context, extra RequestExtra) context.Context {
	return context.WithValue(ctx, requestExtraKey{}, extra)
}

// RequestExtraFromContext returns the RequestExtra stored in ctx, or the
// zero value when the call did not come through a transport.
func RequestExtraFromContext(ctx context.Context) RequestExtra {
	extra, _ := ctx.Value(requestExtraKey{}).(RequestExtra)
	return extra
}
