package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	mcperrors "github.com/ajitpratap0/mcp-server-core/pkg/errors"
	"github.com/ajitpratap0/mcp-server-core/pkg/protocol"
)

// Loopback is one end of an in-memory transport pair. Messages are encoded
// to JSON and decoded again on the other end, so handlers see exactly what
// a wire transport would deliver. Requests are answered on their own
// goroutine; notifications are delivered synchronously.
type Loopback struct {
	*BaseTransport

	peer *Loopback

	mu     sync.RWMutex
	closed bool
}

// NewLoopback returns two connected ends sharing a fresh session ID. By
// convention the first end is handed to the server.
func NewLoopback() (*Loopback, *Loopback) {
	sessionID := uuid.New().String()

	a := &Loopback{BaseTransport: NewBaseTransport()}
	b := &Loopback{BaseTransport: NewBaseTransport()}
	a.idPrefix = "srv"
	b.idPrefix = "cli"
	a.SetSessionID(sessionID)
	b.SetSessionID(sessionID)
	a.peer, b.peer = b, a
	return a, b
}

// Start fails only when the end was already stopped; a loopback needs no
// connection setup.
func (l *Loopback) Start(ctx context.Context) error {
	if l.closedFlag() {
		return ErrTransportClosed
	}
	return nil
}

// Stop closes this end and fails its pending requests.
func (l *Loopback) Stop(ctx context.Context) error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.Cleanup()
	return nil
}

func (l *Loopback) isClosed() bool {
	return l.closedFlag() || l.peer.closedFlag()
}

func (l *Loopback) closedFlag() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closed
}

// SendRequest sends a request to the peer and waits for its response. An
// error response is returned as an MCP error carrying the peer's code.
func (l *Loopback) SendRequest(ctx context.Context, method string, params interface{}) (interface{}, error) {
	if l.isClosed() {
		return nil, ErrTransportClosed
	}

	id := l.GenerateID()
	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		return nil, err
	}
	var inbound protocol.Request
	if err := roundTrip(req, &inbound); err != nil {
		return nil, err
	}

	ch := l.ExpectResponse(id)
	go func() {
		resp, err := l.peer.HandleRequest(ctx, &inbound)
		if err != nil {
			resp = protocol.NewErrorResponse(inbound.ID, mcperrors.ToJSONRPCError(err))
		}
		var outbound protocol.Response
		if err := roundTrip(resp, &outbound); err != nil {
			outbound = *protocol.NewErrorResponse(inbound.ID, &protocol.Error{
				Code:    protocol.InternalError,
				Message: err.Error(),
			})
		}
		l.HandleResponse(&outbound)
	}()

	resp, err := l.WaitForResponse(ctx, id, ch)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, mcperrors.FromJSONRPCError(resp.Error)
	}
	return resp.Result, nil
}

// SendNotification delivers a notification to the peer. Notifications the
// peer has no handler for are dropped, as on a real connection; other
// handler failures are returned to ease testing.
func (l *Loopback) SendNotification(ctx context.Context, method string, params interface{}) error {
	if l.isClosed() {
		return ErrTransportClosed
	}

	n, err := protocol.NewNotification(method, params)
	if err != nil {
		return err
	}
	var inbound protocol.Notification
	if err := roundTrip(n, &inbound); err != nil {
		return err
	}

	if err := l.peer.HandleNotification(ctx, &inbound); err != nil && !errors.Is(err, ErrNoHandler) {
		return fmt.Errorf("peer failed to handle %s: %w", method, err)
	}
	return nil
}

func roundTrip(in, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
